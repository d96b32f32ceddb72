// Package proxy fetches third-party HLS playlists, rewrites their
// references to absolute or self-proxied URLs, and caches the rewritten
// text so repeated playback starts skip the upstream round trip.
package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streampick/services/store"
)

const (
	defaultFetchTimeout   = 10 * time.Second
	defaultPlaylistTTL    = 300 * time.Second
	defaultMaxPlaylistLen = 5 * 1024 * 1024 // 5 MiB

	// Some providers reject requests without a browser user agent.
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
)

// UpstreamError reports a non-success response from the playlist origin.
// The request fails as a whole; the status code is relayed to the caller.
type UpstreamError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.URL)
}

var (
	ErrPlaylistTooLarge = errors.New("playlist exceeds size limit")
	ErrInvalidURL       = errors.New("invalid playlist url")
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	TTL       time.Duration
	MaxSize   int64
	UserAgent string
	Timeout   time.Duration
}

// Service implements the playlist proxy. Cache failures are logged and
// degrade to fetch-through; only upstream failures abort a request.
type Service struct {
	client    *http.Client
	store     store.Store
	ttl       time.Duration
	maxSize   int64
	userAgent string
}

// Result is one proxied playlist body plus its cache disposition.
type Result struct {
	Body     []byte
	CacheHit bool
}

// NewService creates a playlist proxy backed by the given cache store.
// The client may be nil, in which case one with a bounded timeout is used.
func NewService(client *http.Client, cache store.Store, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = defaultPlaylistTTL
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = defaultMaxPlaylistLen
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultFetchTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Service{
		client:    client,
		store:     cache,
		ttl:       opts.TTL,
		maxSize:   opts.MaxSize,
		userAgent: opts.UserAgent,
	}
}

// CacheKey derives the stable cache key for a playlist URL.
func CacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Playlist returns the rewritten playlist for rawURL. callerUA, when
// non-empty, is propagated to the upstream fetch; proxyBase is the
// caller's own proxy endpoint used for recursive master rewrites.
func (s *Service) Playlist(ctx context.Context, rawURL, callerUA, proxyBase string) (*Result, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	switch target.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, target.Scheme)
	}

	key := CacheKey(target.String())
	if cached, found, err := s.store.Get(ctx, store.NamespacePlaylist, key); err != nil {
		log.Printf("[proxy] cache read failed for %s: %v", target.Host, err)
	} else if found {
		return &Result{Body: cached, CacheHit: true}, nil
	}

	body, err := s.fetch(ctx, target, callerUA)
	if err != nil {
		return nil, err
	}

	rewritten := []byte(RewritePlaylist(string(body), target, proxyBase))

	if err := s.store.Set(ctx, store.NamespacePlaylist, key, rewritten, s.ttl); err != nil {
		log.Printf("[proxy] cache write failed for %s: %v", target.Host, err)
	}

	return &Result{Body: rewritten, CacheHit: false}, nil
}

func (s *Service) fetch(ctx context.Context, target *url.URL, callerUA string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build playlist request: %w", err)
	}

	ua := callerUA
	if ua == "" {
		ua = s.userAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Referer", target.Scheme+"://"+target.Host)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, URL: target.String()}
	}

	limited := io.LimitReader(resp.Body, s.maxSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	if int64(len(body)) > s.maxSize {
		return nil, ErrPlaylistTooLarge
	}
	return body, nil
}
