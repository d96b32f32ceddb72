// Package catalog talks to the configured third-party JSON catalogs that
// list playable sources. Each provider exposes the common videolist API:
// `?ac=videolist&wd=<query>` for search and `?ac=videolist&ids=<id>` for
// detail, returning a `list` of items whose play URL field packs episodes
// as `$`-separated `name$url` pairs joined by `#`.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"streampick/models"
)

// Searcher finds candidate sources across all enabled providers.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.CandidateSource, error)
}

// Detailer fetches the full record (episode URLs included) for one source.
type Detailer interface {
	Detail(ctx context.Context, source, id string) (*models.CandidateSource, error)
}

// Provider is one configured catalog endpoint.
type Provider struct {
	Key  string // stable identifier used in cache entries
	Name string // display name
	API  string // base URL of the videolist endpoint
}

// ErrUnknownProvider is returned by Detail for a source key that is not
// configured.
var ErrUnknownProvider = errors.New("unknown catalog provider")

const (
	defaultTimeout  = 12 * time.Second
	maxResponseSize = 4 << 20
	retryAttempts   = 3
	retryDelay      = 400 * time.Millisecond
)

// Client queries the configured providers over HTTP.
type Client struct {
	providers []Provider
	httpc     *http.Client
}

func NewClient(providers []Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		providers: providers,
		httpc:     &http.Client{Timeout: timeout},
	}
}

// Search queries every provider sequentially and concatenates results in
// provider order. A provider that errors is skipped; Search only fails
// when no provider could be reached at all.
func (c *Client) Search(ctx context.Context, query string) ([]models.CandidateSource, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var (
		out     []models.CandidateSource
		lastErr error
		asked   int
	)
	for _, p := range c.providers {
		asked++
		items, err := c.fetchList(ctx, p, url.Values{"ac": {"videolist"}, "wd": {query}})
		if err != nil {
			log.Printf("[catalog] search %q on %s failed: %v", query, p.Key, err)
			lastErr = err
			continue
		}
		out = append(out, items...)
	}
	if out == nil && lastErr != nil {
		return nil, fmt.Errorf("catalog search failed on all %d providers: %w", asked, lastErr)
	}
	return out, nil
}

// Detail fetches one source by provider key and id.
func (c *Client) Detail(ctx context.Context, source, id string) (*models.CandidateSource, error) {
	p, ok := c.provider(source)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, source)
	}

	items, err := c.fetchList(ctx, p, url.Values{"ac": {"videolist"}, "ids": {id}})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("source %s/%s not found", source, id)
	}
	return &items[0], nil
}

func (c *Client) provider(key string) (Provider, bool) {
	for _, p := range c.providers {
		if p.Key == key {
			return p, true
		}
	}
	return Provider{}, false
}

func (c *Client) fetchList(ctx context.Context, p Provider, params url.Values) ([]models.CandidateSource, error) {
	endpoint, err := url.Parse(p.API)
	if err != nil {
		return nil, fmt.Errorf("provider %s: bad API url: %w", p.Key, err)
	}
	q := endpoint.Query()
	for k, vs := range params {
		q[k] = vs
	}
	endpoint.RawQuery = q.Encode()

	var body []byte
	err = retry.Do(
		func() error {
			b, err := c.get(ctx, endpoint.String())
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	var payload videolistResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("provider %s: decode: %w", p.Key, err)
	}

	out := make([]models.CandidateSource, 0, len(payload.List))
	for _, item := range payload.List {
		out = append(out, item.toCandidate(p))
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("catalog request failed: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Unrecoverable(fmt.Errorf("catalog request failed: %s", resp.Status))
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

type videolistResponse struct {
	List []videolistItem `json:"list"`
}

// videolistItem mirrors the provider wire shape. vod_id arrives as either
// a number or a string depending on the provider, hence json.Number.
type videolistItem struct {
	ID      json.Number `json:"vod_id"`
	Name    string      `json:"vod_name"`
	Year    string      `json:"vod_year"`
	Pic     string      `json:"vod_pic"`
	Content string      `json:"vod_content"`
	PlayURL string      `json:"vod_play_url"`
}

func (it videolistItem) toCandidate(p Provider) models.CandidateSource {
	return models.CandidateSource{
		Source:      p.Key,
		ID:          it.ID.String(),
		SourceName:  p.Name,
		Title:       strings.TrimSpace(it.Name),
		Year:        strings.TrimSpace(it.Year),
		Poster:      it.Pic,
		Description: it.Content,
		Episodes:    parsePlayURL(it.PlayURL),
	}
}

// parsePlayURL splits the packed episode field. Episodes are separated by
// `#`; each episode is `name$url`, and a bare URL without the name part
// is accepted too. Entries that do not look like HTTP URLs are dropped.
func parsePlayURL(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "#")
	urls := make([]string, 0, len(parts))
	for _, part := range parts {
		candidate := part
		if idx := strings.LastIndex(part, "$"); idx >= 0 {
			candidate = part[idx+1:]
		}
		candidate = strings.TrimSpace(candidate)
		if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
			urls = append(urls, candidate)
		}
	}
	if len(urls) == 0 {
		return nil
	}
	return urls
}
