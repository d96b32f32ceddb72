// Package probe measures a single candidate source: reachable quality
// tier, round-trip latency, and sampled segment throughput. A probe never
// returns an error; every failure mode collapses into an unsuccessful
// ProbeResult so a bad provider cannot break a selection round.
package probe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"streampick/models"
)

const (
	defaultTimeout     = 8 * time.Second
	defaultSampleBytes = 256 * 1024
	maxPlaylistBytes   = 512 * 1024
)

var resolutionPattern = regexp.MustCompile(`RESOLUTION=(\d+)x(\d+)`)

// Prober performs live measurements against candidate episode URLs.
type Prober struct {
	client      *http.Client
	sampleBytes int64
}

// New creates a prober. A nil client gets one with the given timeout; a
// client without a timeout gets the same bound, so a stalling origin can
// never wedge a selection round.
func New(client *http.Client, timeout time.Duration, sampleBytes int64) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else if client.Timeout == 0 {
		client.Timeout = timeout
	}
	if sampleBytes <= 0 {
		sampleBytes = defaultSampleBytes
	}
	return &Prober{client: client, sampleBytes: sampleBytes}
}

// Probe measures the candidate's representative episode.
func (p *Prober) Probe(ctx context.Context, cand models.CandidateSource) models.ProbeResult {
	target := cand.RepresentativeEpisode()
	if target == "" {
		return models.ProbeResult{Quality: models.QualityUnknown}
	}
	return p.probeURL(ctx, target)
}

func (p *Prober) probeURL(ctx context.Context, rawURL string) models.ProbeResult {
	failed := models.ProbeResult{Quality: models.QualityUnknown}

	playlistURL, err := url.Parse(rawURL)
	if err != nil || playlistURL.Host == "" {
		return failed
	}

	body, ttfb, err := p.fetchLimited(ctx, playlistURL.String(), maxPlaylistBytes)
	if err != nil {
		return failed
	}
	latency := ttfb.Milliseconds()

	height, variantRef, segmentRef := parsePlaylist(string(body))

	// A master playlist points at variants; follow the best one a single
	// level down to reach real segments.
	if segmentRef == "" && variantRef != "" {
		variantURL := resolveProbeRef(playlistURL, variantRef)
		nested, _, err := p.fetchLimited(ctx, variantURL, maxPlaylistBytes)
		if err != nil {
			return failed
		}
		nestedURL, err := url.Parse(variantURL)
		if err != nil {
			return failed
		}
		_, _, segmentRef = parsePlaylist(string(nested))
		playlistURL = nestedURL
	}

	result := models.ProbeResult{
		Quality:   models.TierForHeight(height),
		LatencyMS: latency,
	}

	if segmentRef == "" {
		return failed
	}

	segmentURL := resolveProbeRef(playlistURL, segmentRef)
	sampleStart := time.Now()
	sample, _, err := p.fetchLimited(ctx, segmentURL, p.sampleBytes)
	elapsed := time.Since(sampleStart)
	if err != nil || len(sample) == 0 {
		return failed
	}

	// Providers sometimes answer segment requests with an HTML error page
	// and a 200 status; reject those outright.
	if kind := mimetype.Detect(sample); kind.Is("text/html") {
		return failed
	}

	if secs := elapsed.Seconds(); secs > 0 {
		result.Throughput = float64(len(sample)) / secs
	}
	result.OK = true
	return result
}

// fetchLimited reads at most limit bytes from rawURL. The returned
// duration covers request start to response headers, so slow body
// transfers do not count against latency.
func (p *Prober) fetchLimited(ctx context.Context, rawURL string, limit int64) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	ttfb := time.Since(start)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ttfb, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil && err != io.EOF {
		return nil, ttfb, err
	}
	return body, ttfb, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "unexpected status " + strconv.Itoa(e.code) }

// parsePlaylist scans playlist text for the highest advertised resolution,
// the variant reference following the best stream-inf tag, and the first
// plain segment reference.
func parsePlaylist(body string) (bestHeight int, variantRef, segmentRef string) {
	pendingVariant := false
	pendingBest := false

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, "#EXT-X-STREAM-INF") {
				pendingVariant = true
				pendingBest = false
				if m := resolutionPattern.FindStringSubmatch(line); len(m) == 3 {
					if h, err := strconv.Atoi(m[2]); err == nil && h > bestHeight {
						bestHeight = h
						pendingBest = true
					}
				} else if bestHeight == 0 {
					pendingBest = true
				}
			}
			continue
		}

		if pendingVariant {
			if pendingBest || variantRef == "" {
				variantRef = line
			}
			pendingVariant = false
			pendingBest = false
			continue
		}

		if segmentRef == "" {
			segmentRef = line
		}
	}
	return bestHeight, variantRef, segmentRef
}

// resolveProbeRef resolves a playlist-internal reference against its
// playlist URL, inheriting the playlist's query string when the reference
// has none (access tokens travel in the query).
func resolveProbeRef(base *url.URL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	resolved := base.ResolveReference(refURL)
	if resolved.RawQuery == "" && base.RawQuery != "" {
		resolved.RawQuery = base.RawQuery
	}
	return resolved.String()
}
