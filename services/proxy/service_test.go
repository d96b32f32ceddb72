package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"streampick/services/store"
)

func newTestService(t *testing.T, upstream http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cache := store.NewMemoryStore()
	t.Cleanup(func() { _ = cache.Close() })

	return NewService(srv.Client(), cache, Options{TTL: time.Minute}), srv
}

func TestPlaylistFetchAndCache(t *testing.T) {
	var requests int
	svc, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("#EXTM3U\nseg1.ts\n"))
	})

	target := srv.URL + "/a/p.m3u8?tok=1"

	first, err := svc.Playlist(context.Background(), target, "", "https://my.app/proxy")
	if err != nil {
		t.Fatalf("Playlist: %v", err)
	}
	if first.CacheHit {
		t.Error("first request should be a cache miss")
	}
	if !strings.Contains(string(first.Body), "/a/seg1.ts?tok=1") {
		t.Errorf("segment not rewritten: %q", first.Body)
	}

	second, err := svc.Playlist(context.Background(), target, "", "https://my.app/proxy")
	if err != nil {
		t.Fatalf("Playlist (cached): %v", err)
	}
	if !second.CacheHit {
		t.Error("second request should be a cache hit")
	}
	if string(second.Body) != string(first.Body) {
		t.Error("cached body differs from original rewrite")
	}
	if requests != 1 {
		t.Errorf("upstream fetched %d times, want 1", requests)
	}
}

func TestPlaylistSendsRefererAndUserAgent(t *testing.T) {
	var gotReferer, gotUA string
	svc, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("#EXTM3U\n"))
	})

	_, err := svc.Playlist(context.Background(), srv.URL+"/p.m3u8", "custom-player/1.0", "")
	if err != nil {
		t.Fatalf("Playlist: %v", err)
	}
	if gotReferer != srv.URL {
		t.Errorf("Referer = %q, want %q", gotReferer, srv.URL)
	}
	if gotUA != "custom-player/1.0" {
		t.Errorf("User-Agent = %q, want caller's", gotUA)
	}
}

func TestPlaylistDefaultUserAgent(t *testing.T) {
	var gotUA string
	svc, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("#EXTM3U\n"))
	})

	if _, err := svc.Playlist(context.Background(), srv.URL+"/p.m3u8", "", ""); err != nil {
		t.Fatalf("Playlist: %v", err)
	}
	if !strings.Contains(gotUA, "Mozilla") {
		t.Errorf("default User-Agent not applied: %q", gotUA)
	}
}

func TestPlaylistUpstreamErrorCarriesStatus(t *testing.T) {
	svc, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	})

	_, err := svc.Playlist(context.Background(), srv.URL+"/p.m3u8", "", "")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", ue.StatusCode)
	}
}

func TestPlaylistInvalidURL(t *testing.T) {
	cache := store.NewMemoryStore()
	defer cache.Close()
	svc := NewService(nil, cache, Options{})

	for _, raw := range []string{"", "   ", "ftp://host/p.m3u8", "not a url"} {
		if _, err := svc.Playlist(context.Background(), raw, "", ""); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("expected ErrInvalidURL for %q, got %v", raw, err)
		}
	}
}

func TestPlaylistTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	cache := store.NewMemoryStore()
	defer cache.Close()
	svc := NewService(srv.Client(), cache, Options{MaxSize: 1024})

	_, err := svc.Playlist(context.Background(), srv.URL+"/p.m3u8", "", "")
	if !errors.Is(err, ErrPlaylistTooLarge) {
		t.Errorf("expected ErrPlaylistTooLarge, got %v", err)
	}
}

// failingStore always errors; the proxy must degrade to fetch-through.
type failingStore struct{}

func (failingStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, errors.New("store unavailable")
}
func (failingStore) GetMany(context.Context, string, []string) (map[string][]byte, error) {
	return nil, errors.New("store unavailable")
}
func (failingStore) Set(context.Context, string, string, []byte, time.Duration) error {
	return errors.New("store unavailable")
}
func (failingStore) Delete(context.Context, string, string) error {
	return errors.New("store unavailable")
}
func (failingStore) Close() error { return nil }

func TestPlaylistCacheFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\nseg1.ts\n"))
	}))
	defer srv.Close()

	svc := NewService(srv.Client(), failingStore{}, Options{})

	res, err := svc.Playlist(context.Background(), srv.URL+"/a/p.m3u8", "", "")
	if err != nil {
		t.Fatalf("Playlist with failing store: %v", err)
	}
	if res.CacheHit {
		t.Error("failing store reported a cache hit")
	}
	if !strings.Contains(string(res.Body), "seg1.ts") {
		t.Errorf("unexpected body: %q", res.Body)
	}
}
