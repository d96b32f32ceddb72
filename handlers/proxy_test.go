package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"streampick/services/proxy"
	"streampick/services/store"
)

func newProxyHandler(t *testing.T) *ProxyHandler {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	svc := proxy.NewService(&http.Client{Timeout: 5 * time.Second}, st, proxy.Options{})
	return NewProxyHandler(svc)
}

func TestProxyMissingURL(t *testing.T) {
	h := newProxyHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/proxy", nil)
	rec := httptest.NewRecorder()
	h.Playlist(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestProxyInvalidURL(t *testing.T) {
	h := newProxyHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/proxy?url=ftp%3A%2F%2Fx%2Fa.m3u8", nil)
	rec := httptest.NewRecorder()
	h.Playlist(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestProxyServesRewrittenPlaylist(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\nseg1.ts\n"))
	}))
	defer upstream.Close()

	h := newProxyHandler(t)
	target := upstream.URL + "/a/p.m3u8?tok=1"

	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+url.QueryEscape(target), nil)
	rec := httptest.NewRecorder()
	h.Playlist(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != playlistContentType {
		t.Errorf("content type = %q", ct)
	}
	if xc := rec.Header().Get("X-Cache"); xc != "MISS" {
		t.Errorf("X-Cache = %q", xc)
	}
	if !strings.Contains(rec.Body.String(), upstream.URL+"/a/seg1.ts?tok=1") {
		t.Errorf("body not rewritten:\n%s", rec.Body.String())
	}

	// Second request hits the playlist cache.
	rec2 := httptest.NewRecorder()
	h.Playlist(rec2, httptest.NewRequest(http.MethodGet, "/proxy?url="+url.QueryEscape(target), nil))
	if xc := rec2.Header().Get("X-Cache"); xc != "HIT" {
		t.Errorf("X-Cache on repeat = %q", xc)
	}
}

func TestProxyRelaysUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer upstream.Close()

	h := newProxyHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+url.QueryEscape(upstream.URL+"/p.m3u8"), nil)
	rec := httptest.NewRecorder()
	h.Playlist(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want upstream 403", rec.Code)
	}
}

func TestProxyBase(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/proxy?url=x", nil)
	req.Host = "pick.example:8080"
	if got := proxyBase(req); got != "http://pick.example:8080/proxy" {
		t.Errorf("proxyBase = %q", got)
	}

	req.Header.Set("X-Forwarded-Proto", "https")
	if got := proxyBase(req); got != "https://pick.example:8080/proxy" {
		t.Errorf("forwarded proxyBase = %q", got)
	}
}
