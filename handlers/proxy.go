package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"streampick/services/proxy"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// ProxyHandler serves rewritten HLS playlists from the playlist proxy.
type ProxyHandler struct {
	svc *proxy.Service
}

func NewProxyHandler(svc *proxy.Service) *ProxyHandler {
	return &ProxyHandler{svc: svc}
}

// Playlist handles GET /proxy?url=<absolute playlist URL>.
func (h *ProxyHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		http.Error(w, "url parameter is required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Playlist(r.Context(), rawURL, r.UserAgent(), proxyBase(r))
	if err != nil {
		var upstream *proxy.UpstreamError
		switch {
		case errors.As(err, &upstream):
			// The origin's verdict is the caller's verdict.
			http.Error(w, upstream.Error(), upstream.StatusCode)
		case errors.Is(err, proxy.ErrInvalidURL):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, proxy.ErrPlaylistTooLarge):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			log.Printf("[proxy] playlist fetch failed: %v", err)
			http.Error(w, "failed to fetch playlist", http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	if result.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Write(result.Body)
}

// proxyBase reconstructs the absolute URL of this proxy endpoint so nested
// master-playlist references can point back at us.
func proxyBase(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host + r.URL.Path
}
