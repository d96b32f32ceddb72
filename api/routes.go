package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"streampick/handlers"
)

// corsMiddleware handles CORS for all routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts all endpoints onto the provided router.
func Register(
	r *mux.Router,
	proxyHandler *handlers.ProxyHandler,
	cacheHandler *handlers.CacheHandler,
	prewarmHandler *handlers.PrewarmHandler,
) {
	r.Use(corsMiddleware)

	r.HandleFunc("/proxy", proxyHandler.Playlist).Methods(http.MethodGet)

	r.HandleFunc("/cache", cacheHandler.Lookup).Methods(http.MethodGet)
	r.HandleFunc("/cache", cacheHandler.Write).Methods(http.MethodPost)

	r.HandleFunc("/prewarm/status", prewarmHandler.Status).Methods(http.MethodGet)
	r.HandleFunc("/prewarm", prewarmHandler.SetWatchlist).Methods(http.MethodPost)

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
}
