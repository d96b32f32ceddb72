package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"streampick/models"
	"streampick/services/store"
)

// bestSourceTTL is the fixed lifetime of explicitly written entries.
const bestSourceTTL = 24 * time.Hour

// CacheHandler exposes read and write access to the best-source cache.
type CacheHandler struct {
	store store.Store
	auth  AuthChecker
}

func NewCacheHandler(st store.Store, auth AuthChecker) *CacheHandler {
	return &CacheHandler{store: st, auth: auth}
}

type cacheLookupResponse struct {
	Hit  bool               `json:"hit"`
	Data *models.BestSource `json:"data,omitempty"`
}

// Lookup handles GET /cache?title=<t>&year=<y>.
func (h *CacheHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		http.Error(w, "title parameter is required", http.StatusBadRequest)
		return
	}
	item := models.PrewarmItem{Title: title, Year: r.URL.Query().Get("year")}

	raw, found, err := h.store.Get(r.Context(), store.NamespaceBestSource, item.Key())
	if err != nil {
		// Store trouble reads as a miss; the caller falls back to live resolution.
		log.Printf("[cache] read failed for %q: %v", item.Key(), err)
		found = false
	}

	resp := cacheLookupResponse{}
	if found {
		var entry models.BestSource
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Printf("[cache] corrupt entry for %q: %v", item.Key(), err)
		} else {
			resp.Hit = true
			resp.Data = &entry
		}
	}

	writeJSON(w, resp)
}

// cacheWriteRequest covers both POST /cache bodies: a single explicit
// write, or a batched existence check when items is present.
type cacheWriteRequest struct {
	Title      string               `json:"title"`
	Year       string               `json:"year"`
	Source     string               `json:"source"`
	ID         string               `json:"id"`
	SourceName string               `json:"source_name"`
	Items      []models.PrewarmItem `json:"items"`
}

// Write handles POST /cache.
func (h *CacheHandler) Write(w http.ResponseWriter, r *http.Request) {
	var req cacheWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	if req.Items != nil {
		h.batchCheck(w, r, req.Items)
		return
	}

	info, err := h.auth.Check(r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}
	if info == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !info.Elevated() {
		http.Error(w, "elevated role required", http.StatusForbidden)
		return
	}

	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Source) == "" ||
		strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.SourceName) == "" {
		http.Error(w, "title, source, id and source_name are required", http.StatusBadRequest)
		return
	}

	entry := models.NewBestSource(req.Source, req.ID, req.SourceName, bestSourceTTL)
	raw, err := json.Marshal(entry)
	if err != nil {
		http.Error(w, "failed to encode entry", http.StatusInternalServerError)
		return
	}

	key := models.PrewarmItem{Title: req.Title, Year: req.Year}.Key()
	if err := h.store.Set(r.Context(), store.NamespaceBestSource, key, raw, bestSourceTTL); err != nil {
		log.Printf("[cache] write failed for %q: %v", key, err)
		http.Error(w, "cache write failed", http.StatusInternalServerError)
		return
	}

	log.Printf("[cache] wrote %q -> %s/%s (by %s)", key, entry.Source, entry.ID, info.Username)
	writeJSON(w, cacheLookupResponse{Hit: true, Data: &entry})
}

// batchCheck answers which of the given identities currently have a cache
// entry, with one store round trip.
func (h *CacheHandler) batchCheck(w http.ResponseWriter, r *http.Request, items []models.PrewarmItem) {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		keys = append(keys, item.Key())
	}

	found := map[string][]byte{}
	if len(keys) > 0 {
		var err error
		found, err = h.store.GetMany(r.Context(), store.NamespaceBestSource, keys)
		if err != nil {
			log.Printf("[cache] batch check failed: %v", err)
			found = map[string][]byte{}
		}
	}

	results := make(map[string]bool, len(keys))
	for _, key := range keys {
		_, hit := found[key]
		results[key] = hit
	}

	writeJSON(w, map[string]any{"results": results})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}
