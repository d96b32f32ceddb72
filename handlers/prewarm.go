package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"streampick/models"
	"streampick/services/prewarm"
)

// PrewarmHandler exposes the scheduler's admin surface.
type PrewarmHandler struct {
	svc  *prewarm.Service
	auth AuthChecker
}

func NewPrewarmHandler(svc *prewarm.Service, auth AuthChecker) *PrewarmHandler {
	return &PrewarmHandler{svc: svc, auth: auth}
}

// Status handles GET /prewarm/status.
func (h *PrewarmHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Status())
}

type setWatchlistRequest struct {
	Items []models.PrewarmItem `json:"items"`
	Reset bool                 `json:"reset"`
}

// SetWatchlist handles POST /prewarm. Replaces the watch list; with
// reset=true the checked-set is cleared so every title is re-verified.
func (h *PrewarmHandler) SetWatchlist(w http.ResponseWriter, r *http.Request) {
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

	var req setWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.Title) == "" {
			http.Error(w, "every item needs a title", http.StatusBadRequest)
			return
		}
	}

	if req.Reset {
		h.svc.Reset()
	}
	h.svc.SetWatchlist(req.Items)

	writeJSON(w, h.svc.Status())
}
