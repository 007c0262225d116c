package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/stockroom/internal/domain/audit"
)

// MergeRequest represents the request body for merging a category
type MergeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CategoryStats returns product count and stock value per category.
func (h *Handlers) CategoryStats(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	stats, err := c.CategoryStats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// CountCategory reports how many products carry the category in ?name=.
func (h *Handlers) CountCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	n, err := c.CountCategory(r.Context(), name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"category": name,
		"count":    n,
	})
}

func (h *Handlers) MergeTargets(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	targets, err := c.MergeTargets(r.URL.Query().Get("name"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, targets)
}

func (h *Handlers) MergeCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	moved, err := c.MergeCategory(r.Context(), req.From, req.To)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"moved":   moved,
		"console": newConsoleResponse(c),
	})
}

// History returns the audit log filtered by ?action= and ?q=.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	entries, err := c.History(r.Context(), audit.Action(q.Get("action")), q.Get("q"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
