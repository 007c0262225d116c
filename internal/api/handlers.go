package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/example/stockroom/internal/api/middleware"
	"github.com/example/stockroom/internal/console"
	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/filter"
	"github.com/example/stockroom/internal/gate"
	"github.com/example/stockroom/internal/gateway"
)

// Handlers expose a session's console over HTTP.
type Handlers struct {
	registry *console.Registry
}

func NewHandlers(registry *console.Registry) *Handlers {
	return &Handlers{registry: registry}
}

// ConsoleResponse is returned by the page load and by every operation that
// changes what the console shows.
type ConsoleResponse struct {
	State   gate.State       `json:"state"`
	Email   string           `json:"email,omitempty"`
	Role    string           `json:"role,omitempty"`
	View    *console.View    `json:"view,omitempty"`
	Notices []console.Notice `json:"notices"`
}

func newConsoleResponse(c *console.Console) ConsoleResponse {
	res := c.Access()
	view := c.View()
	resp := ConsoleResponse{
		State:   res.State,
		Email:   res.Actor(),
		View:    &view,
		Notices: c.Notices(),
	}
	if res.Profile != nil {
		resp.Role = string(res.Profile.EffectiveRole())
	}
	return resp
}

// PageLoad resolves the access state for the request's session and, for
// active users, opens a freshly loaded console.
func (h *Handlers) PageLoad(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	c, res, err := h.registry.Open(r.Context(), sessionID)
	if err != nil {
		log.Printf("[API] Page load failed: %v", err)
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"state": string(res.State),
			"error": err.Error(),
		})
		return
	}
	if res.State == gate.Rejected {
		clearAuthCookies(w)
	}
	if c == nil {
		respondJSON(w, http.StatusOK, ConsoleResponse{
			State:   res.State,
			Email:   res.Actor(),
			Notices: []console.Notice{},
		})
		return
	}

	respondJSON(w, http.StatusOK, newConsoleResponse(c))
}

// Product Handlers

func (h *Handlers) GetView(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newConsoleResponse(c))
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	var form product.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	draft, err := form.ParseForm()
	if err != nil {
		respondError(w, err)
		return
	}

	p, err := c.Create(r.Context(), draft)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := newConsoleResponse(c)
	respondJSON(w, http.StatusCreated, map[string]any{
		"product": p,
		"console": resp,
	})
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	var form product.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	draft, err := form.ParseForm()
	if err != nil {
		respondError(w, err)
		return
	}

	if err := c.Update(r.Context(), r.PathValue("id"), draft); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newConsoleResponse(c))
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	if err := c.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newConsoleResponse(c))
}

func (h *Handlers) AdjustStock(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	var req struct {
		Delta int    `json:"delta"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := c.AdjustStock(r.Context(), r.PathValue("id"), req.Delta, req.Name); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newConsoleResponse(c))
}

func (h *Handlers) ValidateFields(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	var req struct {
		Stock string `json:"stock"`
		Price string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	check, err := c.ValidateFields(req.Stock, req.Price)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, check)
}

// Filter and Search Handlers

func (h *Handlers) SetFilter(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	var patch filter.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := c.SetFilter(patch); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newConsoleResponse(c))
}

func (h *Handlers) ClearFilters(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	if err := c.ClearFilters(); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newConsoleResponse(c))
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	if err := c.Search(r.URL.Query().Get("q")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newConsoleResponse(c))
}

// Activity and Report Handlers

func (h *Handlers) RecentActivity(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	entries, err := c.RecentActivity()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handlers) LowStockReport(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	products, err := c.LowStockReport()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// Helper functions

// console returns the open console for the request's session, running a page
// load first when none is open. It writes the response itself when the
// session cannot use the console.
func (h *Handlers) console(w http.ResponseWriter, r *http.Request) (*console.Console, bool) {
	sessionID := middleware.GetSessionID(r.Context())
	if c, ok := h.registry.Get(sessionID); ok {
		return c, true
	}

	c, res, err := h.registry.Open(r.Context(), sessionID)
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	if c == nil {
		if res.State == gate.Rejected {
			clearAuthCookies(w)
		}
		respondJSON(w, http.StatusForbidden, map[string]string{
			"state": string(res.State),
			"error": console.ErrForbidden.Error(),
		})
		return nil, false
	}
	return c, true
}

// respondError maps the console error taxonomy onto status codes.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, console.ErrForbidden):
		respondJSONError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, product.ErrValidation):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, gateway.ErrNotFound):
		respondJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, console.ErrBackend), errors.Is(err, gate.ErrProfileUnavailable):
		respondJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		log.Printf("[API] Unexpected error: %v", err)
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
