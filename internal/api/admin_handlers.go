package api

import (
	"net/http"
)

func (h *Handlers) PendingUsers(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	users, err := c.PendingUsers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, newUserResponse(&users[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) ActivateUser(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	if err := c.ActivateUser(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notices": c.Notices()})
}

func (h *Handlers) RejectUser(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}
	if err := c.RejectUser(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notices": c.Notices()})
}
