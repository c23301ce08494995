package httppresentation

import (
	"net/http"
)

type cartRequest struct {
	Items []string `json:"items"`
}

func (h *Handler) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authenticated(w, r, http.StatusNotFound)
	if !ok {
		return
	}
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	c, err := h.svc.Carts.Create(r.Context(), email, req.Items)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authenticated(w, r, http.StatusNotFound)
	if !ok {
		return
	}
	c, err := h.svc.Carts.Get(r.Context(), email)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdateCart(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authenticated(w, r, http.StatusBadRequest)
	if !ok {
		return
	}
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	c, err := h.svc.Carts.Update(r.Context(), email, req.Items)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCart(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authenticated(w, r, http.StatusBadRequest)
	if !ok {
		return
	}
	if err := h.svc.Carts.Delete(r.Context(), email); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
