package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
)

type createTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type extendTokenRequest struct {
	ID     string `json:"id"`
	Extend bool   `json:"extend"`
}

func (h *Handler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.fail(w, r, apperr.Validation("Missing required fields"), http.StatusNotFound)
		return
	}
	tok, err := h.svc.Tokens.Issue(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.fail(w, r, apperr.Validation("Missing required fields"), http.StatusNotFound)
		return
	}
	tok, err := h.svc.Tokens.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handler) handleExtendToken(w http.ResponseWriter, r *http.Request) {
	var req extendTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	if req.ID == "" || !req.Extend {
		h.fail(w, r, apperr.Validation("Missing required field(s) or field(s) are invalid"), http.StatusBadRequest)
		return
	}
	tok, err := h.svc.Tokens.Extend(r.Context(), req.ID)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handler) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.fail(w, r, apperr.Validation("Missing required fields"), http.StatusBadRequest)
		return
	}
	if err := h.svc.Tokens.Revoke(r.Context(), id); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
