package httppresentation

import (
	"net/http"

	appuser "github.com/Zhima-Mochi/minishop-delivery/internal/application/user"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Email    string  `json:"email"`
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	Password *string `json:"password"`
}

var errTokenMismatch = apperr.New(apperr.ErrUnauthorized, "Missing required token in header, or token is invalid")

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	profile, err := h.svc.Users.Create(r.Context(), appuser.CreateInput(req))
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		h.fail(w, r, apperr.Validation("Missing required fields"), http.StatusNotFound)
		return
	}
	if !h.svc.Tokens.Verify(r.Context(), r.Header.Get(headerToken), email) {
		h.fail(w, r, errTokenMismatch, http.StatusNotFound)
		return
	}
	profile, err := h.svc.Users.Get(r.Context(), email)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		h.fail(w, r, apperr.Validation("Missing required fields"), http.StatusBadRequest)
		return
	}
	if !h.svc.Tokens.Verify(r.Context(), r.Header.Get(headerToken), req.Email) {
		h.fail(w, r, errTokenMismatch, http.StatusBadRequest)
		return
	}
	profile, err := h.svc.Users.Update(r.Context(), appuser.UpdateInput(req))
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		h.fail(w, r, apperr.Validation("Missing required fields"), http.StatusBadRequest)
		return
	}
	if !h.svc.Tokens.Verify(r.Context(), r.Header.Get(headerToken), email) {
		h.fail(w, r, errTokenMismatch, http.StatusBadRequest)
		return
	}
	if err := h.svc.Users.Delete(r.Context(), email); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
