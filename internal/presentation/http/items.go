package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/catalog"
)

type createItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type updateItemRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
}

// authenticated resolves the caller's email from the token header. Any
// failure is reported to the client and ok is false.
func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request, notFound int) (string, bool) {
	email, err := h.svc.Tokens.Authenticate(r.Context(), r.Header.Get(headerToken))
	if err != nil {
		h.fail(w, r, err, notFound)
		return "", false
	}
	return email, true
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticated(w, r, http.StatusNotFound); !ok {
		return
	}
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	it, err := h.svc.Catalog.Create(r.Context(), req.Name, req.Description, req.Price)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// handleGetItems returns one item when ?name is given, otherwise the whole catalog.
func (h *Handler) handleGetItems(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticated(w, r, http.StatusNotFound); !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		items, err := h.svc.Catalog.List(r.Context())
		if err != nil {
			h.fail(w, r, err, http.StatusNotFound)
			return
		}
		if items == nil {
			items = []catalog.Item{}
		}
		writeJSON(w, http.StatusOK, items)
		return
	}
	it, err := h.svc.Catalog.Get(r.Context(), name)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticated(w, r, http.StatusBadRequest); !ok {
		return
	}
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		h.fail(w, r, apperr.Validation("Missing required fields"), http.StatusBadRequest)
		return
	}
	it, err := h.svc.Catalog.Update(r.Context(), req.Name, req.Description, req.Price)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticated(w, r, http.StatusBadRequest); !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		h.fail(w, r, apperr.Validation("Missing required fields"), http.StatusBadRequest)
		return
	}
	if err := h.svc.Catalog.Delete(r.Context(), name); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
