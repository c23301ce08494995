package httppresentation

import (
	"net/http"

	apporder "github.com/Zhima-Mochi/minishop-delivery/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/order"
)

type createOrderRequest struct {
	Email         string `json:"email"`
	PaymentMethod string `json:"paymentMethod"`
}

type orderResponse struct {
	*domain.Order
	Warning string `json:"warning,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	res, err := h.svc.CreateOrder.Execute(r.Context(), apporder.CreateOrderInput{
		Token:         r.Header.Get(headerToken),
		Email:         req.Email,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: res.Order, Warning: res.Warning})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOrder.Execute(r.Context(), r.Header.Get(headerToken))
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
