package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability/logctx"
)

type errorBody struct {
	Error string `json:"Error"`
}

// statusFor maps an error kind to a status code. notFound is the status used
// for ErrNotFound, since mutations on a missing document answer 400.
func statusFor(err error, notFound int) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return notFound
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrInvalidCredentials),
		errors.Is(err, apperr.ErrExpired),
		errors.Is(err, apperr.ErrNotImplemented):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, notFound int) {
	status := statusFor(err, notFound)
	if status >= http.StatusInternalServerError {
		fields := []observability.Field{
			observability.F("status", status),
			observability.F("error", err.Error()),
		}
		if cause := apperr.Cause(err); cause != nil {
			fields = append(fields, observability.F("cause", cause.Error()))
		}
		logctx.FromOr(r.Context(), h.log).Error("http_request_failed", fields...)
	}
	writeJSON(w, status, errorBody{Error: apperr.Message(err)})
}
