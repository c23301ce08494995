package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	appcart "github.com/Zhima-Mochi/minishop-delivery/internal/application/cart"
	appcatalog "github.com/Zhima-Mochi/minishop-delivery/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/minishop-delivery/internal/application/order"
	apptoken "github.com/Zhima-Mochi/minishop-delivery/internal/application/token"
	appuser "github.com/Zhima-Mochi/minishop-delivery/internal/application/user"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Users       *appuser.Service
	Tokens      *apptoken.Service
	Catalog     *appcatalog.Service
	Carts       *appcart.Service
	CreateOrder *apporder.CreateOrderUseCase
	GetOrder    *apporder.GetOrderUseCase
}

type Handler struct {
	svc Services
	log observability.Logger

	reqCounter   observability.Counter   // http_requests_total{method,route,status}
	durHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerToken          = "token"
	maxBodyBytes         = 1 << 20
)

func NewHandler(svc Services, tel observability.Observability) *Handler {
	metrics := observability.MetricsOf(tel)
	return &Handler{
		svc:          svc,
		log:          observability.LoggerOf(tel).With(observability.F("component", componentHTTPHandler)),
		reqCounter:   metrics.Counter(observability.MHTTPRequests),
		durHistogram: metrics.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, struct{}{})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, struct{}{})
	})

	h.handle(r, http.MethodGet, "/ping", h.handlePing)

	h.handle(r, http.MethodPost, "/users", h.handleCreateUser)
	h.handle(r, http.MethodGet, "/users", h.handleGetUser)
	h.handle(r, http.MethodPut, "/users", h.handleUpdateUser)
	h.handle(r, http.MethodDelete, "/users", h.handleDeleteUser)

	h.handle(r, http.MethodPost, "/tokens", h.handleCreateToken)
	h.handle(r, http.MethodGet, "/tokens", h.handleGetToken)
	h.handle(r, http.MethodPut, "/tokens", h.handleExtendToken)
	h.handle(r, http.MethodDelete, "/tokens", h.handleDeleteToken)

	h.handle(r, http.MethodPost, "/items", h.handleCreateItem)
	h.handle(r, http.MethodGet, "/items", h.handleGetItems)
	h.handle(r, http.MethodPut, "/items", h.handleUpdateItem)
	h.handle(r, http.MethodDelete, "/items", h.handleDeleteItem)

	h.handle(r, http.MethodPost, "/carts", h.handleCreateCart)
	h.handle(r, http.MethodGet, "/carts", h.handleGetCart)
	h.handle(r, http.MethodPut, "/carts", h.handleUpdateCart)
	h.handle(r, http.MethodDelete, "/carts", h.handleDeleteCart)

	h.handle(r, http.MethodPost, "/orders", h.handleCreateOrder)
	h.handle(r, http.MethodGet, "/orders", h.handleGetOrder)
	h.handle(r, http.MethodPut, "/orders", h.handleNotImplemented)
	h.handle(r, http.MethodDelete, "/orders", h.handleNotImplemented)

	return r
}

// handle wires one route as Trace → request logger → metrics → access log → handler.
func (h *Handler) handle(r chi.Router, method, route string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
		)(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	r.Method(method, route, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

func (h *Handler) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleNotImplemented(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, apperr.New(apperr.ErrNotImplemented, "Method not implemented"), http.StatusNotFound)
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("minishop.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		route := routeFromContext(parentCtx)

		ctxWithSpan, span := tracer.Start(parentCtx,
			r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.reqCounter.Add(1, labels...)
		h.durHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

// decodeJSON reads the request body into dst. An empty body leaves dst
// untouched so that field checks report what is missing.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("Invalid JSON payload")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
