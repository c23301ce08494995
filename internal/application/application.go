package application

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// KeyLocker grants mutual exclusion per key.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Clock returns the current time.
type Clock func() time.Time

const spanPrefix = "UC."

// Instrument reports RED metrics, a span and a use_case_done log line for
// every use case run. It is shared by the services of one bounded context.
type Instrument struct {
	tracer       observability.Tracer
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewInstrument(tel observability.Observability, service string) *Instrument {
	metrics := observability.MetricsOf(tel)
	return &Instrument{
		tracer:       observability.TracerOf(tel),
		log:          observability.LoggerOf(tel).With(observability.F("service", service)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (in *Instrument) Logger() observability.Logger { return in.log }

// Run tracks one use case execution.
type Run struct {
	in      *Instrument
	useCase string
	span    trace.Span
	logger  observability.Logger
	start   time.Time
	status  string
}

// Start opens a span named after spanName and stores a logger tagged with
// useCase in the returned context.
func (in *Instrument) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	ctx, logger := logctx.WithFields(ctx, in.log, observability.F("use_case", useCase))
	return ctx, &Run{in: in, useCase: useCase, span: span, logger: logger, start: time.Now()}
}

func (r *Run) Logger() observability.Logger { return r.logger }

// Status overrides the status text reported when the run ends.
func (r *Run) Status(status string) { r.status = status }

// End records the outcome of err. Call it from a defer.
func (r *Run) End(err error, fields ...observability.Field) {
	lat := time.Since(r.start).Seconds()
	outcome := Outcome(err)
	status := r.status
	if status == "" {
		status = "OK"
		if err != nil {
			status = "ERROR"
		}
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, status)
		} else {
			r.span.SetStatus(codes.Ok, status)
		}
		r.span.End()
	}

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", outcome),
	)
	r.in.durHistogram.Observe(lat, observability.L("use_case", r.useCase))

	fields = append(fields,
		observability.F("outcome", outcome),
		observability.F("status", status),
		observability.F("latency_seconds", lat),
	)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
		if cause := apperr.Cause(err); cause != err {
			fields = append(fields, observability.F("cause", cause.Error()))
		}
	}
	r.logger.Info("use_case_done", fields...)
}

// Outcome classifies err for metric labels. Caller mistakes are "rejected",
// everything else that failed is "error".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperr.ErrPersistence),
		errors.Is(err, apperr.ErrExternalService):
		return "error"
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrUnauthorized),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrInvalidCredentials),
		errors.Is(err, apperr.ErrExpired),
		errors.Is(err, apperr.ErrNotImplemented):
		return "rejected"
	default:
		return "error"
	}
}
