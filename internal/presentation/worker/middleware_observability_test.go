package workerpresentation

import (
	"context"
	"testing"

	domoutbox "github.com/Zhima-Mochi/minishop-delivery/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (r *recordingSubscriber) Subscribe(name string, h domoutbox.Handler) {
	r.handlers[name] = h
}

type evt struct{}

func (evt) EventName() string { return "user.deleted" }

func TestSubscriberInjectsEventLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zaplogger.New(zap.New(core))

	rec := &recordingSubscriber{handlers: map[string]domoutbox.Handler{}}
	Subscriber(rec, base).Subscribe("user.deleted", func(ctx context.Context, _ domoutbox.Event) error {
		logctx.From(ctx).Info("handled")
		return nil
	})

	require.Contains(t, rec.handlers, "user.deleted")
	require.NoError(t, rec.handlers["user.deleted"](context.Background(), evt{}))

	entries := logs.FilterMessage("handled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "user.deleted", fields["event"])
	assert.NotEmpty(t, fields["event_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithEventContextKeepsGivenID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := WithEventContext(context.Background(), zaplogger.New(zap.New(core)), trace.TraceID{}, trace.SpanID{},
		map[string]string{"event_id": "evt-1"})
	logctx.From(ctx).Info("x")
	assert.Equal(t, "evt-1", logs.All()[0].ContextMap()["event_id"])
}
