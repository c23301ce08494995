package application

import (
	"context"
	"errors"
	"testing"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/stretchr/testify/assert"
)

type countingCounter struct {
	labels [][]observability.Label
}

func (c *countingCounter) Add(_ float64, labels ...observability.Label) {
	c.labels = append(c.labels, labels)
}

type fakeMetrics struct{ req *countingCounter }

func (m fakeMetrics) Counter(name observability.MetricKey) observability.Counter {
	if name == observability.MUsecaseRequests {
		return m.req
	}
	return observability.NopCounter()
}

func (fakeMetrics) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

type fakeTel struct{ m fakeMetrics }

func (fakeTel) Tracer() observability.Tracer     { return observability.NopTracer() }
func (fakeTel) Logger() observability.Logger     { return observability.NopLogger() }
func (t fakeTel) Metrics() observability.Metrics { return t.m }

func TestRunCountsOutcome(t *testing.T) {
	req := &countingCounter{}
	in := NewInstrument(fakeTel{m: fakeMetrics{req: req}}, "test")

	_, run := in.Start(context.Background(), "test.op", "Op")
	run.End(nil)
	_, run = in.Start(context.Background(), "test.op", "Op")
	run.End(apperr.Validation("bad"))

	assert.Equal(t, [][]observability.Label{
		{observability.L("use_case", "test.op"), observability.L("outcome", "success")},
		{observability.L("use_case", "test.op"), observability.L("outcome", "rejected")},
	}, req.labels)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "rejected", Outcome(apperr.New(apperr.ErrConflict, "x")))
	assert.Equal(t, "error", Outcome(apperr.Persistence(errors.New("disk"), "x")))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
