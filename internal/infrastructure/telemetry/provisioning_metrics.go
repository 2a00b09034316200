package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Provisioning outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

const provisioningMeterName = "bau-backend/provisioning"

// ProvisioningMetrics records tenant provisioning runs. A nil receiver is a
// no-op so callers never have to guard.
type ProvisioningMetrics struct {
	requests      *Counter
	duration      *Histogram
	steps         *Counter
	compensations *Counter
	inFlight      *UpDownCounter
}

// NewProvisioningMetrics registers the provisioning instruments on meter
func NewProvisioningMetrics(meter metric.Meter) (*ProvisioningMetrics, error) {
	requests, err := NewCounter(meter, "provisioning_requests_total",
		"Tenant provisioning requests by outcome", "{request}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "provisioning_duration_seconds",
		Description: "Wall time of a provisioning run",
		Unit:        "s",
		Buckets:     ProvisioningLatencyBuckets,
	})
	if err != nil {
		return nil, err
	}
	steps, err := NewCounter(meter, "provisioning_steps_total",
		"Provisioning step transitions by step and status", "{step}")
	if err != nil {
		return nil, err
	}
	compensations, err := NewCounter(meter, "provisioning_compensations_total",
		"Compensating actions executed after a failed step", "{action}")
	if err != nil {
		return nil, err
	}
	inFlight, err := NewUpDownCounter(meter, "provisioning_in_flight",
		"Provisioning runs currently executing", "{run}")
	if err != nil {
		return nil, err
	}

	return &ProvisioningMetrics{
		requests:      requests,
		duration:      duration,
		steps:         steps,
		compensations: compensations,
		inFlight:      inFlight,
	}, nil
}

// Begin marks a run as started and returns the function that ends it.
// Only the first call of the returned function is recorded.
func (m *ProvisioningMetrics) Begin(ctx context.Context) func(outcome, errorCode string) {
	if m == nil {
		return func(string, string) {}
	}
	start := time.Now()
	m.inFlight.Add(ctx, 1)

	var once sync.Once
	return func(outcome, errorCode string) {
		once.Do(func() { m.end(ctx, start, outcome, errorCode) })
	}
}

func (m *ProvisioningMetrics) end(ctx context.Context, start time.Time, outcome, errorCode string) {
	m.inFlight.Add(ctx, -1)
	attrs := []attribute.KeyValue{AttrOutcome.String(outcome)}
	if errorCode != "" {
		attrs = append(attrs, AttrErrorCode.String(errorCode))
	}
	m.requests.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, time.Since(start), AttrOutcome.String(outcome))
}

// RecordStep counts a step transition
func (m *ProvisioningMetrics) RecordStep(ctx context.Context, step, status string) {
	if m == nil {
		return
	}
	m.steps.Inc(ctx, AttrStep.String(step), AttrStatus.String(status))
}

// RecordCompensation counts an executed compensating action
func (m *ProvisioningMetrics) RecordCompensation(ctx context.Context, step string, failed bool) {
	if m == nil {
		return
	}
	status := OutcomeSuccess
	if failed {
		status = OutcomeFailure
	}
	m.compensations.Inc(ctx, AttrStep.String(step), AttrStatus.String(status))
}
