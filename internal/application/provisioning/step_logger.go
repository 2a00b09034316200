package provisioning

import (
	"context"
	"fmt"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StepLogger persists step outcomes to the audit trail and mirrors them to
// a progress sink
type StepLogger struct {
	logs    provisioning.LogRepository
	sink    provisioning.ProgressSink
	metrics *telemetry.ProvisioningMetrics
	logger  *zap.Logger
}

// NewStepLogger creates a StepLogger. A nil sink discards broadcasts.
func NewStepLogger(
	logs provisioning.LogRepository,
	sink provisioning.ProgressSink,
	metrics *telemetry.ProvisioningMetrics,
	logger *zap.Logger,
) *StepLogger {
	if sink == nil {
		sink = provisioning.NopProgressSink
	}
	return &StepLogger{logs: logs, sink: sink, metrics: metrics, logger: logger}
}

// WithSink returns a copy that broadcasts to sink
func (l *StepLogger) WithSink(sink provisioning.ProgressSink) *StepLogger {
	if sink == nil {
		return l
	}
	clone := *l
	clone.sink = sink
	return &clone
}

// Log appends one audit entry and then broadcasts it. Only the append can
// fail the call.
func (l *StepLogger) Log(ctx context.Context, companyID uuid.UUID, tenantDB, step string, status provisioning.StepStatus, message string) error {
	entry := provisioning.NewLogEntry(companyID, step, status, message)
	if err := l.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("write provisioning log %s/%s: %w", step, status, err)
	}
	l.metrics.RecordStep(ctx, step, string(status))
	l.broadcast(ctx, provisioning.NewProgressEvent(entry, tenantDB))
	return nil
}

// Announce broadcasts a Started event without persisting it
func (l *StepLogger) Announce(ctx context.Context, companyID uuid.UUID, tenantDB, step, message string) {
	entry := provisioning.NewLogEntry(companyID, step, provisioning.StepStatusStarted, message)
	l.metrics.RecordStep(ctx, step, string(provisioning.StepStatusStarted))
	l.broadcast(ctx, provisioning.NewProgressEvent(entry, tenantDB))
}

func (l *StepLogger) broadcast(ctx context.Context, event provisioning.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("Progress broadcast panicked",
				zap.String("step", event.Step),
				zap.Any("panic", r),
			)
		}
	}()

	if err := l.sink.Broadcast(ctx, provisioning.ProgressEventName, event); err != nil {
		l.logger.Warn("Progress broadcast failed",
			zap.String("step", event.Step),
			zap.String("status", string(event.Status)),
			zap.Error(err),
		)
	}
}
