package provisioning

import (
	"context"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LifecycleLogger writes provisioning domain events to the application log
type LifecycleLogger struct {
	logger *zap.Logger
}

// NewLifecycleLogger creates a LifecycleLogger
func NewLifecycleLogger(logger *zap.Logger) *LifecycleLogger {
	return &LifecycleLogger{logger: logger.Named("lifecycle")}
}

// EventTypes implements shared.EventHandler
func (h *LifecycleLogger) EventTypes() []string {
	return []string{provisioning.EventTypeCompanyProvisioned, provisioning.EventTypeProvisioningFailed}
}

// Handle implements shared.EventHandler
func (h *LifecycleLogger) Handle(_ context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *provisioning.CompanyProvisionedEvent:
		h.logger.Info("Company provisioned",
			zap.String("company_id", e.AggregateID().String()),
			zap.String("company_name", e.Name),
			zap.String("tenant_db", e.TenantDBName),
			zap.String("billing_plan", e.BillingPlan),
			zap.Strings("modules", e.Modules),
		)
	case *provisioning.ProvisioningFailedEvent:
		h.logger.Warn("Company provisioning failed",
			zap.String("company_id", e.AggregateID().String()),
			zap.String("company_name", e.CompanyName),
			zap.String("tenant_db", e.TenantDBName),
			zap.String("failed_step", e.FailedStep),
			zap.String("reason", e.Reason),
		)
	default:
		h.logger.Debug("Ignoring event", zap.String("event_type", event.EventType()))
	}
	return nil
}

var _ shared.EventHandler = (*LifecycleLogger)(nil)
