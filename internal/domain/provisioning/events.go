package provisioning

import (
	"github.com/bau/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeCompany is the aggregate type of provisioning events
const AggregateTypeCompany = "Company"

const (
	EventTypeCompanyProvisioned = "CompanyProvisioned"
	EventTypeProvisioningFailed = "ProvisioningFailed"
)

// CompanyProvisionedEvent is published after the metadata transaction commits
type CompanyProvisionedEvent struct {
	shared.BaseDomainEvent
	Name         string   `json:"name"`
	TenantDBName string   `json:"tenant_db_name"`
	AdminEmail   string   `json:"admin_email"`
	BillingPlan  string   `json:"billing_plan"`
	Modules      []string `json:"modules"`
}

// NewCompanyProvisionedEvent creates a CompanyProvisionedEvent
func NewCompanyProvisionedEvent(c *Company) *CompanyProvisionedEvent {
	return &CompanyProvisionedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCompanyProvisioned, AggregateTypeCompany, c.ID),
		Name:            c.Name,
		TenantDBName:    c.TenantDBName,
		AdminEmail:      c.AdminEmail,
		BillingPlan:     c.BillingPlan,
		Modules:         c.Modules(),
	}
}

// ProvisioningFailedEvent is published when a run ends in Failed
type ProvisioningFailedEvent struct {
	shared.BaseDomainEvent
	CompanyName  string `json:"company_name"`
	TenantDBName string `json:"tenant_db_name"`
	FailedStep   string `json:"failed_step"`
	Reason       string `json:"reason"`
}

// NewProvisioningFailedEvent creates a ProvisioningFailedEvent
func NewProvisioningFailedEvent(companyID uuid.UUID, companyName, tenantDBName, step, reason string) *ProvisioningFailedEvent {
	return &ProvisioningFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProvisioningFailed, AggregateTypeCompany, companyID),
		CompanyName:     companyName,
		TenantDBName:    tenantDBName,
		FailedStep:      step,
		Reason:          reason,
	}
}
