package provisioning

import (
	"time"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/google/uuid"
)

// CompanyResponse is the read model of a provisioned company
type CompanyResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	TenantDBName string    `json:"tenantDbName"`
	AdminEmail   string    `json:"adminEmail"`
	BillingPlan  string    `json:"billingPlan"`
	Modules      []string  `json:"modules"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ToCompanyResponse maps the domain company
func ToCompanyResponse(c *provisioning.Company) CompanyResponse {
	return CompanyResponse{
		ID:           c.ID,
		Name:         c.Name,
		TenantDBName: c.TenantDBName,
		AdminEmail:   c.AdminEmail,
		BillingPlan:  c.BillingPlan,
		Modules:      c.Modules(),
		CreatedAt:    c.CreatedAt,
	}
}

// ListCompaniesQuery filters the company list
type ListCompaniesQuery struct {
	Page     int
	PageSize int
	Search   string
	OrderBy  string
	OrderDir string
}

// CompanyLogsResponse is the audit trail of one provisioning run
type CompanyLogsResponse struct {
	CompanyID uuid.UUID                           `json:"companyId"`
	Entries   []provisioning.ProvisioningLogEntry `json:"entries"`
}
