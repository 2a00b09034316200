package provisioning

import (
	"strings"

	"github.com/bau/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const modulesSeparator = ","

// Company is the tenant metadata kept in the master catalog. A row exists
// only for tenants whose provisioning committed; this package never
// mutates it afterwards.
type Company struct {
	shared.BaseAggregateRoot
	Name           string
	TenantDBName   string
	AdminEmail     string
	BillingPlan    string
	ModulesEnabled string
}

// NewCompany builds the metadata record for a tenant whose database has
// been prepared. The id is generated by the caller at the start of the run
// so that log entries and metadata share it.
func NewCompany(id uuid.UUID, req ProvisioningRequest, tenantDBName string) (*Company, error) {
	if id == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COMPANY_ID", "Company id must not be empty")
	}
	if strings.TrimSpace(tenantDBName) == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_DB", "Tenant database name must not be empty")
	}
	if len(tenantDBName) > MaxDatabaseNameLength {
		return nil, shared.NewDomainError("INVALID_TENANT_DB", "Tenant database name exceeds 63 characters")
	}

	return &Company{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(id),
		Name:              req.CompanyName,
		TenantDBName:      tenantDBName,
		AdminEmail:        req.AdminEmail,
		BillingPlan:       req.BillingPlan,
		ModulesEnabled:    JoinModules(req.Modules),
	}, nil
}

// MarkProvisioned records the CompanyProvisioned event. Call it once the
// metadata transaction has committed.
func (c *Company) MarkProvisioned() {
	c.AddDomainEvent(NewCompanyProvisionedEvent(c))
}

// Modules returns the enabled module identifiers
func (c *Company) Modules() []string {
	return SplitModules(c.ModulesEnabled)
}

// JoinModules encodes module identifiers as stored in the catalog, each
// at most once. An empty list is stored as the empty string, never NULL.
func JoinModules(modules []string) string {
	modules = uniqueModules(modules)
	if len(modules) == 0 {
		return ""
	}
	return strings.Join(modules, modulesSeparator)
}

// SplitModules is the inverse of JoinModules
func SplitModules(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, modulesSeparator)
}
