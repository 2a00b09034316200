package provisioning

import "github.com/bau/backend/internal/domain/shared"

var (
	ErrTenantDatabaseExists   = shared.NewDomainError("TENANT_DB_EXISTS", "Tenant database already exists")
	ErrCompanyAlreadyExists   = shared.NewDomainError("COMPANY_EXISTS", "Company metadata already recorded")
	ErrProvisioningInProgress = shared.NewDomainError("PROVISIONING_IN_PROGRESS", "Another provisioning run holds this tenant name")
	ErrScriptNotFound         = shared.NewDomainError("SCRIPT_NOT_FOUND", "Schema script not found")
	ErrInvalidTransition      = shared.NewDomainError("INVALID_TRANSITION", "Invalid provisioning state transition")
	ErrCompanyNotFound        = shared.NewDomainError("NOT_FOUND", "Company not found")
)
