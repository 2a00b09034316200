package provisioning

import (
	"strings"

	"github.com/google/uuid"
)

// ProvisioningRequest is the input of one provisioning run. It only lives
// for the duration of the call.
type ProvisioningRequest struct {
	CompanyName string   `json:"companyName"`
	AdminEmail  string   `json:"adminEmail"`
	BillingPlan string   `json:"billingPlan"`
	Modules     []string `json:"modules"`
}

// Normalized returns a copy with surrounding whitespace removed. Blank
// and repeated module identifiers are dropped, first occurrence wins.
func (r ProvisioningRequest) Normalized() ProvisioningRequest {
	return ProvisioningRequest{
		CompanyName: strings.TrimSpace(r.CompanyName),
		AdminEmail:  strings.TrimSpace(r.AdminEmail),
		BillingPlan: strings.TrimSpace(r.BillingPlan),
		Modules:     uniqueModules(r.Modules),
	}
}

func uniqueModules(modules []string) []string {
	out := make([]string, 0, len(modules))
	seen := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// ProvisioningResult reports the outcome of a provisioning run
type ProvisioningResult struct {
	Success      bool       `json:"success"`
	CompanyID    *uuid.UUID `json:"companyId,omitempty"`
	TenantDBName string     `json:"tenantDbName,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Succeeded builds a successful result
func Succeeded(companyID uuid.UUID, tenantDBName string) ProvisioningResult {
	return ProvisioningResult{
		Success:      true,
		CompanyID:    &companyID,
		TenantDBName: tenantDBName,
	}
}

// Failed builds a failed result carrying the error message
func Failed(err error) ProvisioningResult {
	msg := "provisioning failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ProvisioningResult{Error: msg}
}
