package models

import (
	"time"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CompanyModel is the companies row of the master catalog
type CompanyModel struct {
	CatalogRecord
	Name           string `gorm:"type:varchar(200);not null"`
	TenantDBName   string `gorm:"column:tenant_db_name;type:varchar(63);not null;uniqueIndex"`
	AdminEmail     string `gorm:"type:varchar(254);not null;default:''"`
	BillingPlan    string `gorm:"type:varchar(50);not null;default:''"`
	ModulesEnabled string `gorm:"type:text;not null;default:''"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the model to a domain Company
func (m *CompanyModel) ToDomain() *provisioning.Company {
	return &provisioning.Company{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: m.entity()},
		Name:              m.Name,
		TenantDBName:      m.TenantDBName,
		AdminEmail:        m.AdminEmail,
		BillingPlan:       m.BillingPlan,
		ModulesEnabled:    m.ModulesEnabled,
	}
}

// CompanyModelFromDomain converts a domain Company to its model
func CompanyModelFromDomain(c *provisioning.Company) *CompanyModel {
	return &CompanyModel{
		CatalogRecord:  catalogRecordOf(c.BaseEntity),
		Name:           c.Name,
		TenantDBName:   c.TenantDBName,
		AdminEmail:     c.AdminEmail,
		BillingPlan:    c.BillingPlan,
		ModulesEnabled: c.ModulesEnabled,
	}
}

// ProvisioningLogModel is one provisioning_logs row
type ProvisioningLogModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index:idx_provisioning_logs_company,priority:1"`
	Step      string    `gorm:"type:varchar(100);not null"`
	Status    string    `gorm:"type:varchar(20);not null;index"`
	Message   string    `gorm:"type:text;not null;default:''"`
	Timestamp time.Time `gorm:"not null;index:idx_provisioning_logs_company,priority:2"`
}

// TableName returns the table name for GORM
func (ProvisioningLogModel) TableName() string {
	return "provisioning_logs"
}

// ToDomain converts the model to a domain log entry
func (m *ProvisioningLogModel) ToDomain() provisioning.ProvisioningLogEntry {
	return provisioning.ProvisioningLogEntry{
		ID:        m.ID,
		CompanyID: m.CompanyID,
		Step:      m.Step,
		Status:    provisioning.StepStatus(m.Status),
		Message:   m.Message,
		Timestamp: m.Timestamp,
	}
}

// ProvisioningLogModelFromDomain converts a domain log entry to its model
func ProvisioningLogModelFromDomain(e *provisioning.ProvisioningLogEntry) *ProvisioningLogModel {
	return &ProvisioningLogModel{
		ID:        e.ID,
		CompanyID: e.CompanyID,
		Step:      e.Step,
		Status:    string(e.Status),
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}
}
