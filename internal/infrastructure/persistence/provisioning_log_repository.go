package persistence

import (
	"context"
	"fmt"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProvisioningLogRepository implements provisioning.LogRepository.
// It must be built on the master connection itself, never on a
// transaction handle, so entries outlive failed runs.
type GormProvisioningLogRepository struct {
	db *gorm.DB
}

// NewGormProvisioningLogRepository creates a new GormProvisioningLogRepository
func NewGormProvisioningLogRepository(db *gorm.DB) *GormProvisioningLogRepository {
	return &GormProvisioningLogRepository{db: db}
}

// Append writes one log entry
func (r *GormProvisioningLogRepository) Append(ctx context.Context, entry *provisioning.ProvisioningLogEntry) error {
	if !entry.Status.IsValid() {
		return fmt.Errorf("append provisioning log: unknown status %q", entry.Status)
	}
	if err := r.db.WithContext(ctx).Create(models.ProvisioningLogModelFromDomain(entry)).Error; err != nil {
		return fmt.Errorf("append provisioning log: %w", err)
	}
	return nil
}

// FindByCompany returns all entries of a company, oldest first
func (r *GormProvisioningLogRepository) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]provisioning.ProvisioningLogEntry, error) {
	var rows []models.ProvisioningLogModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("timestamp ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]provisioning.ProvisioningLogEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

var _ provisioning.LogRepository = (*GormProvisioningLogRepository)(nil)
