package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/domain/shared"
	"github.com/bau/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCompanyRepository implements provisioning.CompanyRepository using GORM
type GormCompanyRepository struct {
	db *gorm.DB
}

// NewGormCompanyRepository creates a new GormCompanyRepository
func NewGormCompanyRepository(db *gorm.DB) *GormCompanyRepository {
	return &GormCompanyRepository{db: db}
}

// Record inserts the company in its own transaction. Nothing is visible to
// other sessions unless the insert commits.
func (r *GormCompanyRepository) Record(ctx context.Context, company *provisioning.Company) error {
	model := models.CompanyModelFromDomain(company)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", provisioning.ErrCompanyAlreadyExists, company.TenantDBName)
		}
		return fmt.Errorf("record company: %w", err)
	}
	return nil
}

// FindByID finds a company by its ID
func (r *GormCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*provisioning.Company, error) {
	var model models.CompanyModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, provisioning.ErrCompanyNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenantDBName finds the company owning a tenant database
func (r *GormCompanyRepository) FindByTenantDBName(ctx context.Context, name string) (*provisioning.Company, error) {
	var model models.CompanyModel
	if err := r.db.WithContext(ctx).
		Where("tenant_db_name = ?", strings.ToLower(name)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, provisioning.ErrCompanyNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByTenantDBName reports whether a company already owns the name
func (r *GormCompanyRepository) ExistsByTenantDBName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CompanyModel{}).
		Where("tenant_db_name = ?", strings.ToLower(name)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll finds companies matching the filter
func (r *GormCompanyRepository) FindAll(ctx context.Context, filter shared.Filter) ([]provisioning.Company, error) {
	var rows []models.CompanyModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.CompanyModel{}), filter)

	for _, col := range companyOrder(filter.OrderBy, filter.OrderDir) {
		query = query.Order(col)
	}

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	companies := make([]provisioning.Company, len(rows))
	for i := range rows {
		companies[i] = *rows[i].ToDomain()
	}
	return companies, nil
}

// Count counts companies matching the filter
func (r *GormCompanyRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.CompanyModel{}), filter).Count(&count).Error
	return count, err
}

func (r *GormCompanyRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		keyword := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR tenant_db_name LIKE ? OR LOWER(admin_email) LIKE ?",
			keyword, keyword, keyword)
	}
	return query
}

// isUniqueViolation recognises duplicate keys across the postgres and
// sqlite dialects, with or without GORM error translation
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

var _ provisioning.CompanyRepository = (*GormCompanyRepository)(nil)
