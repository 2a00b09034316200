package models

import (
	"time"

	"github.com/bau/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRecord holds the key columns every master catalog row carries
type CatalogRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate fills an empty key and creation time
func (r *CatalogRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (r CatalogRecord) entity() shared.BaseEntity {
	return shared.BaseEntity{ID: r.ID, CreatedAt: r.CreatedAt}
}

func catalogRecordOf(e shared.BaseEntity) CatalogRecord {
	return CatalogRecord{ID: e.ID, CreatedAt: e.CreatedAt}
}
