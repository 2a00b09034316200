package models

import (
	"testing"
	"time"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyModel_DomainConversion(t *testing.T) {
	c, err := provisioning.NewCompany(uuid.New(), provisioning.ProvisioningRequest{
		CompanyName: "Acme Corp",
		AdminEmail:  "admin@acme.test",
		BillingPlan: "standard",
		Modules:     []string{"crm", "hr"},
	}, "bau_acme_corp")
	require.NoError(t, err)

	m := CompanyModelFromDomain(c)
	assert.Equal(t, c.ID, m.ID)
	assert.Equal(t, c.CreatedAt, m.CreatedAt)
	assert.Equal(t, "crm,hr", m.ModulesEnabled)

	back := m.ToDomain()
	assert.Equal(t, c.ID, back.ID)
	assert.Equal(t, c.TenantDBName, back.TenantDBName)
	assert.Empty(t, back.DomainEvents())
}

func TestCatalogRecord_BeforeCreate(t *testing.T) {
	var r CatalogRecord
	require.NoError(t, r.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	fixed := CatalogRecord{ID: uuid.New(), CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	keep := fixed
	require.NoError(t, keep.BeforeCreate(nil))
	assert.Equal(t, fixed, keep)
}
