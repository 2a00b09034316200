package provisioning

import (
	"errors"
	"testing"

	"github.com/bau/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompany(t *testing.T) {
	req := ProvisioningRequest{
		CompanyName: "Acme Corp",
		AdminEmail:  "a@acme.com",
		BillingPlan: "standard",
		Modules:     []string{"Billing", "Inventory"},
	}

	t.Run("populates metadata", func(t *testing.T) {
		id := uuid.New()
		c, err := NewCompany(id, req, "bau_acme_corp")
		require.NoError(t, err)

		assert.Equal(t, id, c.ID)
		assert.Equal(t, "Acme Corp", c.Name)
		assert.Equal(t, "bau_acme_corp", c.TenantDBName)
		assert.Equal(t, "Billing,Inventory", c.ModulesEnabled)
		assert.Equal(t, []string{"Billing", "Inventory"}, c.Modules())
		assert.False(t, c.CreatedAt.IsZero())
		assert.Empty(t, c.DomainEvents())
	})

	t.Run("empty modules are stored as empty string", func(t *testing.T) {
		r := req
		r.Modules = nil
		c, err := NewCompany(uuid.New(), r, "bau_acme_corp")
		require.NoError(t, err)
		assert.Equal(t, "", c.ModulesEnabled)
		assert.Empty(t, c.Modules())
	})

	t.Run("rejects nil id", func(t *testing.T) {
		_, err := NewCompany(uuid.Nil, req, "bau_acme_corp")
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "INVALID_COMPANY_ID", de.Code)
	})

	t.Run("rejects empty tenant db name", func(t *testing.T) {
		_, err := NewCompany(uuid.New(), req, " ")
		assert.Error(t, err)
	})

	t.Run("mark provisioned raises event", func(t *testing.T) {
		c, err := NewCompany(uuid.New(), req, "bau_acme_corp")
		require.NoError(t, err)

		c.MarkProvisioned()

		events := c.DomainEvents()
		require.Len(t, events, 1)
		ev, ok := events[0].(*CompanyProvisionedEvent)
		require.True(t, ok)
		assert.Equal(t, EventTypeCompanyProvisioned, ev.EventType())
		assert.Equal(t, c.ID, ev.AggregateID())
		assert.Equal(t, []string{"Billing", "Inventory"}, ev.Modules)
	})
}

func TestProvisioningRequest_Normalized(t *testing.T) {
	r := ProvisioningRequest{
		CompanyName: "  Acme ",
		AdminEmail:  " a@acme.com",
		Modules:     []string{" Billing", "", "  "},
	}.Normalized()

	assert.Equal(t, "Acme", r.CompanyName)
	assert.Equal(t, "a@acme.com", r.AdminEmail)
	assert.Equal(t, []string{"Billing"}, r.Modules)

	r = ProvisioningRequest{Modules: []string{"Billing", "HR", " Billing", "HR", "billing"}}.Normalized()
	assert.Equal(t, []string{"Billing", "HR", "billing"}, r.Modules)
}

func TestNewCompany_RepeatedModulesStoredOnce(t *testing.T) {
	c, err := NewCompany(uuid.New(), ProvisioningRequest{
		CompanyName: "Acme",
		Modules:     []string{"Billing", "Billing", "Inventory"},
	}, "bau_acme")
	require.NoError(t, err)

	assert.Equal(t, "Billing,Inventory", c.ModulesEnabled)
	assert.Equal(t, []string{"Billing", "Inventory"}, c.Modules())
}

func TestResults(t *testing.T) {
	id := uuid.New()
	ok := Succeeded(id, "bau_x")
	assert.True(t, ok.Success)
	assert.Equal(t, id, *ok.CompanyID)
	assert.Empty(t, ok.Error)

	failed := Failed(errors.New("boom"))
	assert.False(t, failed.Success)
	assert.Nil(t, failed.CompanyID)
	assert.Equal(t, "boom", failed.Error)

	assert.NotEmpty(t, Failed(nil).Error)
}
