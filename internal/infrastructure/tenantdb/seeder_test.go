package tenantdb

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSeedCompany(t *testing.T, modules ...string) *provisioning.Company {
	t.Helper()
	c, err := provisioning.NewCompany(uuid.New(), provisioning.ProvisioningRequest{
		CompanyName: "Acme Corp",
		AdminEmail:  "a@acme.com",
		Modules:     modules,
	}, "bau_acme_corp")
	require.NoError(t, err)
	return c
}

func TestSeeder_Seed(t *testing.T) {
	ctx := context.Background()
	seeder := NewSeeder(zap.NewNop())

	t.Run("seeds roles, one group per module and the admin", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		for _, role := range []string{RoleAdministrator, RoleManager, RoleEmployee} {
			mock.ExpectExec("INSERT INTO roles").
				WithArgs(sqlmock.AnyArg(), role, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
		}
		for _, module := range []string{"Billing", "Inventory"} {
			mock.ExpectExec("INSERT INTO permission_groups").
				WithArgs(sqlmock.AnyArg(), module+" Access", module, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
		}
		mock.ExpectExec("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "a@acme.com", sqlmock.AnyArg(), "invited").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, seeder.Seed(ctx, db, newSeedCompany(t, "Billing", "Inventory")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no modules seeds the general group", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		for i := 0; i < 3; i++ {
			mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(1, 1))
		}
		mock.ExpectExec("INSERT INTO permission_groups").
			WithArgs(sqlmock.AnyArg(), "General Access", "General", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, seeder.Seed(ctx, db, newSeedCompany(t)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repeated modules seed one group", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		for i := 0; i < 3; i++ {
			mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(1, 1))
		}
		mock.ExpectExec("INSERT INTO permission_groups").
			WithArgs(sqlmock.AnyArg(), "Billing Access", "Billing", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, seeder.Seed(ctx, db, newSeedCompany(t, "Billing", "Billing")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO roles").WillReturnError(errors.New(`relation "roles" does not exist`))
		mock.ExpectRollback()

		err = seeder.Seed(ctx, db, newSeedCompany(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "seed role Administrator")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
