package tenantdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Default role names seeded into every tenant
const (
	RoleAdministrator = "Administrator"
	RoleManager       = "Manager"
	RoleEmployee      = "Employee"

	generalPermissionGroup = "General"
	adminStatusInvited     = "invited"
)

var defaultRoles = []struct {
	name        string
	description string
}{
	{RoleAdministrator, "Full access to every enabled module"},
	{RoleManager, "Manages records and approves requests"},
	{RoleEmployee, "Day-to-day access to assigned modules"},
}

// Seeder writes the default roles, permission groups and administrator
// into a freshly created tenant database. The tables come from the tenant
// schema script.
type Seeder struct {
	logger *zap.Logger
}

// NewSeeder creates a Seeder
func NewSeeder(logger *zap.Logger) *Seeder {
	return &Seeder{logger: logger.Named("seeder")}
}

// Seed inserts the defaults in a single tenant-side transaction
func (s *Seeder) Seed(ctx context.Context, db *sql.DB, company *provisioning.Company) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	roleIDs := make(map[string]uuid.UUID, len(defaultRoles))
	for _, r := range defaultRoles {
		id := uuid.New()
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO roles (id, name, description) VALUES ($1, $2, $3)",
			id, r.name, r.description,
		); err != nil {
			return fmt.Errorf("seed role %s: %w", r.name, err)
		}
		roleIDs[r.name] = id
	}

	groups := company.Modules()
	if len(groups) == 0 {
		groups = []string{generalPermissionGroup}
	}
	for _, g := range groups {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO permission_groups (id, name, module, role_id) VALUES ($1, $2, $3, $4)",
			uuid.New(), g+" Access", g, roleIDs[RoleAdministrator],
		); err != nil {
			return fmt.Errorf("seed permission group %s: %w", g, err)
		}
	}

	if company.AdminEmail != "" {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO users (id, email, role_id, status) VALUES ($1, $2, $3, $4)",
			uuid.New(), company.AdminEmail, roleIDs[RoleAdministrator], adminStatusInvited,
		); err != nil {
			return fmt.Errorf("seed administrator: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	s.logger.Info("Tenant defaults seeded",
		zap.String("tenant_db", company.TenantDBName),
		zap.Int("roles", len(defaultRoles)),
		zap.Int("permission_groups", len(groups)),
	)
	return nil
}
