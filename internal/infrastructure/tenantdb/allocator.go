package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgreSQL error codes handled by the allocator
const (
	pqDuplicateDatabase pq.ErrorCode = "42P04"
	pqInvalidCatalog    pq.ErrorCode = "3D000"
)

// PostgresAllocator creates tenant databases on the administrative
// connection. CREATE DATABASE cannot run inside a transaction, so every
// statement here is issued directly on the pool.
type PostgresAllocator struct {
	admin  *sql.DB
	logger *zap.Logger
}

// NewPostgresAllocator creates an allocator on the administrative connection
func NewPostgresAllocator(admin *sql.DB, logger *zap.Logger) *PostgresAllocator {
	return &PostgresAllocator{admin: admin, logger: logger.Named("allocator")}
}

// Exists reports whether a database with that name is present on the server
func (a *PostgresAllocator) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := a.admin.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check database %s: %w", name, err)
	}
	return exists, nil
}

// Create issues CREATE DATABASE with the name quoted as an identifier
func (a *PostgresAllocator) Create(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("create database: empty name")
	}
	if _, err := a.admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		if hasCode(err, pqDuplicateDatabase) {
			return fmt.Errorf("%w: %s", provisioning.ErrTenantDatabaseExists, name)
		}
		return fmt.Errorf("create database %s: %w", name, err)
	}
	a.logger.Info("Tenant database created", zap.String("tenant_db", name))
	return nil
}

// Drop removes the database, ignoring one that is already gone. Other
// sessions are terminated first so the drop is not blocked.
func (a *PostgresAllocator) Drop(ctx context.Context, name string) error {
	if _, err := a.admin.ExecContext(ctx,
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()", name,
	); err != nil {
		a.logger.Warn("Could not terminate tenant sessions", zap.String("tenant_db", name), zap.Error(err))
	}

	if _, err := a.admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
		if hasCode(err, pqInvalidCatalog) {
			return nil
		}
		return fmt.Errorf("drop database %s: %w", name, err)
	}
	a.logger.Info("Tenant database dropped", zap.String("tenant_db", name))
	return nil
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

var _ provisioning.DatabaseAllocator = (*PostgresAllocator)(nil)
