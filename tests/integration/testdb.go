// Package integration runs the provisioning stack against a real
// PostgreSQL server started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bau/backend/internal/infrastructure/config"
	"github.com/bau/backend/internal/infrastructure/migration"
	"github.com/bau/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

const (
	testUser     = "postgres"
	testPassword = "admin123"
	testCatalog  = "bau_master_test"
)

// TestServer is a PostgreSQL server with a migrated master catalog
type TestServer struct {
	Container testcontainers.Container
	Config    config.DatabaseConfig
	Master    *persistence.Database
	MasterSQL *sql.DB
	t         *testing.T
}

// NewTestServer starts a fresh PostgreSQL container. The postgres role is a
// superuser, so the allocator can create and drop tenant databases.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testCatalog),
		tcpostgres.WithUsername(testUser),
		tcpostgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            testUser,
		Password:        testPassword,
		DBName:          testCatalog,
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
		ConnMaxIdleTime: 1,
		MigrationsPath:  findRepoPath(t, "migrations"),
	}

	gormLevel := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormLevel = logger.Info
	}
	db, err := persistence.NewDatabase(&cfg, persistence.WithGormLogger(logger.Default.LogMode(gormLevel)))
	require.NoError(t, err, "Failed to connect to master catalog")

	sqlDB, err := db.SQL()
	require.NoError(t, err)
	require.NoError(t, migration.MigrateUp(sqlDB, cfg.MigrationsPath, zap.NewNop()), "Failed to run migrations")

	server := &TestServer{
		Container: container,
		Config:    cfg,
		Master:    db,
		MasterSQL: sqlDB,
		t:         t,
	}
	t.Cleanup(server.Close)
	return server
}

// Close closes the master connection and terminates the container
func (s *TestServer) Close() {
	if s.Master != nil {
		_ = s.Master.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Container.Terminate(ctx); err != nil {
		s.t.Logf("Warning: Failed to terminate container: %v", err)
	}
}

// DatabaseExists reports whether a catalog exists on the server
func (s *TestServer) DatabaseExists(name string) bool {
	s.t.Helper()

	var exists bool
	err := s.MasterSQL.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	require.NoError(s.t, err)
	return exists
}

// TenantCount counts rows of table inside a tenant database
func (s *TestServer) TenantCount(catalog, table string) int {
	s.t.Helper()

	db, err := persistence.NewConnectionFactory(s.Config).Open(context.Background(), catalog)
	require.NoError(s.t, err)
	defer db.Close()

	var n int
	require.NoError(s.t, db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n))
	return n
}

// findRepoPath walks up from this file until dir exists
func findRepoPath(t *testing.T, dir string) string {
	t.Helper()

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)

	current := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(current, dir)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		current = filepath.Dir(current)
	}
	t.Fatalf("could not find %s directory", dir)
	return ""
}
