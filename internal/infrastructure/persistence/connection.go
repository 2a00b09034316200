package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bau/backend/internal/infrastructure/config"
	_ "github.com/lib/pq"
)

// ConnectionFactory hands out scoped connections to any catalog on the
// master server. Callers own the returned *sql.DB and must close it.
type ConnectionFactory struct {
	cfg    config.DatabaseConfig
	driver string
}

// NewConnectionFactory creates a factory using the lib/pq driver
func NewConnectionFactory(cfg config.DatabaseConfig) *ConnectionFactory {
	return &ConnectionFactory{cfg: cfg, driver: "postgres"}
}

// DSNFor returns the master DSN with the catalog replaced
func (f *ConnectionFactory) DSNFor(catalog string) string {
	return f.cfg.DSNFor(catalog)
}

// Open connects to catalog and verifies the connection
func (f *ConnectionFactory) Open(ctx context.Context, catalog string) (*sql.DB, error) {
	db, err := sql.Open(f.driver, f.DSNFor(catalog))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", catalog, err)
	}
	// One provisioning run uses the connection sequentially
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", catalog, err)
	}
	return db, nil
}
