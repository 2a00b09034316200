package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/bau/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CompanyRepository persists tenant metadata in the master catalog
type CompanyRepository interface {
	// Record inserts the company as one transactional unit.
	// A duplicate id or tenant database name yields ErrCompanyAlreadyExists.
	Record(ctx context.Context, company *Company) error

	// FindByID returns the company or shared.ErrNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*Company, error)

	// FindByTenantDBName returns the company owning the tenant database
	FindByTenantDBName(ctx context.Context, name string) (*Company, error)

	// ExistsByTenantDBName reports whether a company already owns the name
	ExistsByTenantDBName(ctx context.Context, name string) (bool, error)

	FindAll(ctx context.Context, filter shared.Filter) ([]Company, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}

// LogRepository stores the append-only provisioning audit trail.
// Writes happen outside any metadata transaction so they survive failures.
type LogRepository interface {
	Append(ctx context.Context, entry *ProvisioningLogEntry) error

	// FindByCompany returns entries of one run in chronological order
	FindByCompany(ctx context.Context, companyID uuid.UUID) ([]ProvisioningLogEntry, error)
}

// DatabaseAllocator creates and drops physical tenant databases through
// the administrative connection
type DatabaseAllocator interface {
	Exists(ctx context.Context, name string) (bool, error)

	// Create issues CREATE DATABASE. A collision yields ErrTenantDatabaseExists.
	Create(ctx context.Context, name string) error

	// Drop removes the database if present; used as a compensation
	Drop(ctx context.Context, name string) error
}

// ProgressSink receives progress events. Implementations are best effort;
// a returned error never affects the provisioning outcome.
type ProgressSink interface {
	Broadcast(ctx context.Context, event string, payload any) error
}

// ProgressSinkFunc adapts a function to ProgressSink
type ProgressSinkFunc func(ctx context.Context, event string, payload any) error

// Broadcast implements ProgressSink
func (f ProgressSinkFunc) Broadcast(ctx context.Context, event string, payload any) error {
	return f(ctx, event, payload)
}

// NopProgressSink discards every event
var NopProgressSink ProgressSink = ProgressSinkFunc(func(context.Context, string, any) error { return nil })

// MultiProgressSink delivers every event to each sink in order and joins
// their errors
type MultiProgressSink []ProgressSink

// Broadcast implements ProgressSink
func (m MultiProgressSink) Broadcast(ctx context.Context, event string, payload any) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Broadcast(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProgressSubscriber delivers progress published by other instances.
// Subscribe blocks until ctx is done.
type ProgressSubscriber interface {
	Subscribe(ctx context.Context, callback func(ProgressEnvelope)) error
}

// ReleaseFunc releases a lock obtained from NameLock
type ReleaseFunc func(ctx context.Context) error

// NameLock serialises runs that derive the same tenant database name.
// Acquire fails fast with ErrProvisioningInProgress when the name is held.
type NameLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, error)
}

// Orchestrator is the single entry point for provisioning a tenant.
// It never returns an error; failures are reported through the result.
type Orchestrator interface {
	ProvisionTenant(ctx context.Context, req ProvisioningRequest, opts ...ProvisionOption) ProvisioningResult
}

// ProvisionOptions carries per-call overrides
type ProvisionOptions struct {
	Sink ProgressSink
}

// ProvisionOption configures a single ProvisionTenant call
type ProvisionOption func(*ProvisionOptions)

// WithProgressSink routes progress of this call to sink instead of the
// orchestrator's default sink
func WithProgressSink(sink ProgressSink) ProvisionOption {
	return func(o *ProvisionOptions) {
		o.Sink = sink
	}
}
