// Package provisioning coordinates tenant provisioning runs: the saga of
// database allocation, schema application, seeding and metadata recording.
package provisioning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/domain/shared"
	"github.com/bau/backend/internal/infrastructure/config"
	"github.com/bau/backend/internal/infrastructure/logger"
	"github.com/bau/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// ScriptRunner applies a SQL script file to an open database
type ScriptRunner interface {
	RunFile(ctx context.Context, db *sql.DB, path string) error
}

// TenantConnector opens scoped connections to tenant databases.
// Callers close the returned handle.
type TenantConnector interface {
	Open(ctx context.Context, catalog string) (*sql.DB, error)
}

// TenantSeeder writes default rows into a freshly created tenant database
type TenantSeeder interface {
	Seed(ctx context.Context, db *sql.DB, company *provisioning.Company) error
}

// Dependencies wires the collaborators of an Orchestrator
type Dependencies struct {
	Companies provisioning.CompanyRepository
	Logs      provisioning.LogRepository
	Allocator provisioning.DatabaseAllocator
	Scripts   ScriptRunner
	Tenants   TenantConnector
	Seeder    TenantSeeder
	// Master receives MasterSchema.sql
	Master *sql.DB
	Lock   provisioning.NameLock
	Events shared.EventPublisher
	// Sink is the default progress destination
	Sink    provisioning.ProgressSink
	Metrics *telemetry.ProvisioningMetrics
}

// Orchestrator runs provisioning as an ordered saga. Every failure is
// reported through the result; nothing is returned as an error.
type Orchestrator struct {
	deps   Dependencies
	cfg    config.ProvisioningConfig
	steps  *StepLogger
	logger *zap.Logger
	newID  func() uuid.UUID
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(deps Dependencies, cfg config.ProvisioningConfig, logger *zap.Logger) *Orchestrator {
	if deps.Lock == nil {
		deps.Lock = noopLock{}
	}
	logger = logger.Named("provisioning")
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		steps:  NewStepLogger(deps.Logs, deps.Sink, deps.Metrics, logger),
		logger: logger,
		newID:  uuid.New,
	}
}

var _ provisioning.Orchestrator = (*Orchestrator)(nil)

// ProvisionTenant provisions one tenant end to end
func (o *Orchestrator) ProvisionTenant(
	ctx context.Context,
	req provisioning.ProvisioningRequest,
	opts ...provisioning.ProvisionOption,
) (result provisioning.ProvisioningResult) {
	var options provisioning.ProvisionOptions
	for _, opt := range opts {
		opt(&options)
	}

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	req = req.Normalized()
	r := &run{
		o:       o,
		req:     req,
		id:      o.newID(),
		dbName:  provisioning.DeriveTenantDatabaseName(o.cfg.DatabasePrefix, req.CompanyName),
		machine: provisioning.NewMachine(),
		log:     o.steps.WithSink(options.Sink),
	}

	base := o.logger
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		base = base.With(zap.String("request_id", requestID))
	}
	ctx, r.logger = logger.WithProvisioning(ctx, base, r.id.String(), r.dbName)

	ctx, span := telemetry.StartServiceSpan(ctx, "ProvisioningOrchestrator", "ProvisionTenant",
		telemetry.WithAttribute(telemetry.SpanAttrCompanyID, r.id.String()),
		telemetry.WithAttribute(telemetry.SpanAttrTenantDB, r.dbName),
		telemetry.WithAttribute(telemetry.SpanAttrCompanyName, req.CompanyName),
	)
	defer span.End()
	finish := o.deps.Metrics.Begin(ctx)

	defer r.releaseLock(context.WithoutCancel(ctx))
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("provisioning aborted unexpectedly: %v", p)
			r.logger.Error("Provisioning panicked", zap.Any("panic", p), zap.Stack("stack"))
			r.record(context.WithoutCancel(ctx), provisioning.StepProvisioning, provisioning.StepStatusFailed, err.Error())
			telemetry.RecordError(span, err)
			finish(telemetry.OutcomeFailure, "PANIC")
			result = provisioning.Failed(err)
		}
	}()

	r.logger.Info("Provisioning tenant",
		zap.String("company_name", req.CompanyName),
		zap.Strings("modules", req.Modules),
	)

	if err := r.execute(ctx, o.plan(r)); err != nil {
		telemetry.RecordError(span, err)
		telemetry.SetAttributes(span, telemetry.SpanAttrState, string(r.machine.Current()))
		finish(outcomeOf(err), errorCode(err))
		return provisioning.Failed(err)
	}

	telemetry.SetOK(span)
	finish(telemetry.OutcomeSuccess, "")
	o.publish(ctx, r.company.PullDomainEvents()...)

	r.logger.Info("Tenant provisioned")
	return provisioning.Succeeded(r.id, r.dbName)
}

func (o *Orchestrator) plan(r *run) []sagaStep {
	steps := []sagaStep{
		{
			name:       provisioning.StepAllocateDatabase,
			state:      provisioning.StateAllocatingDatabase,
			started:    "Reserving tenant database " + r.dbName,
			action:     r.allocate,
			compensate: r.compensateAllocation,
		},
		{
			name:    provisioning.StepApplyMasterSchema,
			state:   provisioning.StateApplyingMasterSchema,
			started: "Applying master schema",
			action:  r.applyMasterSchema,
		},
		{
			name:    provisioning.StepCreateTenantDatabase,
			state:   provisioning.StateCreatingTenantDatabase,
			started: "Creating tenant database " + r.dbName,
			action:  r.createDatabase,
		},
		{
			name:    provisioning.StepApplyTenantSchema,
			state:   provisioning.StateApplyingTenantSchema,
			started: "Applying tenant schema",
			action:  r.applyTenantSchema,
		},
	}
	if o.cfg.DropOnFailure {
		steps[2].compensate = r.dropDatabase
	}
	if o.cfg.SeedDefaults {
		steps = append(steps, sagaStep{
			name:    provisioning.StepSeedTenantDefaults,
			state:   provisioning.StateApplyingTenantSchema,
			started: "Seeding tenant defaults",
			action:  r.seedDefaults,
		})
	}
	return append(steps, sagaStep{
		name:    provisioning.StepRecordMetadata,
		state:   provisioning.StateRecordingMetadata,
		started: "Recording company metadata",
		action:  r.recordMetadata,
		final:   true,
	})
}

func (o *Orchestrator) publish(ctx context.Context, events ...shared.DomainEvent) {
	if o.deps.Events == nil || len(events) == 0 {
		return
	}
	if err := o.deps.Events.Publish(ctx, events...); err != nil {
		o.logger.Warn("Failed to publish provisioning events", zap.Error(err))
	}
}

// run holds the state of a single ProvisionTenant call
type run struct {
	o       *Orchestrator
	req     provisioning.ProvisioningRequest
	id      uuid.UUID
	dbName  string
	company *provisioning.Company
	machine *provisioning.Machine
	log     *StepLogger
	logger  *zap.Logger

	// tenantSchemaSkipped is set when the optional tenant script is absent
	tenantSchemaSkipped bool

	releaseOnce sync.Once
	release     provisioning.ReleaseFunc
}

func (r *run) execute(ctx context.Context, steps []sagaStep) error {
	var done completed
	for _, step := range steps {
		if step.state != r.machine.Current() {
			if err := r.machine.Transition(step.state); err != nil {
				return r.fail(ctx, step, done, err)
			}
		}
		r.log.Announce(ctx, r.id, r.dbName, step.name, step.started)

		message, err := runAction(ctx, step)
		if err != nil {
			return r.fail(ctx, step, done, err)
		}
		done = append(done, step)

		if err := r.log.Log(ctx, r.id, r.dbName, step.name, provisioning.StepStatusSuccess, message); err != nil {
			if step.final {
				r.logger.Error("Audit entry lost after commit", zap.String("step", step.name), zap.Error(err))
				continue
			}
			return r.fail(ctx, step, done, err)
		}
		r.logger.Debug("Provisioning step completed", zap.String("step", step.name))
	}
	return r.machine.Transition(provisioning.StateCommitted)
}

func runAction(ctx context.Context, step sagaStep) (message string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panicked: %v", step.name, p)
		}
	}()
	return step.action(ctx)
}

func runCompensation(ctx context.Context, step sagaStep) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("compensation panicked: %v", p)
		}
	}()
	return step.compensate(ctx)
}

// fail rolls back completed steps in reverse order and returns cause.
// Compensation errors are logged but never replace cause.
func (r *run) fail(ctx context.Context, failed sagaStep, done completed, cause error) error {
	ctx = context.WithoutCancel(ctx)
	r.logger.Error("Provisioning step failed", zap.String("step", failed.name), zap.Error(cause))

	if err := r.machine.Transition(provisioning.StateRollingBack); err != nil {
		r.logger.Warn("Unexpected state during rollback", zap.Error(err))
	}

	var compensationErr *multierror.Error
	for _, step := range done.reversed() {
		if err := runCompensation(ctx, step); err != nil {
			compensationErr = multierror.Append(compensationErr, fmt.Errorf("%s: %w", step.name, err))
			r.o.deps.Metrics.RecordCompensation(ctx, step.name, true)
			r.record(ctx, step.name, provisioning.StepStatusFailed, "Compensation failed: "+err.Error())
			continue
		}
		r.o.deps.Metrics.RecordCompensation(ctx, step.name, false)
		r.record(ctx, step.name, provisioning.StepStatusCompensated, "Rolled back "+step.name)
	}
	if err := compensationErr.ErrorOrNil(); err != nil {
		r.logger.Error("Rollback incomplete", zap.Error(err))
	}

	r.record(ctx, failed.name, provisioning.StepStatusFailed, cause.Error())
	if err := r.machine.Transition(provisioning.StateFailed); err != nil {
		r.logger.Warn("Unexpected state after rollback", zap.Error(err))
	}

	r.o.publish(ctx, provisioning.NewProvisioningFailedEvent(r.id, r.req.CompanyName, r.dbName, failed.name, cause.Error()))
	return cause
}

// record writes an audit entry while already handling a failure
func (r *run) record(ctx context.Context, step string, status provisioning.StepStatus, message string) {
	if err := r.log.Log(ctx, r.id, r.dbName, step, status, message); err != nil {
		r.logger.Error("Failed to write provisioning log", zap.String("step", step), zap.Error(err))
	}
}

func (r *run) allocate(ctx context.Context) (string, error) {
	company, err := provisioning.NewCompany(r.id, r.req, r.dbName)
	if err != nil {
		return "", err
	}
	r.company = company

	release, err := r.o.deps.Lock.Acquire(ctx, r.dbName, r.o.cfg.LockTTL)
	if err != nil {
		return "", err
	}
	r.release = release

	taken, err := r.o.deps.Companies.ExistsByTenantDBName(ctx, r.dbName)
	if err != nil {
		return "", fmt.Errorf("check company registry: %w", err)
	}
	if taken {
		return "", fmt.Errorf("%w: %s", provisioning.ErrTenantDatabaseExists, r.dbName)
	}

	exists, err := r.o.deps.Allocator.Exists(ctx, r.dbName)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s", provisioning.ErrTenantDatabaseExists, r.dbName)
	}
	return "Reserved tenant database name " + r.dbName, nil
}

func (r *run) compensateAllocation(ctx context.Context) error {
	return r.releaseLock(ctx)
}

func (r *run) releaseLock(ctx context.Context) (err error) {
	r.releaseOnce.Do(func() {
		if r.release == nil {
			return
		}
		if err = r.release(ctx); err != nil {
			r.logger.Warn("Failed to release provisioning lock", zap.Error(err))
		}
	})
	return err
}

func (r *run) applyMasterSchema(ctx context.Context) (string, error) {
	err := r.o.deps.Scripts.RunFile(ctx, r.o.deps.Master, r.o.cfg.MasterSchemaPath())
	if errors.Is(err, provisioning.ErrScriptNotFound) && !r.o.cfg.RequireMasterSchema {
		return "Master schema script not found, skipped", nil
	}
	if err != nil {
		return "", fmt.Errorf("apply master schema: %w", err)
	}
	return "Applied master schema", nil
}

func (r *run) createDatabase(ctx context.Context) (string, error) {
	if err := r.o.deps.Allocator.Create(ctx, r.dbName); err != nil {
		return "", err
	}
	return "Created tenant database " + r.dbName, nil
}

func (r *run) dropDatabase(ctx context.Context) error {
	return r.o.deps.Allocator.Drop(ctx, r.dbName)
}

func (r *run) applyTenantSchema(ctx context.Context) (string, error) {
	db, err := r.openTenant(ctx)
	if err != nil {
		return "", err
	}
	defer r.closeTenant(db)

	err = r.o.deps.Scripts.RunFile(ctx, db, r.o.cfg.TenantSchemaPath())
	if errors.Is(err, provisioning.ErrScriptNotFound) && !r.o.cfg.RequireTenantSchema {
		r.tenantSchemaSkipped = true
		return "Tenant schema script not found, skipped", nil
	}
	if err != nil {
		return "", fmt.Errorf("apply tenant schema: %w", err)
	}
	return "Applied tenant schema", nil
}

func (r *run) seedDefaults(ctx context.Context) (string, error) {
	if r.tenantSchemaSkipped {
		return "No tenant schema applied, seeding skipped", nil
	}

	db, err := r.openTenant(ctx)
	if err != nil {
		return "", err
	}
	defer r.closeTenant(db)

	if err := r.o.deps.Seeder.Seed(ctx, db, r.company); err != nil {
		return "", fmt.Errorf("seed tenant defaults: %w", err)
	}
	return "Seeded default roles and administrator", nil
}

func (r *run) recordMetadata(ctx context.Context) (string, error) {
	if err := r.o.deps.Companies.Record(ctx, r.company); err != nil {
		return "", fmt.Errorf("record company metadata: %w", err)
	}
	r.company.MarkProvisioned()
	return "Recorded company metadata", nil
}

func (r *run) openTenant(ctx context.Context) (*sql.DB, error) {
	db, err := r.o.deps.Tenants.Open(ctx, r.dbName)
	if err != nil {
		return nil, fmt.Errorf("connect to tenant database: %w", err)
	}
	return db, nil
}

func (r *run) closeTenant(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		r.logger.Warn("Failed to close tenant connection", zap.Error(err))
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, provisioning.ErrProvisioningInProgress) || errors.Is(err, provisioning.ErrTenantDatabaseExists) {
		return telemetry.OutcomeRejected
	}
	return telemetry.OutcomeFailure
}

func errorCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL"
}

type noopLock struct{}

func (noopLock) Acquire(context.Context, string, time.Duration) (provisioning.ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}
