package provisioning

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAllocator is a mock implementation of provisioning.DatabaseAllocator
type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) Exists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockAllocator) Create(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockAllocator) Drop(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

// MockScriptRunner is a mock implementation of ScriptRunner
type MockScriptRunner struct {
	mock.Mock
}

func (m *MockScriptRunner) RunFile(ctx context.Context, db *sql.DB, path string) error {
	return m.Called(ctx, db, path).Error(0)
}

// MockSeeder is a mock implementation of TenantSeeder
type MockSeeder struct {
	mock.Mock
}

func (m *MockSeeder) Seed(ctx context.Context, db *sql.DB, company *provisioning.Company) error {
	return m.Called(ctx, db, company).Error(0)
}

// fakeConnector hands out sqlmock handles that expect to be closed
type fakeConnector struct {
	t       *testing.T
	mu      sync.Mutex
	opened  []string
	openErr error
}

func (f *fakeConnector) Open(_ context.Context, catalog string) (*sql.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	db, mockDB, err := sqlmock.New()
	require.NoError(f.t, err)
	mockDB.ExpectClose()
	f.opened = append(f.opened, catalog)
	return db, nil
}

// fakeCompanyRepo keeps companies in memory and enforces unique names
type fakeCompanyRepo struct {
	mu        sync.Mutex
	companies  []*provisioning.Company
	recordErr  error
	lastFilter shared.Filter
}

func (r *fakeCompanyRepo) Record(_ context.Context, company *provisioning.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	for _, c := range r.companies {
		if c.ID == company.ID || c.TenantDBName == company.TenantDBName {
			return provisioning.ErrCompanyAlreadyExists
		}
	}
	r.companies = append(r.companies, company)
	return nil
}

func (r *fakeCompanyRepo) FindByID(_ context.Context, id uuid.UUID) (*provisioning.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.companies {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeCompanyRepo) FindByTenantDBName(_ context.Context, name string) (*provisioning.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.companies {
		if c.TenantDBName == name {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeCompanyRepo) ExistsByTenantDBName(ctx context.Context, name string) (bool, error) {
	_, err := r.FindByTenantDBName(ctx, name)
	return err == nil, nil
}

func (r *fakeCompanyRepo) FindAll(_ context.Context, filter shared.Filter) ([]provisioning.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	out := make([]provisioning.Company, len(r.companies))
	for i, c := range r.companies {
		out[i] = *c
	}
	return out, nil
}

func (r *fakeCompanyRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.companies)), nil
}

func (r *fakeCompanyRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.companies)
}

// fakeLogRepo records audit entries; failOn makes Append fail for a step/status
type fakeLogRepo struct {
	mu      sync.Mutex
	entries []provisioning.ProvisioningLogEntry
	failOn  func(*provisioning.ProvisioningLogEntry) error
}

func (r *fakeLogRepo) Append(_ context.Context, entry *provisioning.ProvisioningLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		if err := r.failOn(entry); err != nil {
			return err
		}
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLogRepo) FindByCompany(_ context.Context, companyID uuid.UUID) ([]provisioning.ProvisioningLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []provisioning.ProvisioningLogEntry
	for _, e := range r.entries {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) withStatus(status provisioning.StepStatus) []provisioning.ProvisioningLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []provisioning.ProvisioningLogEntry
	for _, e := range r.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func (r *fakeLogRepo) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Step + ":" + string(e.Status)
	}
	return out
}

// recordingSink captures broadcast progress events
type recordingSink struct {
	mu     sync.Mutex
	events []provisioning.ProgressEvent
	err    error
}

func (s *recordingSink) Broadcast(_ context.Context, event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event == provisioning.ProgressEventName {
		if e, ok := payload.(provisioning.ProgressEvent); ok {
			s.events = append(s.events, e)
		}
	}
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *recordingSink) statuses(status provisioning.StepStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Status == status {
			n++
		}
	}
	return n
}

// recordingPublisher captures published domain events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}
