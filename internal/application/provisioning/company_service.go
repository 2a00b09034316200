package provisioning

import (
	"context"
	"errors"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const maxPageSize = 100

// CompanyService serves the read side of the master catalog
type CompanyService struct {
	companies provisioning.CompanyRepository
	logs      provisioning.LogRepository
}

// NewCompanyService creates a CompanyService
func NewCompanyService(companies provisioning.CompanyRepository, logs provisioning.LogRepository) *CompanyService {
	return &CompanyService{companies: companies, logs: logs}
}

// List returns one page of provisioned companies
func (s *CompanyService) List(ctx context.Context, q ListCompaniesQuery) (shared.Paginated[CompanyResponse], error) {
	filter := shared.DefaultFilter()
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = min(q.PageSize, maxPageSize)
	}
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		filter.OrderDir = q.OrderDir
	}
	filter.Search = q.Search

	companies, err := s.companies.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[CompanyResponse]{}, err
	}
	total, err := s.companies.Count(ctx, filter)
	if err != nil {
		return shared.Paginated[CompanyResponse]{}, err
	}

	items := make([]CompanyResponse, len(companies))
	for i := range companies {
		items[i] = ToCompanyResponse(&companies[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// Get returns one company
func (s *CompanyService) Get(ctx context.Context, id uuid.UUID) (*CompanyResponse, error) {
	company, err := s.companies.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, provisioning.ErrCompanyNotFound
		}
		return nil, err
	}
	resp := ToCompanyResponse(company)
	return &resp, nil
}

// Logs returns the audit trail of a run. Failed runs have entries but no
// company row, so only an empty trail is reported as not found.
func (s *CompanyService) Logs(ctx context.Context, companyID uuid.UUID) (*CompanyLogsResponse, error) {
	entries, err := s.logs.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, provisioning.ErrCompanyNotFound
	}
	return &CompanyLogsResponse{CompanyID: companyID, Entries: entries}, nil
}
