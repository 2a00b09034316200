package handler

import (
	appprov "github.com/bau/backend/internal/application/provisioning"
	"github.com/bau/backend/internal/interfaces/http/dto"
	"github.com/bau/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// CompanyHandler serves the master catalog
type CompanyHandler struct {
	BaseHandler
	companies *appprov.CompanyService
}

// NewCompanyHandler creates a CompanyHandler
func NewCompanyHandler(companies *appprov.CompanyService) *CompanyHandler {
	return &CompanyHandler{companies: companies}
}

// List serves GET /api/v1/provisioning/companies
func (h *CompanyHandler) List(c *gin.Context) {
	q := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.companies.List(c.Request.Context(), appprov.ListCompaniesQuery{
		Page:     q.Page,
		PageSize: q.PageSize,
		Search:   q.Search,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get serves GET /api/v1/provisioning/companies/:id
func (h *CompanyHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	company, err := h.companies.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, company)
}

// Logs serves GET /api/v1/provisioning/companies/:id/logs. It also answers
// for failed runs, which leave log entries but no company.
func (h *CompanyHandler) Logs(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	logs, err := h.companies.Logs(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, logs)
}
