package handler

import (
	"net/http"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProvisionTenantRequest is the body of POST /provisioning/tenants
type ProvisionTenantRequest struct {
	CompanyName string   `json:"companyName" binding:"required,notblank,max=200"`
	AdminEmail  string   `json:"adminEmail" binding:"required,email,max=254"`
	BillingPlan string   `json:"billingPlan" binding:"max=50"`
	Modules     []string `json:"modules" binding:"omitempty,max=50,dive,max=50,modulename"`
}

// ToDomain converts the request body
func (r ProvisionTenantRequest) ToDomain() provisioning.ProvisioningRequest {
	return provisioning.ProvisioningRequest{
		CompanyName: r.CompanyName,
		AdminEmail:  r.AdminEmail,
		BillingPlan: r.BillingPlan,
		Modules:     r.Modules,
	}
}

// ProvisioningHandler exposes the orchestrator over HTTP
type ProvisioningHandler struct {
	BaseHandler
	orchestrator provisioning.Orchestrator
	logger       *zap.Logger
}

// NewProvisioningHandler creates a ProvisioningHandler
func NewProvisioningHandler(orchestrator provisioning.Orchestrator, logger *zap.Logger) *ProvisioningHandler {
	return &ProvisioningHandler{orchestrator: orchestrator, logger: logger.Named("provisioning_handler")}
}

// ProvisionTenant serves POST /api/v1/provisioning/tenants.
// The body is the ProvisioningResult itself: 200 on success, 400 otherwise,
// including requests that fail binding.
func (h *ProvisioningHandler) ProvisionTenant(c *gin.Context) {
	var req ProvisionTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, provisioning.Failed(middleware.ValidationSummary(err)))
		return
	}

	result := h.orchestrator.ProvisionTenant(c.Request.Context(), req.ToDomain())
	if !result.Success {
		h.logger.Info("Provisioning request rejected",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("company_name", req.CompanyName),
			zap.String("error", result.Error),
		)
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
