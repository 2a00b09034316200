package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	appprov "github.com/bau/backend/internal/application/provisioning"
	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompany(t *testing.T, name string, modules ...string) provisioning.Company {
	t.Helper()
	c, err := provisioning.NewCompany(uuid.New(), provisioning.ProvisioningRequest{
		CompanyName: name,
		AdminEmail:  "ops@example.test",
		Modules:     modules,
	}, provisioning.DeriveTenantDatabaseName("bau_", name))
	require.NoError(t, err)
	return *c
}

func TestCompanyHandler_List(t *testing.T) {
	repo := &stubCompanies{companies: []provisioning.Company{
		newCompany(t, "Acme Corp", "HR"),
		newCompany(t, "Globex"),
	}}
	h := NewCompanyHandler(appprov.NewCompanyService(repo, &stubLogs{}))

	t.Run("returns a page", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/api/v1/provisioning/companies?page=1&page_size=10", "")
		h.List(c)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool                      `json:"success"`
			Data    []appprov.CompanyResponse `json:"data"`
			Meta    dto.Meta                  `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, "bau_acme_corp", resp.Data[0].TenantDBName)
		assert.Equal(t, int64(2), resp.Meta.Total)
		assert.Equal(t, 10, resp.Meta.PageSize)
	})

	t.Run("rejects an invalid order direction", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/api/v1/provisioning/companies?order_dir=sideways", "")
		h.List(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		broken := NewCompanyHandler(appprov.NewCompanyService(&stubCompanies{err: errors.New("db down")}, &stubLogs{}))
		c, w := newTestContext(http.MethodGet, "/api/v1/provisioning/companies", "")
		broken.List(c)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCompanyHandler_Get(t *testing.T) {
	acme := newCompany(t, "Acme Corp", "HR", "Payroll")
	h := NewCompanyHandler(appprov.NewCompanyService(&stubCompanies{companies: []provisioning.Company{acme}}, &stubLogs{}))

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"found", acme.ID.String(), http.StatusOK},
		{"unknown", uuid.NewString(), http.StatusNotFound},
		{"malformed", "not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(http.MethodGet, "/api/v1/provisioning/companies/"+tt.id, "")
			c.Params = gin.Params{{Key: "id", Value: tt.id}}
			h.Get(c)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestCompanyHandler_Logs(t *testing.T) {
	failedRun := uuid.New()
	logs := &stubLogs{entries: []provisioning.ProvisioningLogEntry{
		*provisioning.NewLogEntry(failedRun, provisioning.StepAllocateDatabase, provisioning.StepStatusSuccess, "Reserved"),
		*provisioning.NewLogEntry(failedRun, provisioning.StepApplyTenantSchema, provisioning.StepStatusFailed, "syntax error"),
	}}
	h := NewCompanyHandler(appprov.NewCompanyService(&stubCompanies{}, logs))

	c, w := newTestContext(http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: failedRun.String()}}
	h.Logs(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data appprov.CompanyLogsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, failedRun, resp.Data.CompanyID)
	require.Len(t, resp.Data.Entries, 2)
	assert.Equal(t, provisioning.StepStatusFailed, resp.Data.Entries[1].Status)

	c, w = newTestContext(http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: uuid.NewString()}}
	h.Logs(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSystemHandler(t *testing.T) {
	t.Run("health ok", func(t *testing.T) {
		h := NewSystemHandler("bau-backend", "1.2.3", map[string]HealthChecker{
			"database": HealthCheckFunc(func(context.Context) error { return nil }),
		})
		c, w := newTestContext(http.MethodGet, "/health", "")
		h.Health(c)

		require.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "1.2.3", resp.Version)
		assert.Equal(t, "up", resp.Checks["database"])
	})

	t.Run("health degraded", func(t *testing.T) {
		h := NewSystemHandler("bau-backend", "1.2.3", map[string]HealthChecker{
			"database": HealthCheckFunc(func(context.Context) error { return nil }),
			"redis":    HealthCheckFunc(func(context.Context) error { return errors.New("connection refused") }),
		})
		c, w := newTestContext(http.MethodGet, "/health", "")
		h.Health(c)

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "down", resp.Checks["redis"])
	})

	t.Run("ping and info", func(t *testing.T) {
		h := NewSystemHandler("bau-backend", "1.2.3", nil)

		c, w := newTestContext(http.MethodGet, "/api/v1/system/ping", "")
		h.Ping(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "pong")

		c, w = newTestContext(http.MethodGet, "/api/v1/system/info", "")
		h.Info(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
	})
}
