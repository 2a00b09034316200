package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appprov "github.com/bau/backend/internal/application/provisioning"
	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/domain/shared"
	"github.com/bau/backend/internal/infrastructure/auth"
	"github.com/bau/backend/internal/infrastructure/config"
	"github.com/bau/backend/internal/interfaces/http/handler"
	"github.com/bau/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func TestMount(t *testing.T) {
	engine := gin.New()

	var seen []string
	tag := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			seen = append(seen, name)
			c.Next()
		}
	}

	Mount(engine, Group{
		Prefix:     "/api/" + APIVersion,
		Middleware: []gin.HandlerFunc{tag("api")},
		Groups: []Group{{
			Prefix:     "/test",
			Middleware: []gin.HandlerFunc{tag("group")},
			Routes: []Route{
				{http.MethodGet, "/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") }},
			},
			Groups: []Group{{
				Prefix: "/nested",
				Routes: []Route{
					{http.MethodPost, "/echo", func(c *gin.Context) { c.String(http.StatusCreated, "echo") }},
				},
			}},
		}},
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, []string{"api", "group"}, seen)

	seen = nil
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/test/nested/echo", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"api", "group"}, seen)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/nested/echo", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type okOrchestrator struct{}

func (okOrchestrator) ProvisionTenant(context.Context, provisioning.ProvisioningRequest, ...provisioning.ProvisionOption) provisioning.ProvisioningResult {
	return provisioning.Succeeded(uuid.New(), "bau_acme_corp")
}

type emptyCompanies struct{}

func (emptyCompanies) Record(context.Context, *provisioning.Company) error { return nil }
func (emptyCompanies) FindByID(context.Context, uuid.UUID) (*provisioning.Company, error) {
	return nil, shared.ErrNotFound
}
func (emptyCompanies) FindByTenantDBName(context.Context, string) (*provisioning.Company, error) {
	return nil, shared.ErrNotFound
}
func (emptyCompanies) ExistsByTenantDBName(context.Context, string) (bool, error) { return false, nil }
func (emptyCompanies) FindAll(context.Context, shared.Filter) ([]provisioning.Company, error) {
	return nil, nil
}
func (emptyCompanies) Count(context.Context, shared.Filter) (int64, error) { return 0, nil }

type emptyLogs struct{}

func (emptyLogs) Append(context.Context, *provisioning.ProvisioningLogEntry) error { return nil }
func (emptyLogs) FindByCompany(context.Context, uuid.UUID) ([]provisioning.ProvisioningLogEntry, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "bau-backend", Env: "test"},
		HTTP: config.HTTPConfig{
			MaxBodySize:      1 << 20,
			CORSAllowOrigins: []string{"http://localhost:3000"},
			CORSAllowMethods: []string{"GET", "POST", "OPTIONS"},
			CORSAllowHeaders: []string{"Authorization", "Content-Type"},
		},
		Auth: config.AuthConfig{
			Secret:          "0123456789abcdef0123456789abcdef",
			Issuer:          "bau-test",
			TokenExpiration: time.Hour,
		},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	stream := handler.NewProgressStreamHandler()
	t.Cleanup(stream.Stop)
	return NewEngine(EngineOptions{
		Config: cfg,
		Logger: zap.NewNop(),
		Tokens: auth.NewJWTService(cfg.Auth),
	}, Handlers{
		Provisioning: handler.NewProvisioningHandler(okOrchestrator{}, zap.NewNop()),
		Companies:    handler.NewCompanyHandler(appprov.NewCompanyService(emptyCompanies{}, emptyLogs{})),
		Stream:       stream,
		System:       handler.NewSystemHandler("bau-backend", "test", nil),
	})
}

const provisionBody = `{"companyName":"Acme Corp","adminEmail":"a@acme.com"}`

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/system/ping", "", http.StatusOK},
		{http.MethodGet, "/api/v1/system/info", "", http.StatusOK},
		{http.MethodPost, "/api/v1/provisioning/tenants", provisionBody, http.StatusOK},
		{http.MethodGet, "/api/v1/provisioning/companies", "", http.StatusOK},
		{http.MethodGet, "/api/v1/provisioning/companies/" + uuid.NewString(), "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/provisioning/companies/" + uuid.NewString() + "/logs", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestNewEngine_Auth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	engine := newTestEngine(t, cfg)

	t.Run("provisioning requires a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/provisioning/tenants", strings.NewReader(provisionBody))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("system routes stay public", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.NewJWTService(cfg.Auth).Issue("ops")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/provisioning/tenants", strings.NewReader(provisionBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token.Token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestNewEngine_RateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	defer limiter.Stop()

	cfg := testConfig()
	stream := handler.NewProgressStreamHandler()
	defer stream.Stop()
	engine := NewEngine(EngineOptions{Config: cfg, Logger: zap.NewNop(), RateLimiter: limiter}, Handlers{
		Provisioning: handler.NewProvisioningHandler(okOrchestrator{}, zap.NewNop()),
		Companies:    handler.NewCompanyHandler(appprov.NewCompanyService(emptyCompanies{}, emptyLogs{})),
		Stream:       stream,
		System:       handler.NewSystemHandler("bau-backend", "test", nil),
	})

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
