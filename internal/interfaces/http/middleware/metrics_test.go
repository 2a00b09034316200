package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bau/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("records requests by route and status", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := telemetry.NewMeterProviderWithReader(reader, zap.NewNop())

		r := gin.New()
		r.Use(HTTPMetrics(mp, zap.NewNop()))
		r.GET("/api/v1/provisioning/companies/:id", func(c *gin.Context) {
			c.Status(http.StatusNotFound)
		})

		for i := 0; i < 3; i++ {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/provisioning/companies/7", nil))
		}
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))

		metrics := make(map[string]metricdata.Metrics)
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				metrics[m.Name] = m
			}
		}

		total, ok := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)

		counts := make(map[string]int64)
		for _, dp := range total.DataPoints {
			route, _ := dp.Attributes.Value(telemetry.AttrHTTPRoute)
			counts[route.AsString()] = dp.Value
		}
		assert.Equal(t, int64(3), counts["/api/v1/provisioning/companies/:id"])
		assert.Equal(t, int64(1), counts["unknown"])

		active, ok := metrics["http_server_active_requests"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, active.DataPoints, 1)
		assert.Equal(t, int64(0), active.DataPoints[0].Value)

		_, ok = metrics["http_server_request_duration_seconds"].Data.(metricdata.Histogram[float64])
		assert.True(t, ok)
	})

	t.Run("disabled provider is a pass-through", func(t *testing.T) {
		r := gin.New()
		r.Use(HTTPMetrics(nil, zap.NewNop()))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
