package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

func TestLoggerProvider_Bridge(t *testing.T) {
	exporter := &recordingExporter{}
	lp := NewLoggerProviderWithProcessor(sdklog.NewSimpleProcessor(exporter), zap.NewNop())
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	require.True(t, lp.IsEnabled())

	baseCore, observed := observer.New(zapcore.DebugLevel)
	logger := lp.Bridge(zap.New(baseCore), "bau-backend", zapcore.WarnLevel)

	logger.Info("tenant database created")
	logger.Warn("compensation failed")

	assert.Equal(t, 2, observed.Len())
	assert.Equal(t, []string{"compensation failed"}, exporter.bodies())
}

func TestLevelFilterCore_With(t *testing.T) {
	exporter := &recordingExporter{}
	lp := NewLoggerProviderWithProcessor(sdklog.NewSimpleProcessor(exporter), zap.NewNop())

	core := lp.Core("bau-backend", zapcore.ErrorLevel).With([]zapcore.Field{zap.String("k", "v")})
	assert.False(t, core.Enabled(zapcore.WarnLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))
}
