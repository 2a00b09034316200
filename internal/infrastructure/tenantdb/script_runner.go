package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultBatchSeparator splits scripts into batches
const DefaultBatchSeparator = "GO"

// ScriptRunner executes SQL scripts batch by batch. A batch boundary is a
// line holding only the separator token, compared case-insensitively after
// trimming whitespace.
type ScriptRunner struct {
	separator string
	logger    *zap.Logger
}

// NewScriptRunner creates a runner. An empty separator means "GO".
func NewScriptRunner(separator string, logger *zap.Logger) *ScriptRunner {
	if strings.TrimSpace(separator) == "" {
		separator = DefaultBatchSeparator
	}
	return &ScriptRunner{separator: strings.TrimSpace(separator), logger: logger.Named("scripts")}
}

// RunFile reads a UTF-8 script from disk and runs it. A missing file
// yields an error matching both provisioning.ErrScriptNotFound and
// fs.ErrNotExist.
func (r *ScriptRunner) RunFile(ctx context.Context, db *sql.DB, path string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "tenantdb.RunFile",
		telemetry.WithAttribute(telemetry.SpanAttrScript, filepath.Base(path)))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", provisioning.ErrScriptNotFound, path, err)
		}
		return fmt.Errorf("read script %s: %w", path, err)
	}

	if err := r.Run(ctx, db, string(data)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Run executes every non-empty batch of script in order and stops at the
// first failure. Nothing is retried.
func (r *ScriptRunner) Run(ctx context.Context, db *sql.DB, script string) error {
	batches := SplitBatches(script, r.separator)
	telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.SpanAttrBatches, len(batches))
	for i, batch := range batches {
		if _, err := db.ExecContext(ctx, batch); err != nil {
			return fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
		}
	}
	r.logger.Debug("Script applied", zap.Int("batches", len(batches)))
	return nil
}

// SplitBatches splits script on separator lines and drops blank batches
func SplitBatches(script, separator string) []string {
	script = strings.TrimPrefix(script, "\ufeff")

	var (
		batches []string
		current strings.Builder
	)
	flush := func() {
		if b := strings.TrimSpace(current.String()); b != "" {
			batches = append(batches, b)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.EqualFold(strings.TrimSpace(line), separator) {
			flush()
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return batches
}
