package tenantdb

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSplitBatches(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "single batch without separator",
			script: "CREATE TABLE a (id int);\nCREATE TABLE b (id int);",
			want:   []string{"CREATE TABLE a (id int);\nCREATE TABLE b (id int);"},
		},
		{
			name:   "separator is case-insensitive and trimmed",
			script: "CREATE TABLE a (id int);\n  go  \nCREATE TABLE b (id int);\nGO\n",
			want:   []string{"CREATE TABLE a (id int);", "CREATE TABLE b (id int);"},
		},
		{
			name:   "empty batches are skipped",
			script: "GO\n\nGO\nSELECT 1;\nGO\n   \nGO",
			want:   []string{"SELECT 1;"},
		},
		{
			name:   "separator inside a line is not a boundary",
			script: "INSERT INTO notes VALUES ('GO home');\nSELECT 'go';",
			want:   []string{"INSERT INTO notes VALUES ('GO home');\nSELECT 'go';"},
		},
		{
			name:   "windows line endings and bom",
			script: "\ufeffSELECT 1;\r\nGO\r\nSELECT 2;\r\n",
			want:   []string{"SELECT 1;", "SELECT 2;"},
		},
		{
			name:   "blank script",
			script: "  \n\n",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitBatches(tt.script, "GO"))
		})
	}
}

func TestScriptRunner_Run(t *testing.T) {
	ctx := context.Background()
	runner := NewScriptRunner("", zap.NewNop())

	t.Run("executes batches in order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE roles (id uuid);")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE users (id uuid);")).WillReturnResult(sqlmock.NewResult(0, 0))

		err = runner.Run(ctx, db, "CREATE TABLE roles (id uuid);\nGO\nCREATE TABLE users (id uuid);\n")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("aborts on the first failing batch", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		boom := errors.New(`syntax error at or near "TABL"`)
		mock.ExpectExec("CREATE TABL").WillReturnError(boom)

		err = runner.Run(ctx, db, "CREATE TABL roles;\nGO\nCREATE TABLE users (id uuid);")
		require.Error(t, err)
		assert.True(t, errors.Is(err, boom))
		assert.Contains(t, err.Error(), "batch 1 of 2")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScriptRunner_RunFile(t *testing.T) {
	ctx := context.Background()
	runner := NewScriptRunner("GO", zap.NewNop())

	t.Run("missing file", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		err = runner.RunFile(ctx, db, filepath.Join(t.TempDir(), "DefaultSchema.sql"))
		assert.True(t, errors.Is(err, provisioning.ErrScriptNotFound))
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("reads and runs the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "MasterSchema.sql")
		require.NoError(t, os.WriteFile(path, []byte("SELECT 1;\nGO\nSELECT 2;\n"), 0o600))

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectExec(regexp.QuoteMeta("SELECT 1;")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("SELECT 2;")).WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, runner.RunFile(ctx, db, path))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoryScriptsSplitCleanly(t *testing.T) {
	for _, name := range []string{"MasterSchema.sql", "DefaultSchema.sql"} {
		data, err := os.ReadFile(filepath.Join("..", "..", "..", "scripts", name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, SplitBatches(string(data), DefaultBatchSeparator), name)
	}
}
