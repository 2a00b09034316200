package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "add_company_index", sanitizeName("Add Company-Index"))
	assert.Equal(t, "v2_logs", sanitizeName("  v2  logs!! "))
	assert.Equal(t, "", sanitizeName("--"))
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	mf, err := CreateMigration(dir, "add billing plan index", now)
	require.NoError(t, err)

	assert.Equal(t, "20260304050607", mf.Version)
	assert.FileExists(t, mf.UpPath)
	assert.FileExists(t, mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add_billing_plan_index (up)")

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260304050607_add_billing_plan_index"}, names)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", time.Now())
	assert.Error(t, err)
}

func TestListMigrations_RepositoryMigrations(t *testing.T) {
	names, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	assert.Contains(t, names, "000001_create_companies")
	assert.Contains(t, names, "000002_create_provisioning_logs")
}
