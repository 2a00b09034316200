package provisioning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTenantDatabaseName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		input  string
		want   string
	}{
		{"spaces become underscores", "bau_", "Acme Corp", "bau_acme_corp"},
		{"collapses punctuation runs", "bau_", "  Acme,  Corp.  ", "bau_acme_corp"},
		{"ampersand is spelled out", "bau_", "Acme & Co", "bau_acme_and_co"},
		{"existing underscores survive", "bau_", "north_wind", "bau_north_wind"},
		{"digits are kept", "bau_", "7 Eleven 2024", "bau_7_eleven_2024"},
		{"empty name falls back", "bau_", "", "bau_tenant"},
		{"blank name falls back", "bau_", "   ", "bau_tenant"},
		{"symbols only fall back", "bau_", "!!!", "bau_tenant"},
		{"upper-case prefix is folded", "BAU_", "Acme Corp", "bau_acme_corp"},
		{"prefix without separator gets one", "tenant", "Acme", "tenant_acme"},
		{"empty prefix uses default", "", "Acme", "bau_acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTenantDatabaseName(tt.prefix, tt.input))
		})
	}
}

func TestDeriveTenantDatabaseName_Deterministic(t *testing.T) {
	for _, in := range []string{"Acme Corp", "Ünïcödé Holdings", "", "a-b_c d"} {
		first := DeriveTenantDatabaseName("bau_", in)
		second := DeriveTenantDatabaseName("bau_", in)
		assert.Equal(t, first, second, in)
	}
}

func TestDeriveTenantDatabaseName_Limits(t *testing.T) {
	name := DeriveTenantDatabaseName("bau_", strings.Repeat("Very Long Company Name ", 10))

	assert.LessOrEqual(t, len(name), MaxDatabaseNameLength)
	assert.True(t, strings.HasPrefix(name, "bau_very_long_company_name"))
	assert.False(t, strings.HasSuffix(name, "_"))
	assert.Regexp(t, `^[a-z0-9_]+$`, name)
}
