package provisioning

import (
	"strings"

	"github.com/gosimple/slug"
)

const (
	// DefaultDatabasePrefix is prepended to every tenant database name
	DefaultDatabasePrefix = "bau_"
	// MaxDatabaseNameLength is PostgreSQL's identifier limit (NAMEDATALEN - 1)
	MaxDatabaseNameLength = 63

	fallbackTenantName = "tenant"
)

// DeriveTenantDatabaseName turns a free-text company name into a database
// identifier. The result is lower-case, contains only [a-z0-9_], starts with
// the prefix and fits in MaxDatabaseNameLength. It is a pure function.
//
//	"Acme Corp"        -> "bau_acme_corp"
//	"Müller & Söhne"   -> "bau_muller_and_sohne"
//	"   "              -> "bau_tenant"
func DeriveTenantDatabaseName(prefix, companyName string) string {
	prefix = sanitizeIdentifier(strings.ToLower(prefix))
	if prefix == "" {
		prefix = DefaultDatabasePrefix
	} else {
		prefix += "_"
	}

	base := sanitizeIdentifier(slug.Make(companyName))
	if base == "" {
		base = fallbackTenantName
	}

	name := prefix + base
	if len(name) > MaxDatabaseNameLength {
		name = strings.TrimRight(name[:MaxDatabaseNameLength], "_")
	}
	return name
}

// sanitizeIdentifier keeps [a-z0-9] and folds every other run of
// characters into one underscore, without leading or trailing underscores.
func sanitizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
