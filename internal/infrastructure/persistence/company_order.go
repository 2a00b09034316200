package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// companySortColumns maps accepted order_by values, in both API and column
// spelling, to companies columns. Anything else sorts by creation time.
var companySortColumns = map[string]string{
	"created_at":     "created_at",
	"createdAt":      "created_at",
	"name":           "name",
	"tenant_db_name": "tenant_db_name",
	"tenantDbName":   "tenant_db_name",
	"billing_plan":   "billing_plan",
	"billingPlan":    "billing_plan",
}

// companyOrder builds the ORDER BY for a company listing. Newest first
// unless asc is requested. The id tie-breaker keeps pages stable when the
// sort column has duplicates.
func companyOrder(orderBy, orderDir string) []clause.OrderByColumn {
	column, ok := companySortColumns[strings.TrimSpace(orderBy)]
	if !ok {
		column = "created_at"
	}
	desc := !strings.EqualFold(strings.TrimSpace(orderDir), "asc")

	return []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}},
	}
}
