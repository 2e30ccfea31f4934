package overspend

import (
	"github.com/doug-martin/goqu/v9"
)

// MaxCampaignIDQuery returns the highest existing campaign id as max_id, NULL for an empty table.
func MaxCampaignIDQuery() string {
	query, _, _ := goqu.Dialect(dialectPostgres).
		From(TableCampaigns).
		Select(goqu.MAX(colCampaignID).As(aliasMaxID)).
		ToSQL()

	return query
}

// OverspendCountQuery returns how many campaigns spent more than their budget as how_many.
func OverspendCountQuery() string {
	query, _, _ := goqu.Dialect(dialectPostgres).
		From(ViewOverspends).
		Select(goqu.COUNT(goqu.Star()).As(aliasHowMany)).
		Where(goqu.C(colSpend).Gt(goqu.C(colBudget))).
		ToSQL()

	return query
}
