package overspend

import (
	"context"
)

// Table, view and column names.
const (
	TableCampaigns      = "campaigns"
	TableCampaignAds    = "campaign_ads"
	ViewOverspends      = "campaign_overspends"
	colCampaignID       = "campaign_id"
	colAdID             = "ad_id"
	colBudget           = "budget"
	colClicks           = "clicks"
	colSpend            = "spend"
	aliasMaxID          = "max_id"
	aliasHowMany        = "how_many"
	dialectPostgres     = "postgres"
	spendPerClickDivide = 2
)

// SchemaStatements create the tables and the overspend view if they do not exist yet.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		campaign_id BIGINT PRIMARY KEY,
		budget      BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS campaign_ads (
		campaign_id BIGINT NOT NULL,
		ad_id       BIGINT NOT NULL,
		clicks      BIGINT NOT NULL DEFAULT 0,
		spend       BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (campaign_id, ad_id)
	)`,
	`CREATE OR REPLACE VIEW campaign_overspends AS
		SELECT c.campaign_id, c.budget, COALESCE(SUM(a.spend), 0) AS spend
		FROM campaigns c
		LEFT JOIN campaign_ads a ON a.campaign_id = c.campaign_id
		GROUP BY c.campaign_id, c.budget`,
}

// SchemaExecer runs statements in one transaction; *pgbackend.Client satisfies it.
type SchemaExecer interface {
	Exec(ctx context.Context, statements ...string) error
}

// EnsureSchema creates the campaign schema.
func EnsureSchema(ctx context.Context, db SchemaExecer) error {
	return db.Exec(ctx, SchemaStatements...)
}
