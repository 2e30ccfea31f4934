package overspend

import (
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend"
)

// Procedure names.
const (
	ProcDeleteCampaign    = "delete_campaigns"
	ProcInsertCampaign    = "campaigns.INSERT"
	ProcInsertCampaignAds = "campaign_ads_object.INSERT"
	ProcReportBids        = "report_bids"
)

// Operation classes, the histogram labels.
const (
	ClassDeleteCampaign    loadgen.OperationClass = "DELETE_CAMPAIGN"
	ClassCreateCampaign    loadgen.OperationClass = "CREATE_CAMPAIGN"
	ClassCreateCampaignAds loadgen.OperationClass = "CREATE_CAMPAIGN_ADS"
	ClassRunCampaign       loadgen.OperationClass = "RUN_CAMPAIGN"
)

// Classes lists the operation classes in phase order.
var Classes = []loadgen.OperationClass{
	ClassDeleteCampaign,
	ClassCreateCampaign,
	ClassCreateCampaignAds,
	ClassRunCampaign,
}

// Procedures returns every campaign procedure keyed by name.
func Procedures() map[string]pgbackend.Procedure {
	return map[string]pgbackend.Procedure{
		ProcDeleteCampaign:    DeleteCampaign,
		ProcInsertCampaign:    InsertCampaign,
		ProcInsertCampaignAds: InsertCampaignAd,
		ProcReportBids:        ReportBids,
	}
}

// DeleteCampaign removes one campaign and its ads. Args: campaignID.
func DeleteCampaign(args ...any) ([]string, error) {
	ids, err := int64Args(ProcDeleteCampaign, args, 1)
	if err != nil {
		return nil, err
	}

	builder := goqu.Dialect(dialectPostgres)

	deleteAds, _, err := builder.Delete(TableCampaignAds).Where(goqu.Ex{colCampaignID: ids[0]}).ToSQL()
	if err != nil {
		return nil, err
	}

	deleteCampaign, _, err := builder.Delete(TableCampaigns).Where(goqu.Ex{colCampaignID: ids[0]}).ToSQL()
	if err != nil {
		return nil, err
	}

	return []string{deleteAds, deleteCampaign}, nil
}

// InsertCampaign creates one campaign. Args: campaignID, budget.
func InsertCampaign(args ...any) ([]string, error) {
	values, err := int64Args(ProcInsertCampaign, args, 2)
	if err != nil {
		return nil, err
	}

	insert, _, err := goqu.Dialect(dialectPostgres).
		Insert(TableCampaigns).
		Rows(goqu.Record{colCampaignID: values[0], colBudget: values[1]}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	return []string{insert}, nil
}

// InsertCampaignAd creates one ad with zero clicks and spend. Args: campaignID, adID.
func InsertCampaignAd(args ...any) ([]string, error) {
	values, err := int64Args(ProcInsertCampaignAds, args, 2)
	if err != nil {
		return nil, err
	}

	insert, _, err := goqu.Dialect(dialectPostgres).
		Insert(TableCampaignAds).
		Rows(goqu.Record{colCampaignID: values[0], colAdID: values[1], colClicks: 0, colSpend: 0}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	return []string{insert}, nil
}

// ReportBids adds clicks and spend to one ad. Args: campaignID, adID, clicks, spend.
func ReportBids(args ...any) ([]string, error) {
	values, err := int64Args(ProcReportBids, args, 4)
	if err != nil {
		return nil, err
	}

	update, _, err := goqu.Dialect(dialectPostgres).
		Update(TableCampaignAds).
		Set(goqu.Record{
			colClicks: goqu.L(`"clicks" + ?`, values[2]),
			colSpend:  goqu.L(`"spend" + ?`, values[3]),
		}).
		Where(goqu.Ex{colCampaignID: values[0], colAdID: values[1]}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	return []string{update}, nil
}

// SpendForClicks is the spend charged for a number of clicks.
func SpendForClicks(clicks int64) int64 {
	return clicks / spendPerClickDivide
}

func int64Args(procedure string, args []any, want int) ([]int64, error) {
	if len(args) != want {
		return nil, errors.Join(loadgen.ErrInvalidArgument, fmt.Errorf("%s wants %d args, got %d", procedure, want, len(args)))
	}

	values := make([]int64, want)
	for i, arg := range args {
		switch v := arg.(type) {
		case int64:
			values[i] = v
		case int:
			values[i] = int64(v)
		case int32:
			values[i] = int64(v)
		default:
			return nil, errors.Join(loadgen.ErrInvalidArgument, fmt.Errorf("%s arg %d has type %T", procedure, i, arg))
		}
	}

	return values, nil
}
