package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CSV table filenames produced by ExportCSV.
const (
	OrdersFile    = "order_recommendations.csv"
	ProfilesFile  = "patient_profiles.csv"
	ForecastsFile = "medication_forecasts.csv"
)

const dateLayout = "2006-01-02"

// ExportCSV re-emits the report's result tables as CSV files in dir,
// for spreadsheet review or downstream import. Missing stage results
// produce header-only files.
func (p *Payload) ExportCSV(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed creating export directory %s: %w", dir, err)
	}

	if err := writeTable(filepath.Join(dir, OrdersFile), p.orderRows()); err != nil {
		return err
	}
	if err := writeTable(filepath.Join(dir, ProfilesFile), p.profileRows()); err != nil {
		return err
	}
	return writeTable(filepath.Join(dir, ForecastsFile), p.forecastRows())
}

func (p *Payload) orderRows() [][]string {
	rows := [][]string{{
		"medication", "category", "priority", "recommended_quantity",
		"recommended_cases", "order_cost", "current_quantity",
		"forecasted_demand_30d", "reorder_point", "safety_stock",
		"days_of_supply", "urgency_score", "stockout_risk",
		"overstock_risk", "reasons",
	}}
	if p.Optimization == nil {
		return rows
	}

	for _, o := range p.Optimization.OrderRecommendations {
		reasons := make([]string, len(o.Reasons))
		for i, reason := range o.Reasons {
			reasons[i] = string(reason)
		}
		rows = append(rows, []string{
			o.Medication,
			o.Category,
			string(o.Priority),
			strconv.Itoa(o.RecommendedQuantity),
			strconv.Itoa(o.RecommendedCases),
			strconv.FormatFloat(o.OrderCost, 'f', 2, 64),
			strconv.Itoa(o.CurrentQuantity),
			strconv.FormatFloat(o.ForecastedDemand30d, 'f', 2, 64),
			strconv.Itoa(o.ReorderPoint),
			strconv.Itoa(o.SafetyStock),
			strconv.FormatFloat(o.DaysOfSupplyAfter, 'f', 1, 64),
			strconv.FormatFloat(o.UrgencyScore, 'f', 2, 64),
			strconv.FormatFloat(o.StockoutRisk, 'f', 2, 64),
			strconv.FormatFloat(o.OverstockRisk, 'f', 2, 64),
			strings.Join(reasons, ","),
		})
	}
	return rows
}

func (p *Payload) profileRows() [][]string {
	rows := [][]string{{
		"patient_id", "medication", "behavior_class",
		"average_interval_days", "std_deviation_days", "total_refills",
		"consistency_score", "last_fill_date", "expected_refill_date",
		"days_until_expected", "due_soon", "risk_of_lapse",
	}}
	if p.Profiling == nil {
		return rows
	}

	for _, profile := range p.Profiling.Profiles {
		expected := ""
		daysUntil := ""
		if profile.Prediction != nil {
			expected = profile.Prediction.ExpectedDate.Format(dateLayout)
			daysUntil = strconv.Itoa(profile.Prediction.DaysUntilExpected)
		}
		rows = append(rows, []string{
			profile.PatientID,
			profile.Medication,
			string(profile.Behavior),
			strconv.FormatFloat(profile.Pattern.AverageIntervalDays, 'f', 1, 64),
			strconv.FormatFloat(profile.Pattern.StdDeviationDays, 'f', 1, 64),
			strconv.Itoa(profile.Pattern.TotalRefills),
			strconv.FormatFloat(profile.Pattern.Consistency, 'f', 2, 64),
			profile.LastFillDate.Format(dateLayout),
			expected,
			daysUntil,
			strconv.FormatBool(profile.IsDueSoon),
			strconv.FormatFloat(profile.RiskOfLapse, 'f', 2, 64),
		})
	}
	return rows
}

func (p *Payload) forecastRows() [][]string {
	rows := [][]string{{
		"medication", "category", "forecast_date", "predicted_demand",
		"lower_bound", "upper_bound", "base_demand", "external_multiplier",
		"confidence", "alerts",
	}}
	if p.Forecasting == nil {
		return rows
	}

	for _, f := range p.Forecasting.MedicationForecasts {
		alerts := make([]string, len(f.Alerts))
		for i, alert := range f.Alerts {
			alerts[i] = string(alert)
		}
		rows = append(rows, []string{
			f.Medication,
			f.Category,
			f.ForecastDate.Format(dateLayout),
			strconv.FormatFloat(f.PredictedDemand, 'f', 2, 64),
			strconv.FormatFloat(f.LowerBound, 'f', 2, 64),
			strconv.FormatFloat(f.UpperBound, 'f', 2, 64),
			strconv.FormatFloat(f.BaseDemand, 'f', 2, 64),
			strconv.FormatFloat(f.ExternalMultiplier, 'f', 2, 64),
			strconv.FormatFloat(f.Confidence, 'f', 2, 64),
			strings.Join(alerts, ","),
		})
	}
	return rows
}

func writeTable(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed creating %s: %w", path, err)
	}
	defer file.Close()

	if err := csv.NewWriter(file).WriteAll(rows); err != nil {
		return fmt.Errorf("failed writing %s: %w", path, err)
	}
	return nil
}
