package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository"
)

const runColumns = `id, analysis_date, stage, started_at, completed_at,
		prescriptions, profiles, forecasts, orders,
		profiling_time, forecasting_time, optimizing_time, error_message`

type analysisRepository struct {
	db *DB
}

func NewAnalysisRepository(db *DB) repository.AnalysisRepository {
	return &analysisRepository{db: db}
}

// RecordRun upserts the run row keyed by run ID. The analysis date and
// start time are written once; every later transition only moves the
// stage, counters, timings and completion fields forward.
func (r *analysisRepository) RecordRun(ctx context.Context, run *domain.AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (
			id, analysis_date, stage, started_at, completed_at,
			prescriptions, profiles, forecasts, orders,
			profiling_time, forecasting_time, optimizing_time, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			completed_at = EXCLUDED.completed_at,
			prescriptions = EXCLUDED.prescriptions,
			profiles = EXCLUDED.profiles,
			forecasts = EXCLUDED.forecasts,
			orders = EXCLUDED.orders,
			profiling_time = EXCLUDED.profiling_time,
			forecasting_time = EXCLUDED.forecasting_time,
			optimizing_time = EXCLUDED.optimizing_time,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.AnalysisDate, run.Stage, run.StartedAt, run.CompletedAt,
		run.Prescriptions, run.Profiles, run.Forecasts, run.Orders,
		run.ProfilingTime, run.ForecastingTime, run.OptimizingTime, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

func (r *analysisRepository) GetRun(ctx context.Context, id uuid.UUID) (*domain.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = $1`

	var run domain.AnalysisRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return &run, nil
}

func (r *analysisRepository) LatestRun(ctx context.Context) (*domain.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs ORDER BY started_at DESC LIMIT 1`

	var run domain.AnalysisRun
	if err := r.db.GetContext(ctx, &run, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no runs recorded: %w", domain.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &run, nil
}

func (r *analysisRepository) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE 1=1`

	var args []interface{}
	var conditions []string
	argCounter := 1

	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", argCounter))
		args = append(args, filter.Stage)
		argCounter++
	}

	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("started_at >= $%d", argCounter))
		args = append(args, filter.Since)
		argCounter++
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	var runs []domain.AnalysisRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// ReplaceOrders swaps the recommendation set for a run in one
// transaction. Re-running an analysis never leaves stale rows behind.
func (r *analysisRepository) ReplaceOrders(ctx context.Context, runID uuid.UUID, orders []domain.OrderRecommendation) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_recommendations WHERE run_id = $1`, runID); err != nil {
			return fmt.Errorf("failed to clear recommendations for run %s: %w", runID, err)
		}

		query := `
			INSERT INTO order_recommendations (
				run_id, medication, category, current_quantity, forecasted_demand_30d,
				recommended_quantity, recommended_cases, reorder_point, safety_stock,
				order_cost, days_of_supply, priority, reasons,
				urgency_score, stockout_risk, overstock_risk
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, o := range orders {
			_, err := stmt.ExecContext(
				ctx,
				runID,
				o.Medication,
				o.Category,
				o.CurrentQuantity,
				o.ForecastedDemand30d,
				o.RecommendedQuantity,
				o.RecommendedCases,
				o.ReorderPoint,
				o.SafetyStock,
				o.OrderCost,
				o.DaysOfSupplyAfter,
				o.Priority,
				joinReasons(o.Reasons),
				o.UrgencyScore,
				o.StockoutRisk,
				o.OverstockRisk,
			)
			if err != nil {
				return fmt.Errorf("failed to insert recommendation for %s: %w", o.Medication, err)
			}
		}

		return nil
	})
}

// orderRow adds the flattened reasons column to the domain struct for
// scanning.
type orderRow struct {
	domain.OrderRecommendation
	ReasonsRaw string `db:"reasons_raw"`
}

func (r *analysisRepository) OrdersForRun(ctx context.Context, runID uuid.UUID, priority domain.OrderPriority) ([]domain.OrderRecommendation, error) {
	query := `
		SELECT medication, category, current_quantity, forecasted_demand_30d,
			recommended_quantity, recommended_cases, reorder_point, safety_stock,
			order_cost, days_of_supply, priority, reasons AS reasons_raw,
			urgency_score, stockout_risk, overstock_risk
		FROM order_recommendations
		WHERE run_id = $1
	`

	args := []interface{}{runID}
	if priority != "" {
		query += " AND priority = $2"
		args = append(args, priority)
	}

	// Same ordering the optimizer emits: priority rank, urgency, name.
	query += `
		ORDER BY CASE priority
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			ELSE 3
		END, urgency_score DESC, medication ASC
	`

	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get recommendations for run %s: %w", runID, err)
	}

	orders := make([]domain.OrderRecommendation, len(rows))
	for i, row := range rows {
		o := row.OrderRecommendation
		o.Reasons = splitReasons(row.ReasonsRaw)
		orders[i] = o
	}
	return orders, nil
}

func (r *analysisRepository) SaveForecastSummary(ctx context.Context, runID uuid.UUID, summary domain.ForecastSummary) error {
	query := `
		INSERT INTO forecast_summaries (
			run_id, forecast_date, forecast_horizon_days, total_medications,
			total_predicted_demand, high_priority_alerts, spike_alerts,
			shortage_risks, average_confidence, data_completeness
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO UPDATE SET
			forecast_date = EXCLUDED.forecast_date,
			forecast_horizon_days = EXCLUDED.forecast_horizon_days,
			total_medications = EXCLUDED.total_medications,
			total_predicted_demand = EXCLUDED.total_predicted_demand,
			high_priority_alerts = EXCLUDED.high_priority_alerts,
			spike_alerts = EXCLUDED.spike_alerts,
			shortage_risks = EXCLUDED.shortage_risks,
			average_confidence = EXCLUDED.average_confidence,
			data_completeness = EXCLUDED.data_completeness
	`
	_, err := r.db.ExecContext(ctx, query,
		runID, summary.ForecastDate, summary.ForecastHorizonDays, summary.TotalMedications,
		summary.TotalPredictedDemand, summary.HighPriorityAlerts, summary.SpikeAlerts,
		summary.ShortageRisks, summary.AverageConfidence, summary.DataCompleteness,
	)
	if err != nil {
		return fmt.Errorf("failed to save forecast summary for run %s: %w", runID, err)
	}
	return nil
}

func (r *analysisRepository) ForecastSummaryForRun(ctx context.Context, runID uuid.UUID) (*domain.ForecastSummary, error) {
	query := `
		SELECT forecast_date, forecast_horizon_days, total_medications,
			total_predicted_demand, high_priority_alerts, spike_alerts,
			shortage_risks, average_confidence, data_completeness
		FROM forecast_summaries
		WHERE run_id = $1
	`

	var summary domain.ForecastSummary
	if err := r.db.GetContext(ctx, &summary, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNoForecast)
		}
		return nil, fmt.Errorf("failed to get forecast summary for run %s: %w", runID, err)
	}
	return &summary, nil
}

func joinReasons(reasons []domain.OrderReason) string {
	parts := make([]string, len(reasons))
	for i, reason := range reasons {
		parts[i] = string(reason)
	}
	return strings.Join(parts, ",")
}

func splitReasons(raw string) []domain.OrderReason {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	reasons := make([]domain.OrderReason, len(parts))
	for i, part := range parts {
		reasons[i] = domain.OrderReason(part)
	}
	return reasons
}
