// Package repository declares the persistence contracts the analysis
// services depend on. Postgres implementations live in the postgres
// subpackage.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// AnalysisRepository persists pipeline runs and their outputs. RecordRun
// matches the pipeline recorder seam, so an implementation can be handed
// straight to the orchestrator.
type AnalysisRepository interface {
	RecordRun(ctx context.Context, run *domain.AnalysisRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*domain.AnalysisRun, error)
	LatestRun(ctx context.Context) (*domain.AnalysisRun, error)
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.AnalysisRun, error)
	ReplaceOrders(ctx context.Context, runID uuid.UUID, orders []domain.OrderRecommendation) error
	OrdersForRun(ctx context.Context, runID uuid.UUID, priority domain.OrderPriority) ([]domain.OrderRecommendation, error)
	SaveForecastSummary(ctx context.Context, runID uuid.UUID, summary domain.ForecastSummary) error
	ForecastSummaryForRun(ctx context.Context, runID uuid.UUID) (*domain.ForecastSummary, error)
}

// PrescriptionRepository stores and serves the three input tables for
// database-driven analysis runs. Upserts are keyed on natural keys so
// seeding is idempotent; inventory is replaced wholesale because lot
// records are a snapshot, not a history.
type PrescriptionRepository interface {
	LoadPrescriptions(ctx context.Context) ([]domain.RefillEvent, error)
	LoadInventory(ctx context.Context) ([]domain.InventoryLot, error)
	LoadMedications(ctx context.Context) ([]domain.MedicationInfo, error)
	UpsertPrescriptions(ctx context.Context, events []domain.RefillEvent) (int, error)
	ReplaceInventory(ctx context.Context, lots []domain.InventoryLot) (int, error)
	UpsertMedications(ctx context.Context, meds []domain.MedicationInfo) (int, error)
}
