// backend-go/internal/service/analysis_service.go
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/cache"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/ingest"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/pipeline"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/pipeline/profiling"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/report"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/signals"
)

// AnalysisService runs the profiling, forecasting and optimization
// pipeline and answers read queries from the latest saved report.
// The run and input repositories are optional; without them results
// live only in the report store.
type AnalysisService struct {
	cfg      config.PipelineConfig
	provider signals.Provider
	reports  *report.Store
	cache    cache.ReportCache
	runs     repository.AnalysisRepository
	inputs   repository.PrescriptionRepository
	profiler *profiling.Profiler
}

func NewAnalysisService(
	cfg config.PipelineConfig,
	provider signals.Provider,
	reports *report.Store,
	cacheImpl cache.ReportCache,
	runs repository.AnalysisRepository,
	inputs repository.PrescriptionRepository,
) *AnalysisService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopReportCache()
	}
	return &AnalysisService{
		cfg:      cfg,
		provider: provider,
		reports:  reports,
		cache:    cacheImpl,
		runs:     runs,
		inputs:   inputs,
		profiler: profiling.NewProfiler(cfg.Profiling),
	}
}

// MedicationDemand is the per-medication slice of the latest forecast.
type MedicationDemand struct {
	Medication  string                      `json:"medication"`
	TotalDemand float64                     `json:"total_predicted_demand"`
	Forecasts   []domain.MedicationForecast `json:"forecasts"`
}

// RunFromCSV executes a full analysis over the CSV tables in dir and
// returns the saved report payload. The prescription file is required;
// missing inventory or medication files degrade the run instead of
// failing it.
func (s *AnalysisService) RunFromCSV(ctx context.Context, dir string, analysisDate time.Time) (*report.Payload, error) {
	in := pipeline.Inputs{AnalysisDate: analysisDate}

	var g errgroup.Group
	g.Go(func() error {
		events, err := ingest.LoadPrescriptions(filepath.Join(dir, ingest.PrescriptionsFile))
		if err != nil {
			return err
		}
		in.Prescriptions = events
		return nil
	})
	g.Go(func() error {
		path := filepath.Join(dir, ingest.InventoryFile)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Warn().Str("file", path).Msg("analysis: inventory file missing, optimizing without stock data")
			return nil
		}
		lots, err := ingest.LoadInventory(path)
		if err != nil {
			return err
		}
		in.Lots = lots
		return nil
	})
	g.Go(func() error {
		path := filepath.Join(dir, ingest.MedicationsFile)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Warn().Str("file", path).Msg("analysis: medication file missing, using keyword categories")
			return nil
		}
		meds, err := ingest.LoadMedications(path)
		if err != nil {
			return err
		}
		in.Medications = meds
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.run(ctx, in)
}

// RunFromStore executes a full analysis over the input tables in the
// database.
func (s *AnalysisService) RunFromStore(ctx context.Context, analysisDate time.Time) (*report.Payload, error) {
	if s.inputs == nil {
		return nil, fmt.Errorf("no input repository configured")
	}
	in := pipeline.Inputs{AnalysisDate: analysisDate}

	var g errgroup.Group
	g.Go(func() error {
		events, err := s.inputs.LoadPrescriptions(ctx)
		if err != nil {
			return err
		}
		in.Prescriptions = events
		return nil
	})
	g.Go(func() error {
		lots, err := s.inputs.LoadInventory(ctx)
		if err != nil {
			return err
		}
		in.Lots = lots
		return nil
	})
	g.Go(func() error {
		meds, err := s.inputs.LoadMedications(ctx)
		if err != nil {
			return err
		}
		in.Medications = meds
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.run(ctx, in)
}

func (s *AnalysisService) run(ctx context.Context, in pipeline.Inputs) (*report.Payload, error) {
	var recorder pipeline.RunRecorder
	if s.runs != nil {
		recorder = s.runs
	}

	// 1. Execute the three stages.
	orch := pipeline.NewOrchestrator(s.cfg, s.provider, recorder)
	res, err := orch.Run(ctx, in)
	if err != nil {
		return nil, err
	}

	// 2. Save the report, the artifact every read path serves from.
	payload := report.NewPayload(s.cfg, res)
	if s.reports != nil {
		path, err := s.reports.Save(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to save report: %w", err)
		}
		log.Info().Str("path", path).Str("run_id", res.Run.ID.String()).Msg("analysis report saved")
	}

	// 3. Mirror recommendations and the forecast summary to the
	// database when one is configured. The run row itself was already
	// written through the recorder.
	if s.runs != nil {
		if err := s.runs.ReplaceOrders(ctx, res.Run.ID, res.Optimization.OrderRecommendations); err != nil {
			log.Warn().Err(err).Msg("analysis: persist recommendations failed")
		}
		if err := s.runs.SaveForecastSummary(ctx, res.Run.ID, res.Forecast.Summary); err != nil {
			log.Warn().Err(err).Msg("analysis: persist forecast summary failed")
		}
	}

	// 4. Drop cached reports so readers see this run.
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("analysis: cache invalidation failed")
	}

	return payload, nil
}

// LatestReport returns the most recent report payload.
func (s *AnalysisService) LatestReport(ctx context.Context) (*report.Payload, error) {
	key := cache.LatestReportKey()
	if payload, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return payload, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("analysis: cache get failed")
	}

	payload, err := s.reports.Latest()
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, payload); err != nil {
		log.Warn().Err(err).Msg("analysis: cache set failed")
	}

	return payload, nil
}

// ReportByRun returns the report payload for one run.
func (s *AnalysisService) ReportByRun(ctx context.Context, runID uuid.UUID) (*report.Payload, error) {
	key := cache.RunReportKey(runID)
	if payload, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return payload, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("analysis: cache get failed")
	}

	payload, err := s.reports.Load(runID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, payload); err != nil {
		log.Warn().Err(err).Msg("analysis: cache set failed")
	}

	return payload, nil
}

// GetRun returns the run record, preferring the database when one is
// configured.
func (s *AnalysisService) GetRun(ctx context.Context, runID uuid.UUID) (*domain.AnalysisRun, error) {
	if s.runs != nil {
		return s.runs.GetRun(ctx, runID)
	}
	payload, err := s.ReportByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return payload.Run, nil
}

// ListRuns returns run records matching the filter, newest first.
// Without a database the listing is reconstructed from stored reports.
func (s *AnalysisService) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.AnalysisRun, error) {
	if s.runs != nil {
		return s.runs.ListRuns(ctx, filter)
	}

	entries, err := s.reports.List()
	if err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	runs := make([]domain.AnalysisRun, 0, len(entries))
	for _, entry := range entries {
		payload, err := s.reports.Load(entry.ID)
		if err != nil {
			log.Warn().Err(err).Str("run_id", entry.ID.String()).Msg("analysis: skipping unreadable report")
			continue
		}
		run := *payload.Run
		if filter.Stage != "" && run.Stage != filter.Stage {
			continue
		}
		if !filter.Since.IsZero() && run.StartedAt.Before(filter.Since) {
			continue
		}
		runs = append(runs, run)
		if len(runs) >= limit {
			break
		}
	}
	return runs, nil
}

// DueSoon lists profiles whose predicted refill falls within the next
// days, from the latest report. days <= 0 uses the configured window.
func (s *AnalysisService) DueSoon(ctx context.Context, days int) ([]domain.PatientMedicationProfile, error) {
	if days <= 0 {
		days = s.cfg.Profiling.DueSoonDays
	}
	payload, err := s.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	if payload.Profiling == nil {
		return nil, fmt.Errorf("latest report has no profiles: %w", domain.ErrNoProfiles)
	}
	return s.profiler.DueWithin(payload.Profiling, days), nil
}

// ProfileSummaries aggregates the latest patient profiles per
// medication.
func (s *AnalysisService) ProfileSummaries(ctx context.Context) ([]domain.MedicationProfileSummary, error) {
	payload, err := s.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	if payload.Profiling == nil {
		return nil, fmt.Errorf("latest report has no profiles: %w", domain.ErrNoProfiles)
	}
	return s.profiler.SummarizeByMedication(payload.Profiling), nil
}

// ForecastFor returns the latest forecast records for one medication.
func (s *AnalysisService) ForecastFor(ctx context.Context, medication string) (*MedicationDemand, error) {
	payload, err := s.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	if payload.Forecasting == nil {
		return nil, fmt.Errorf("latest report has no forecast: %w", domain.ErrNoForecast)
	}

	demand := &MedicationDemand{Medication: medication}
	for _, f := range payload.Forecasting.MedicationForecasts {
		if !strings.EqualFold(f.Medication, medication) {
			continue
		}
		demand.Medication = f.Medication
		demand.TotalDemand += f.PredictedDemand
		demand.Forecasts = append(demand.Forecasts, f)
	}
	if len(demand.Forecasts) == 0 {
		return nil, fmt.Errorf("medication %s: %w", medication, domain.ErrNoForecast)
	}
	return demand, nil
}

// Recommendations returns the latest order recommendations, optionally
// narrowed to one priority. An empty priority matches everything.
func (s *AnalysisService) Recommendations(ctx context.Context, priority string) ([]domain.OrderRecommendation, error) {
	var (
		want domain.OrderPriority
		ok   bool
	)
	if priority != "" {
		if want, ok = domain.ParseOrderPriority(priority); !ok {
			return nil, fmt.Errorf("unknown priority %q", priority)
		}
	}

	payload, err := s.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	if payload.Optimization == nil {
		return []domain.OrderRecommendation{}, nil
	}

	orders := payload.Optimization.OrderRecommendations
	if priority == "" {
		return orders, nil
	}
	filtered := make([]domain.OrderRecommendation, 0, len(orders))
	for _, o := range orders {
		if o.Priority == want {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// CategoryAdjustments reports the demand multiplier currently in
// effect per category, collected from the signal provider.
func (s *AnalysisService) CategoryAdjustments(ctx context.Context) ([]domain.DemandAdjustment, error) {
	if s.provider == nil {
		return []domain.DemandAdjustment{}, nil
	}
	bundle, err := s.provider.Collect(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to collect signals: %w", err)
	}
	return signals.DemandAdjustments(bundle), nil
}
