package forecasting

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

const (
	defaultHorizonDays    = 30
	defaultSpikeThreshold = 1.5
)

// z-scores for the supported interval confidence levels
var zScores = map[float64]float64{
	0.90: 1.645,
	0.95: 1.96,
	0.99: 2.576,
}

// Forecaster turns patient profiles and external signals into per-day
// demand forecasts.
type Forecaster struct {
	cfg      config.ForecastingConfig
	resolver CategoryResolver
}

// NewForecaster creates a forecaster. Zero config fields fall back to
// defaults; a nil resolver falls back to the keyword heuristic.
func NewForecaster(cfg config.ForecastingConfig, resolver CategoryResolver) *Forecaster {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	if cfg.SpikeThreshold <= 0 {
		cfg.SpikeThreshold = defaultSpikeThreshold
	}
	if cfg.ConfidenceLevel <= 0 {
		cfg.ConfidenceLevel = 0.95
	}
	if resolver == nil {
		resolver = KeywordResolver{}
	}
	return &Forecaster{cfg: cfg, resolver: resolver}
}

// Forecast produces demand forecasts for every medication with predicted
// refills inside the window starting at start. A nil or partial signal
// bundle lowers data completeness but never fails the forecast.
func (f *Forecaster) Forecast(profiles *domain.ProfilingResult, signals *domain.ExternalSignals, start time.Time) (*domain.ForecastingResult, error) {
	if profiles == nil {
		return nil, fmt.Errorf("forecasting: %w", domain.ErrNoProfiles)
	}
	if start.IsZero() {
		start = profiles.AnalysisDate
	}
	start = dateOnly(start)
	end := start.AddDate(0, 0, f.cfg.HorizonDays-1)

	// 1. Aggregate predicted refills into (medication, date) demand buckets
	patientDemand := aggregatePatientDemand(profiles, start, end)

	// 2. Derive category multipliers from the signal bundle
	multipliers := deriveMultipliers(signals)
	disrupted := signals.DisruptedMedications()

	// 3. Per-day forecast for each medication, in sorted order
	medications := make([]string, 0, len(patientDemand))
	for medication := range patientDemand {
		medications = append(medications, medication)
	}
	sort.Strings(medications)

	var records []domain.MedicationForecast
	for _, medication := range medications {
		records = append(records, f.forecastMedication(
			medication,
			patientDemand[medication],
			multipliers,
			disrupted[medication],
			start,
			end,
		)...)
	}

	// 4. Category rollups and run summary
	categories := f.aggregateByCategory(records, signals, start)
	summary := f.summarize(records, start, signals)

	method := domain.MethodSimpleAverage
	if len(patientDemand) > 0 {
		method = domain.MethodPatientBased
	}

	var notes []string
	if signals == nil {
		notes = append(notes, "no external signals collected")
	} else {
		if signals.Quality != domain.SignalComplete {
			notes = append(notes, fmt.Sprintf("external signals quality: %s", signals.Quality))
		}
		notes = append(notes, signals.Notes...)
	}

	return &domain.ForecastingResult{
		AnalysisDate:             profiles.AnalysisDate,
		ForecastStartDate:        start,
		ForecastEndDate:          end,
		MedicationForecasts:      records,
		CategoryForecasts:        categories,
		Summary:                  summary,
		PatientProfilesCount:     profiles.TotalPatientMedications,
		ExternalSignalsAvailable: signals != nil,
		Method:                   method,
		Notes:                    notes,
	}, nil
}

// aggregatePatientDemand buckets last-known quantities by medication and
// expected refill date for predictions inside the window.
func aggregatePatientDemand(profiles *domain.ProfilingResult, start, end time.Time) map[string]map[time.Time]float64 {
	demand := make(map[string]map[time.Time]float64)

	for _, profile := range profiles.Profiles {
		if profile.Prediction == nil {
			continue
		}
		refillDate := dateOnly(profile.Prediction.ExpectedDate)
		if refillDate.Before(start) || refillDate.After(end) {
			continue
		}
		byDate := demand[profile.Medication]
		if byDate == nil {
			byDate = make(map[time.Time]float64)
			demand[profile.Medication] = byDate
		}
		byDate[refillDate] += float64(profile.LastQuantity)
	}

	return demand
}

// forecastMedication emits one record per day in the window for a single
// medication.
func (f *Forecaster) forecastMedication(medication string, demand map[time.Time]float64, multipliers Multipliers, disrupted bool, start, end time.Time) []domain.MedicationForecast {
	category := f.resolver.Resolve(medication)
	multiplier := multipliers.For(category)
	z := zFor(f.cfg.ConfidenceLevel)

	records := make([]domain.MedicationForecast, 0, f.cfg.HorizonDays)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		patientBased := demand[day]
		base := patientBased
		predicted := base * multiplier

		// Forecasts grounded in concrete predicted refills carry tighter
		// bounds than multiplier-only extrapolation
		confidence := 0.60
		stdDev := predicted * 0.30
		if patientBased > 0 {
			confidence = 0.85
			stdDev = predicted * 0.15
		}
		lower := math.Max(0, predicted-z*stdDev)
		upper := predicted + z*stdDev

		var alerts []domain.DemandAlert
		if predicted > base*f.cfg.SpikeThreshold {
			alerts = append(alerts, domain.AlertSpike)
		}
		if disrupted {
			alerts = append(alerts, domain.AlertShortageRisk)
		}

		records = append(records, domain.MedicationForecast{
			Medication:         medication,
			Category:           category,
			ForecastDate:       day,
			PredictedDemand:    predicted,
			LowerBound:         lower,
			UpperBound:         upper,
			BaseDemand:         base,
			PatientBasedDemand: patientBased,
			ExternalMultiplier: multiplier,
			Confidence:         confidence,
			Method:             domain.MethodPatientBased,
			Alerts:             alerts,
		})
	}

	return records
}

// aggregateByCategory rolls same-day records up per category. Each category
// is summarized on the window start date; the trend compares demand in the
// two halves of the window.
func (f *Forecaster) aggregateByCategory(records []domain.MedicationForecast, signals *domain.ExternalSignals, start time.Time) []domain.CategoryForecast {
	type bucket struct {
		total       float64
		medications map[string]bool
		confidences []float64
		firstHalf   float64
		secondHalf  float64
	}

	mid := start.AddDate(0, 0, f.cfg.HorizonDays/2)
	buckets := make(map[string]*bucket)
	for _, rec := range records {
		if rec.Category == "" {
			continue
		}
		b := buckets[rec.Category]
		if b == nil {
			b = &bucket{medications: make(map[string]bool)}
			buckets[rec.Category] = b
		}
		if rec.ForecastDate.Equal(start) {
			b.total += rec.PredictedDemand
			b.medications[rec.Medication] = true
			b.confidences = append(b.confidences, rec.Confidence)
		}
		if rec.ForecastDate.Before(mid) {
			b.firstHalf += rec.PredictedDemand
		} else {
			b.secondHalf += rec.PredictedDemand
		}
	}

	categories := make([]string, 0, len(buckets))
	for category := range buckets {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	out := make([]domain.CategoryForecast, 0, len(categories))
	for _, category := range categories {
		b := buckets[category]

		avgConfidence := 0.5
		if len(b.confidences) > 0 {
			var sum float64
			for _, c := range b.confidences {
				sum += c
			}
			avgConfidence = sum / float64(len(b.confidences))
		}

		out = append(out, domain.CategoryForecast{
			Category:             category,
			ForecastDate:         start,
			TotalPredictedDemand: b.total,
			MedicationCount:      len(b.medications),
			AverageConfidence:    avgConfidence,
			Trend:                categoryTrend(b.firstHalf, b.secondHalf),
			FluImpact:            signals != nil && signals.Epidemic != nil && (category == "antiviral" || category == "cold_flu"),
			WeatherImpact:        signals != nil && signals.Weather != nil && category == "cold_flu",
			EventImpact:          eventAffects(signals, category),
		})
	}

	return out
}

func categoryTrend(firstHalf, secondHalf float64) string {
	if firstHalf <= 0 {
		if secondHalf > 0 {
			return "increasing"
		}
		return "stable"
	}
	ratio := secondHalf / firstHalf
	switch {
	case ratio > 1.1:
		return "increasing"
	case ratio < 0.9:
		return "decreasing"
	default:
		return "stable"
	}
}

func eventAffects(signals *domain.ExternalSignals, category string) bool {
	if signals == nil {
		return false
	}
	for _, event := range signals.Events {
		for _, c := range event.Categories {
			if c == category || c == categoryAll {
				return true
			}
		}
	}
	return false
}

func (f *Forecaster) summarize(records []domain.MedicationForecast, start time.Time, signals *domain.ExternalSignals) domain.ForecastSummary {
	medications := make(map[string]bool)
	var totalDemand, confidenceSum float64
	var spikes, shortages int

	for _, rec := range records {
		medications[rec.Medication] = true
		totalDemand += rec.PredictedDemand
		confidenceSum += rec.Confidence
		if rec.HasAlert(domain.AlertSpike) {
			spikes++
		}
		if rec.HasAlert(domain.AlertShortageRisk) {
			shortages++
		}
	}

	avgConfidence := 0.0
	if len(records) > 0 {
		avgConfidence = confidenceSum / float64(len(records))
	}

	return domain.ForecastSummary{
		ForecastDate:         start,
		ForecastHorizonDays:  f.cfg.HorizonDays,
		TotalMedications:     len(medications),
		TotalPredictedDemand: totalDemand,
		HighPriorityAlerts:   spikes + shortages,
		SpikeAlerts:          spikes,
		ShortageRisks:        shortages,
		AverageConfidence:    avgConfidence,
		DataCompleteness:     completeness(signals),
	}
}

// completeness mirrors signal quality: absent signals degrade the tag,
// present-but-imperfect signals mark it partial.
func completeness(signals *domain.ExternalSignals) string {
	switch {
	case signals == nil:
		return string(domain.SignalDegraded)
	case signals.Quality == domain.SignalComplete:
		return string(domain.SignalComplete)
	default:
		return string(domain.SignalPartial)
	}
}

func zFor(confidenceLevel float64) float64 {
	if z, ok := zScores[confidenceLevel]; ok {
		return z
	}
	return 1.96
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
