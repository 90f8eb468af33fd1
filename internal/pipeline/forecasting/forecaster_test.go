package forecasting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

var forecastBase = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return forecastBase.AddDate(0, 0, n)
}

func profileWithPrediction(patient, medication string, qty int, expected time.Time) domain.PatientMedicationProfile {
	return domain.PatientMedicationProfile{
		PatientID:    patient,
		Medication:   medication,
		Behavior:     domain.BehaviorRegular,
		Prediction:   &domain.RefillPrediction{ExpectedDate: expected, Confidence: 0.8},
		LastQuantity: qty,
	}
}

func profilingResult(analysis time.Time, profiles ...domain.PatientMedicationProfile) *domain.ProfilingResult {
	return &domain.ProfilingResult{
		Profiles:                profiles,
		TotalPatientMedications: len(profiles),
		AnalysisDate:            analysis,
	}
}

func newTestForecaster() *Forecaster {
	return NewForecaster(config.ForecastingConfig{
		HorizonDays:     30,
		ConfidenceLevel: 0.95,
		SpikeThreshold:  1.5,
	}, nil)
}

func TestForecastAggregatesPatientDemand(t *testing.T) {
	f := newTestForecaster()
	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "Metformin 500mg", 60, day(105)),
		profileWithPrediction("P2", "Metformin 500mg", 30, day(105)),
		profileWithPrediction("P3", "Metformin 500mg", 30, day(110)),
	)

	result, err := f.Forecast(profiles, nil, day(100))
	require.NoError(t, err)

	// One record per day in the window
	require.Len(t, result.MedicationForecasts, 30)
	assert.Equal(t, day(100), result.ForecastStartDate)
	assert.Equal(t, day(129), result.ForecastEndDate)
	assert.Equal(t, domain.MethodPatientBased, result.Method)

	peak := result.ForecastFor("Metformin 500mg", day(105))
	require.NotNil(t, peak)
	assert.InDelta(t, 90.0, peak.PredictedDemand, 0.001)
	assert.InDelta(t, 0.85, peak.Confidence, 0.001)

	quiet := result.ForecastFor("Metformin 500mg", day(106))
	require.NotNil(t, quiet)
	assert.Zero(t, quiet.PredictedDemand)
	assert.InDelta(t, 0.60, quiet.Confidence, 0.001)

	assert.InDelta(t, 120.0, result.TotalDemandFor("Metformin 500mg"), 0.001)
	assert.Equal(t, 1, result.Summary.TotalMedications)
}

func TestForecastEpidemicSpike(t *testing.T) {
	f := newTestForecaster()
	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "Tamiflu 75mg", 30, day(102)),
	)
	signals := &domain.ExternalSignals{
		Epidemic: &domain.EpidemicActivity{Level: 8, Trend: domain.TrendRapidIncrease, Region: "attica", AsOf: day(100)},
		Quality:  domain.SignalComplete,
	}

	result, err := f.Forecast(profiles, signals, day(100))
	require.NoError(t, err)

	rec := result.ForecastFor("Tamiflu 75mg", day(102))
	require.NotNil(t, rec)
	assert.Equal(t, "antiviral", rec.Category)
	assert.InDelta(t, 2.22, rec.ExternalMultiplier, 0.001)
	assert.InDelta(t, 30*2.22, rec.PredictedDemand, 0.001)
	assert.True(t, rec.HasAlert(domain.AlertSpike))

	assert.Equal(t, 1, result.Summary.SpikeAlerts)
	assert.Equal(t, "complete", result.Summary.DataCompleteness)
	assert.True(t, result.ExternalSignalsAvailable)
}

func TestForecastBoundsAndDemandCap(t *testing.T) {
	f := newTestForecaster()
	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "Tamiflu 75mg", 30, day(102)),
		profileWithPrediction("P2", "Metformin 500mg", 90, day(103)),
	)
	signals := &domain.ExternalSignals{
		Epidemic: &domain.EpidemicActivity{Level: 8, Trend: domain.TrendRapidIncrease},
		Quality:  domain.SignalComplete,
	}

	result, err := f.Forecast(profiles, signals, day(100))
	require.NoError(t, err)

	var totalPredicted, totalPatient float64
	for _, rec := range result.MedicationForecasts {
		assert.GreaterOrEqual(t, rec.LowerBound, 0.0)
		assert.LessOrEqual(t, rec.LowerBound, rec.PredictedDemand)
		assert.GreaterOrEqual(t, rec.UpperBound, rec.PredictedDemand)
		totalPredicted += rec.PredictedDemand
		totalPatient += rec.PatientBasedDemand
	}

	// Total demand never exceeds patient demand scaled by the strongest
	// multiplier in effect
	assert.LessOrEqual(t, totalPredicted, totalPatient*2.22+0.001)
}

func TestForecastShortageAlerts(t *testing.T) {
	f := newTestForecaster()
	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "Amoxicillin 500mg", 20, day(101)),
	)
	signals := &domain.ExternalSignals{
		Disruptions: []domain.SupplyDisruption{{Medication: "Amoxicillin 500mg", Severity: "high"}},
		Quality:     domain.SignalComplete,
	}

	result, err := f.Forecast(profiles, signals, day(100))
	require.NoError(t, err)

	rec := result.ForecastFor("Amoxicillin 500mg", day(101))
	require.NotNil(t, rec)
	assert.True(t, rec.HasAlert(domain.AlertShortageRisk))

	// Every day of a disrupted medication carries the alert
	assert.Equal(t, 30, result.Summary.ShortageRisks)
	assert.NotEmpty(t, result.HighRiskMedications())
}

func TestForecastWithoutSignals(t *testing.T) {
	f := newTestForecaster()
	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "Lisinopril 10mg", 30, day(104)),
	)

	result, err := f.Forecast(profiles, nil, day(100))
	require.NoError(t, err)

	assert.False(t, result.ExternalSignalsAvailable)
	assert.Equal(t, "degraded", result.Summary.DataCompleteness)
	assert.Contains(t, result.Notes, "no external signals collected")

	rec := result.ForecastFor("Lisinopril 10mg", day(104))
	require.NotNil(t, rec)
	assert.InDelta(t, 1.0, rec.ExternalMultiplier, 0.001)
	assert.InDelta(t, 30.0, rec.PredictedDemand, 0.001)
}

func TestForecastPartialSignalsNoted(t *testing.T) {
	f := newTestForecaster()
	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "Lisinopril 10mg", 30, day(104)),
	)
	signals := &domain.ExternalSignals{Quality: domain.SignalPartial}

	result, err := f.Forecast(profiles, signals, day(100))
	require.NoError(t, err)

	assert.Equal(t, "partial", result.Summary.DataCompleteness)
	assert.Contains(t, result.Notes, "external signals quality: partial")
}

func TestForecastWindowFiltering(t *testing.T) {
	f := newTestForecaster()
	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "Metformin 500mg", 60, day(95)),  // before window
		profileWithPrediction("P2", "Metformin 500mg", 60, day(130)), // after window
	)

	result, err := f.Forecast(profiles, nil, day(100))
	require.NoError(t, err)

	assert.Empty(t, result.MedicationForecasts)
	assert.Equal(t, domain.MethodSimpleAverage, result.Method)
	assert.Zero(t, result.Summary.TotalMedications)
}

func TestForecastSortedByMedicationThenDate(t *testing.T) {
	f := newTestForecaster()
	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "Zyrtec 10mg", 30, day(101)),
		profileWithPrediction("P2", "Amoxicillin 500mg", 20, day(101)),
	)

	result, err := f.Forecast(profiles, nil, day(100))
	require.NoError(t, err)
	require.Len(t, result.MedicationForecasts, 60)

	prev := result.MedicationForecasts[0]
	for _, rec := range result.MedicationForecasts[1:] {
		if rec.Medication == prev.Medication {
			assert.True(t, rec.ForecastDate.After(prev.ForecastDate))
		} else {
			assert.Less(t, prev.Medication, rec.Medication)
		}
		prev = rec
	}
}

func TestForecastCategoryRollup(t *testing.T) {
	resolver := NewReferenceResolver([]domain.MedicationInfo{
		{Medication: "DayQuil Severe", Category: "cold_flu", CaseSize: 12},
	}, nil)
	f := NewForecaster(config.ForecastingConfig{HorizonDays: 30, ConfidenceLevel: 0.95, SpikeThreshold: 1.5}, resolver)

	profiles := profilingResult(day(100),
		profileWithPrediction("P1", "DayQuil Severe", 24, day(100)),
		profileWithPrediction("P2", "Tamiflu 75mg", 30, day(100)),
	)
	signals := &domain.ExternalSignals{
		Epidemic: &domain.EpidemicActivity{Level: 8, Trend: domain.TrendRapidIncrease},
		Weather:  &domain.WeatherSnapshot{MeanTempF: 28, ColdSnap: true, HumidityPct: 85},
		Quality:  domain.SignalComplete,
	}

	result, err := f.Forecast(profiles, signals, day(100))
	require.NoError(t, err)

	coldFlu := result.CategorySummary("cold_flu")
	require.NotNil(t, coldFlu)
	assert.True(t, coldFlu.FluImpact)
	assert.True(t, coldFlu.WeatherImpact)
	assert.Equal(t, 1, coldFlu.MedicationCount)
	// Epidemic-derived 1.776 vs weather 1.55: the stronger applies
	assert.InDelta(t, 24*1.776, coldFlu.TotalPredictedDemand, 0.001)

	antiviral := result.CategorySummary("antiviral")
	require.NotNil(t, antiviral)
	assert.True(t, antiviral.FluImpact)
	assert.False(t, antiviral.WeatherImpact)
	assert.InDelta(t, 30*2.22, antiviral.TotalPredictedDemand, 0.001)
}

func TestForecastNilProfiles(t *testing.T) {
	f := newTestForecaster()

	_, err := f.Forecast(nil, nil, day(0))
	assert.ErrorIs(t, err, domain.ErrNoProfiles)
}
