package profiling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

var testBase = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return testBase.AddDate(0, 0, n)
}

func fills(patient, medication string, qty int, days ...int) []domain.RefillEvent {
	events := make([]domain.RefillEvent, 0, len(days))
	for _, d := range days {
		events = append(events, domain.RefillEvent{
			PatientID:  patient,
			Medication: medication,
			FillDate:   day(d),
			Quantity:   qty,
		})
	}
	return events
}

func newTestProfiler() *Profiler {
	return NewProfiler(config.ProfilingConfig{
		HighlyRegularStdDays: 3.0,
		RegularStdDays:       7.0,
		MinFillsForPredict:   3,
		DueSoonDays:          7,
	})
}

func TestProfilePairHighlyRegular(t *testing.T) {
	p := newTestProfiler()
	events := fills("P001", "Lisinopril 10mg", 30, 0, 30, 61, 89)
	analysisDate := day(90)

	result, err := p.Analyze(events, analysisDate)
	require.NoError(t, err)
	require.Len(t, result.Profiles, 1)

	profile := result.Profiles[0]
	assert.Equal(t, domain.BehaviorHighlyRegular, profile.Behavior)
	assert.Equal(t, 4, profile.Pattern.TotalRefills)
	assert.InDelta(t, 29.7, profile.Pattern.AverageIntervalDays, 0.01)
	assert.InDelta(t, 1.5, profile.Pattern.StdDeviationDays, 0.01)
	assert.InDelta(t, 0.95, profile.Pattern.Consistency, 0.001)

	require.NotNil(t, profile.Prediction)
	assert.Equal(t, day(118), profile.Prediction.ExpectedDate)
	assert.GreaterOrEqual(t, profile.Prediction.Confidence, 0.85)
	assert.Equal(t, 28, profile.Prediction.DaysUntilExpected)
	assert.False(t, profile.IsDueSoon)
}

func TestProfilePairClassification(t *testing.T) {
	tests := []struct {
		name     string
		fillDays []int
		want     domain.BehaviorClass
	}{
		{"single fill", []int{0}, domain.BehaviorNewPatient},
		{"two fills", []int{0, 30}, domain.BehaviorInsufficientData},
		{"tight intervals", []int{0, 30, 60, 90}, domain.BehaviorHighlyRegular},
		{"loose intervals", []int{0, 25, 60, 85}, domain.BehaviorRegular},
		{"erratic intervals", []int{0, 10, 55, 70}, domain.BehaviorIrregular},
	}

	p := newTestProfiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Analyze(fills("P1", "TestMed", 30, tt.fillDays...), day(100))
			require.NoError(t, err)
			require.Len(t, result.Profiles, 1)
			assert.Equal(t, tt.want, result.Profiles[0].Behavior)
		})
	}
}

func TestNoPredictionBelowMinimumFills(t *testing.T) {
	p := newTestProfiler()

	result, err := p.Analyze(fills("P1", "Metformin 500mg", 60, 0, 30), day(40))
	require.NoError(t, err)
	require.Len(t, result.Profiles, 1)

	profile := result.Profiles[0]
	assert.Nil(t, profile.Prediction)
	assert.False(t, profile.IsDueSoon)
	// One interval only: std falls back to the high-uncertainty default
	assert.InDelta(t, 15.0, profile.Pattern.StdDeviationDays, 0.01)
}

func TestSingleFillUsesDefaultPattern(t *testing.T) {
	p := newTestProfiler()

	result, err := p.Analyze(fills("P1", "Atorvastatin 20mg", 30, 5), day(10))
	require.NoError(t, err)

	pattern := result.Profiles[0].Pattern
	assert.InDelta(t, 30.0, pattern.AverageIntervalDays, 0.01)
	assert.InDelta(t, 15.0, pattern.StdDeviationDays, 0.01)
	assert.Zero(t, pattern.Consistency)
}

func TestEarliestDateClampedToAnalysisDate(t *testing.T) {
	p := newTestProfiler()
	// Last fill long past: the whole prediction window is overdue
	events := fills("P1", "Levothyroxine 50mcg", 30, 0, 30, 60)
	analysisDate := day(120)

	result, err := p.Analyze(events, analysisDate)
	require.NoError(t, err)

	pred := result.Profiles[0].Prediction
	require.NotNil(t, pred)
	assert.False(t, pred.EarliestDate.Before(analysisDate))
	assert.Negative(t, pred.DaysUntilExpected)
	// Overdue still counts as due soon
	assert.True(t, result.Profiles[0].IsDueSoon)
}

func TestConfidenceBoostWithLongHistory(t *testing.T) {
	p := newTestProfiler()
	// Ten perfectly spaced fills: std floors at 1.0, consistency ~0.97
	days := make([]int, 10)
	for i := range days {
		days[i] = i * 30
	}

	result, err := p.Analyze(fills("P1", "Insulin Glargine", 10, days...), day(275))
	require.NoError(t, err)

	profile := result.Profiles[0]
	require.NotNil(t, profile.Prediction)
	assert.InDelta(t, 0.95, profile.Prediction.Confidence, 0.001)
	assert.Equal(t, domain.BehaviorHighlyRegular, profile.Behavior)
}

func TestLapseRiskOrdering(t *testing.T) {
	p := newTestProfiler()

	regular, err := p.Analyze(fills("P1", "Med", 30, 0, 30, 60, 90), day(100))
	require.NoError(t, err)
	erratic, err := p.Analyze(fills("P2", "Med", 30, 0, 10, 55, 70), day(100))
	require.NoError(t, err)
	fresh, err := p.Analyze(fills("P3", "Med", 30, 0), day(100))
	require.NoError(t, err)

	regRisk := regular.Profiles[0].RiskOfLapse
	errRisk := erratic.Profiles[0].RiskOfLapse
	newRisk := fresh.Profiles[0].RiskOfLapse

	assert.Less(t, regRisk, errRisk)
	assert.Less(t, errRisk, newRisk)
	for _, risk := range []float64{regRisk, errRisk, newRisk} {
		assert.GreaterOrEqual(t, risk, 0.0)
		assert.LessOrEqual(t, risk, 1.0)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	p := newTestProfiler()

	_, err := p.Analyze(nil, day(0))
	assert.ErrorIs(t, err, domain.ErrNoPrescriptions)

	missing := fills("P1", "Med", 30, 0)
	missing[0].PatientID = ""
	_, err = p.Analyze(missing, day(0))
	assert.ErrorIs(t, err, domain.ErrMissingField)

	negative := fills("P1", "Med", 30, 0)
	negative[0].Quantity = -5
	_, err = p.Analyze(negative, day(0))
	assert.ErrorIs(t, err, domain.ErrNegativeQuantity)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	p := newTestProfiler()
	events := append(fills("P2", "MedB", 20, 0, 28, 59), fills("P1", "MedA", 30, 0, 30, 61, 89)...)

	first, err := p.Analyze(events, day(95))
	require.NoError(t, err)
	second, err := p.Analyze(events, day(95))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Sorted by patient then medication
	assert.Equal(t, "P1", first.Profiles[0].PatientID)
	assert.Equal(t, "P2", first.Profiles[1].PatientID)
}

func TestAnalyzeCounters(t *testing.T) {
	p := newTestProfiler()
	events := append(fills("P1", "MedA", 30, 0, 30, 60), fills("P1", "MedB", 20, 0, 28, 56)...)
	events = append(events, fills("P2", "MedA", 30, 0, 31, 62)...)

	result, err := p.Analyze(events, day(85))
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalPatients)
	assert.Equal(t, 3, result.TotalPatientMedications)
}

func TestDueWithinWindow(t *testing.T) {
	p := newTestProfiler()
	// P1 expected around day 90, P2 around day 93
	events := append(fills("P1", "MedA", 30, 0, 30, 60), fills("P2", "MedB", 20, 3, 33, 63)...)

	result, err := p.Analyze(events, day(88))
	require.NoError(t, err)

	due := p.DueWithin(result, 7)
	require.Len(t, due, 2)
	assert.Equal(t, "P1", due[0].PatientID)
	assert.Equal(t, "P2", due[1].PatientID)

	// Narrow window drops the later patient
	due = p.DueWithin(result, 2)
	require.Len(t, due, 1)
	assert.Equal(t, "P1", due[0].PatientID)
}

func TestSummarizeByMedication(t *testing.T) {
	p := newTestProfiler()
	events := append(fills("P1", "MedA", 30, 0, 30, 60), fills("P2", "MedA", 50, 0, 29, 58)...)
	events = append(events, fills("P3", "MedB", 10, 0)...)

	result, err := p.Analyze(events, day(86))
	require.NoError(t, err)

	summaries := p.SummarizeByMedication(result)
	require.Len(t, summaries, 2)

	medA := summaries[0]
	assert.Equal(t, "MedA", medA.Medication)
	assert.Equal(t, 2, medA.TotalPatients)
	assert.Equal(t, 2, medA.PatientsDue7d)
	assert.Equal(t, 80, medA.ExpectedQuantity7d)

	medB := summaries[1]
	assert.Equal(t, "MedB", medB.Medication)
	assert.Equal(t, 1, medB.TotalPatients)
	assert.Equal(t, 1, medB.HighRiskPatients)
}
