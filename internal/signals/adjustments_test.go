package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

func adjustmentFor(adjustments []domain.DemandAdjustment, category string) *domain.DemandAdjustment {
	for i := range adjustments {
		if adjustments[i].Category == category {
			return &adjustments[i]
		}
	}
	return nil
}

func TestDemandAdjustmentsNilBundle(t *testing.T) {
	assert.Nil(t, DemandAdjustments(nil))
}

func TestDemandAdjustmentsFluSeason(t *testing.T) {
	signals := &domain.ExternalSignals{
		Epidemic: &domain.EpidemicActivity{Level: 8, Trend: domain.TrendRapidIncrease},
		Weather:  &domain.WeatherSnapshot{MeanTempF: 35, HumidityPct: 70},
		Quality:  domain.SignalComplete,
	}

	adjustments := DemandAdjustments(signals)
	require.Len(t, adjustments, 2)

	antiviral := adjustmentFor(adjustments, "antiviral")
	require.NotNil(t, antiviral)
	assert.InDelta(t, 2.22, antiviral.Multiplier, 0.001)
	assert.InDelta(t, 0.85, antiviral.Confidence, 0.001)
	assert.Contains(t, antiviral.Reason, "level 8/10")

	// Weather 1.15 stacked with the level-8 flu boost 1.24
	coldFlu := adjustmentFor(adjustments, "cold_flu")
	require.NotNil(t, coldFlu)
	assert.InDelta(t, 1.43, coldFlu.Multiplier, 0.001)
	assert.InDelta(t, 0.75, coldFlu.Confidence, 0.001)
	assert.Contains(t, coldFlu.Reason, "cold weather")
	assert.Contains(t, coldFlu.Reason, "elevated flu activity")
}

func TestDemandAdjustmentsQuietSummer(t *testing.T) {
	signals := &domain.ExternalSignals{
		Epidemic: &domain.EpidemicActivity{Level: 1, Trend: domain.TrendStable},
		Weather:  &domain.WeatherSnapshot{MeanTempF: 85, HumidityPct: 60},
		Quality:  domain.SignalComplete,
	}

	adjustments := DemandAdjustments(signals)
	require.Len(t, adjustments, 1)

	// Baseline flu activity is still reported; cold/flu stays silent
	assert.Equal(t, "antiviral", adjustments[0].Category)
	assert.InDelta(t, 1.0, adjustments[0].Multiplier, 0.001)
	assert.Nil(t, adjustmentFor(adjustments, "cold_flu"))
}

func TestDemandAdjustmentsColdSnap(t *testing.T) {
	signals := &domain.ExternalSignals{
		Weather: &domain.WeatherSnapshot{MeanTempF: 28, ColdSnap: true, HumidityPct: 50},
		Quality: domain.SignalComplete,
	}

	adjustments := DemandAdjustments(signals)
	coldFlu := adjustmentFor(adjustments, "cold_flu")
	require.NotNil(t, coldFlu)

	// Weather multiplier 1.50 with the extra snap factor 1.1
	assert.InDelta(t, 1.65, coldFlu.Multiplier, 0.001)
	assert.Contains(t, coldFlu.Reason, "sudden temperature drop")
}

func TestDemandAdjustmentsHolidayAndTouristEvents(t *testing.T) {
	signals := &domain.ExternalSignals{
		Events: []domain.CalendarEvent{
			{Name: "Christmas Day", Date: time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), Impact: domain.ImpactEarlyRefills, Categories: []string{"all"}},
			{Name: eventTouristSeason, Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Impact: domain.ImpactIncrease, Categories: []string{"gastrointestinal"}},
		},
		Quality: domain.SignalComplete,
	}

	adjustments := DemandAdjustments(signals)
	require.Len(t, adjustments, 2)

	chronic := adjustmentFor(adjustments, "chronic")
	require.NotNil(t, chronic)
	assert.InDelta(t, 1.15, chronic.Multiplier, 0.001)
	assert.Contains(t, chronic.Reason, "Christmas Day")

	gastro := adjustmentFor(adjustments, "gastrointestinal")
	require.NotNil(t, gastro)
	assert.InDelta(t, 1.25, gastro.Multiplier, 0.001)
}

func TestDemandAdjustmentsSortedByCategory(t *testing.T) {
	signals := &domain.ExternalSignals{
		Epidemic: &domain.EpidemicActivity{Level: 8, Trend: domain.TrendStable},
		Weather:  &domain.WeatherSnapshot{MeanTempF: 28, HumidityPct: 85},
		Events: []domain.CalendarEvent{
			{Name: "Easter Sunday", Impact: domain.ImpactEarlyRefills, Categories: []string{"all"}},
			{Name: eventTouristSeason, Impact: domain.ImpactIncrease},
		},
		Quality: domain.SignalComplete,
	}

	adjustments := DemandAdjustments(signals)
	require.Len(t, adjustments, 4)

	categories := make([]string, len(adjustments))
	for i, a := range adjustments {
		categories[i] = a.Category
	}
	assert.Equal(t, []string{"antiviral", "chronic", "cold_flu", "gastrointestinal"}, categories)
}
