package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpidemicDemandMultiplier(t *testing.T) {
	tests := []struct {
		name  string
		level int
		trend EpidemicTrend
		want  float64
	}{
		{"baseline low level", 2, TrendStable, 1.0},
		{"moderate ramp", 5, TrendStable, 1.30},
		{"high level rapid increase", 8, TrendRapidIncrease, 2.22},
		{"peak level", 10, TrendStable, 2.25},
		{"declining season", 7, TrendRapidDecrease, 1.49},
		{"low level still scaled by trend", 3, TrendIncrease, 1.10},
		{"unknown trend behaves as stable", 5, EpidemicTrend("sideways"), 1.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := EpidemicActivity{Level: tt.level, Trend: tt.trend}
			assert.InDelta(t, tt.want, e.DemandMultiplier(), 0.001)
		})
	}
}

func TestWeatherColdFluMultiplier(t *testing.T) {
	tests := []struct {
		name    string
		weather WeatherSnapshot
		want    float64
	}{
		{"mild", WeatherSnapshot{MeanTempF: 60, HumidityPct: 50}, 1.0},
		{"chilly", WeatherSnapshot{MeanTempF: 40, HumidityPct: 50}, 1.15},
		{"freezing", WeatherSnapshot{MeanTempF: 28, HumidityPct: 50}, 1.30},
		{"freezing cold snap", WeatherSnapshot{MeanTempF: 28, ColdSnap: true, HumidityPct: 50}, 1.50},
		{"everything at once", WeatherSnapshot{MeanTempF: 28, ColdSnap: true, HumidityPct: 85}, 1.55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.weather.ColdFluMultiplier(), 0.001)
		})
	}
}

func TestDisruptedMedications(t *testing.T) {
	var none *ExternalSignals
	assert.Nil(t, none.DisruptedMedications())
	assert.Nil(t, (&ExternalSignals{}).DisruptedMedications())

	s := &ExternalSignals{Disruptions: []SupplyDisruption{
		{Medication: "Amoxicillin 500mg", Severity: "high"},
		{Medication: "Salbutamol Inhaler", Severity: "moderate"},
	}}
	disrupted := s.DisruptedMedications()
	assert.True(t, disrupted["Amoxicillin 500mg"])
	assert.True(t, disrupted["Salbutamol Inhaler"])
	assert.Len(t, disrupted, 2)
}
