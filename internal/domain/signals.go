// backend-go/internal/domain/signals.go
package domain

import (
	"math"
	"time"
)

// SignalQuality tags how complete an external signal bundle is.
type SignalQuality string

const (
	SignalComplete SignalQuality = "complete"
	SignalPartial  SignalQuality = "partial"
	SignalDegraded SignalQuality = "degraded"
)

// EpidemicTrend is the direction of epidemic activity.
type EpidemicTrend string

const (
	TrendRapidIncrease EpidemicTrend = "rapid_increase"
	TrendIncrease      EpidemicTrend = "increase"
	TrendStable        EpidemicTrend = "stable"
	TrendDecrease      EpidemicTrend = "decrease"
	TrendRapidDecrease EpidemicTrend = "rapid_decrease"
)

// EpidemicActivity is the reported epidemic level for a region.
// Level is a 1-10 ILI-style activity scale.
type EpidemicActivity struct {
	Level  int           `json:"level"`
	Trend  EpidemicTrend `json:"trend"`
	Region string        `json:"region"`
	AsOf   time.Time     `json:"as_of"`
}

var epidemicTrendFactors = map[EpidemicTrend]float64{
	TrendRapidIncrease: 1.20,
	TrendIncrease:      1.10,
	TrendStable:        1.00,
	TrendDecrease:      0.95,
	TrendRapidDecrease: 0.90,
}

// DemandMultiplier maps the activity level and trend to a demand multiplier
// for epidemic-sensitive medication. Levels 1-3 are baseline, 4-6 ramp to
// 1.45, 7-10 ramp to 2.25, then the trend scales the result.
func (e EpidemicActivity) DemandMultiplier() float64 {
	var base float64
	switch {
	case e.Level <= 3:
		base = 1.0
	case e.Level <= 6:
		base = 1.0 + float64(e.Level-3)*0.15
	default:
		base = 1.45 + float64(e.Level-6)*0.20
	}

	factor, ok := epidemicTrendFactors[e.Trend]
	if !ok {
		factor = 1.0
	}
	return math.Round(base*factor*100) / 100
}

// WeatherSnapshot is the weather severity input for a forecast date.
// Temperatures are Fahrenheit.
type WeatherSnapshot struct {
	MeanTempF   float64   `json:"mean_temp_f"`
	MinTempF    float64   `json:"min_temp_f"`
	HumidityPct float64   `json:"humidity_pct"`
	ColdSnap    bool      `json:"cold_snap"`
	AsOf        time.Time `json:"as_of"`
}

// ColdFluMultiplier maps weather severity to a cold/flu demand multiplier.
// Bonuses are additive on a 1.0 baseline.
func (w WeatherSnapshot) ColdFluMultiplier() float64 {
	mult := 1.0

	if w.MeanTempF < 32 {
		mult += 0.30
	} else if w.MeanTempF < 45 {
		mult += 0.15
	}
	if w.ColdSnap {
		mult += 0.20
	}
	if w.HumidityPct > 80 {
		mult += 0.05
	}

	return math.Round(mult*100) / 100
}

// EventImpact is the expected demand effect of a calendar event.
type EventImpact string

const (
	ImpactIncrease     EventImpact = "increase"
	ImpactDecrease     EventImpact = "decrease"
	ImpactEarlyRefills EventImpact = "early_refills"
)

// CalendarEvent is a holiday or local event that shifts refill behavior.
// Categories lists the affected medication categories; "all" matches every
// category.
type CalendarEvent struct {
	Name       string      `json:"name"`
	Date       time.Time   `json:"date"`
	Impact     EventImpact `json:"impact"`
	Categories []string    `json:"categories"`
}

// SupplyDisruption is a known shortage affecting a medication.
type SupplyDisruption struct {
	Medication    string     `json:"medication"`
	Severity      string     `json:"severity"` // low, moderate, high
	ExpectedUntil *time.Time `json:"expected_until,omitempty"`
}

// ExternalSignals is the normalized, possibly partial signal bundle handed
// to the forecaster. A nil bundle is a valid state meaning no signals were
// collected.
type ExternalSignals struct {
	Epidemic    *EpidemicActivity  `json:"epidemic,omitempty"`
	Weather     *WeatherSnapshot   `json:"weather,omitempty"`
	Disruptions []SupplyDisruption `json:"disruptions,omitempty"`
	Events      []CalendarEvent    `json:"events,omitempty"`
	Quality     SignalQuality      `json:"quality"`
	CollectedAt time.Time          `json:"collected_at"`
	Notes       []string           `json:"notes,omitempty"`
}

// DisruptedMedications returns the set of medications with known shortages.
func (s *ExternalSignals) DisruptedMedications() map[string]bool {
	if s == nil || len(s.Disruptions) == 0 {
		return nil
	}
	out := make(map[string]bool, len(s.Disruptions))
	for _, d := range s.Disruptions {
		out[d.Medication] = true
	}
	return out
}

// DemandAdjustment is a per-category multiplier derived from the bundle,
// exposed to API consumers alongside the forecast.
type DemandAdjustment struct {
	Category   string  `json:"category"`
	Multiplier float64 `json:"multiplier"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}
