package forecasting

import (
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// categoryAll in a calendar event applies the boost to every category.
const categoryAll = "all"

// Multipliers holds the per-category demand multipliers derived from one
// signal bundle. Categories without an entry stay at baseline 1.0.
type Multipliers struct {
	byCategory map[string]float64
	allBoost   float64
}

// For returns the multiplier for a category, including any all-category
// event boost.
func (m Multipliers) For(category string) float64 {
	mult, ok := m.byCategory[category]
	if !ok {
		mult = 1.0
	}
	return mult * m.allBoost
}

// Max returns the largest multiplier in effect across all categories.
func (m Multipliers) Max() float64 {
	highest := 1.0
	for _, mult := range m.byCategory {
		highest = max(highest, mult)
	}
	return highest * m.allBoost
}

// deriveMultipliers turns an external signal bundle into category
// multipliers. A nil bundle leaves every category at baseline.
func deriveMultipliers(signals *domain.ExternalSignals) Multipliers {
	m := Multipliers{byCategory: make(map[string]float64), allBoost: 1.0}
	if signals == nil {
		return m
	}

	// 1. Epidemic activity drives antivirals, attenuated for cold/flu OTC
	if signals.Epidemic != nil {
		flu := signals.Epidemic.DemandMultiplier()
		m.byCategory["antiviral"] = flu
		m.byCategory["cold_flu"] = flu * 0.8
	}

	// 2. Weather contributes an independent cold/flu multiplier; the
	// stronger of the two wins
	if signals.Weather != nil {
		weather := signals.Weather.ColdFluMultiplier()
		if current, ok := m.byCategory["cold_flu"]; !ok || weather > current {
			m.byCategory["cold_flu"] = weather
		}
	}

	// 3. Early-refill events boost their categories
	for _, event := range signals.Events {
		if event.Impact != domain.ImpactEarlyRefills {
			continue
		}
		for _, category := range event.Categories {
			if category == categoryAll {
				m.allBoost *= 1.2
				continue
			}
			current, ok := m.byCategory[category]
			if !ok {
				current = 1.0
			}
			m.byCategory[category] = current * 1.2
		}
	}

	return m
}
