package signals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// Month-keyed epidemic levels for a Mediterranean flu season: peak in
// January, quiet May through August.
var seasonalFluLevels = [13]int{0, 8, 7, 5, 3, 1, 1, 1, 1, 2, 3, 5, 7}

// weatherNormal is a monthly climate normal (Fahrenheit mean, relative
// humidity percent).
type weatherNormal struct {
	meanF    float64
	humidity float64
}

var seasonalWeather = [13]weatherNormal{
	{}, // months are 1-indexed
	{35, 70}, {38, 65}, {48, 60}, {58, 55}, {68, 50}, {78, 55},
	{85, 60}, {83, 65}, {75, 55}, {62, 50}, {48, 60}, {38, 70},
}

const (
	eventFluSeason     = "Flu Season Peak Period"
	eventTouristSeason = "Tourist Season"

	holidayLookaheadDays = 14
)

// SeasonalProvider simulates the signal bundle from seasonal patterns.
// Every field is a pure function of the date, so repeated runs for the
// same analysis date agree.
type SeasonalProvider struct {
	region            string
	simulateShortages bool
}

// NewSeasonalProvider creates a provider for the configured region.
func NewSeasonalProvider(cfg config.SignalsConfig) *SeasonalProvider {
	region := cfg.Region
	if region == "" {
		region = "greece"
	}
	return &SeasonalProvider{
		region:            region,
		simulateShortages: cfg.SimulateShortages,
	}
}

// Collect builds the bundle for one date. The simulation has no failing
// sections, so the bundle always grades complete.
func (p *SeasonalProvider) Collect(_ context.Context, asOf time.Time) (*domain.ExternalSignals, error) {
	month := asOf.Month()

	epidemic := &domain.EpidemicActivity{
		Level:  seasonalFluLevels[month],
		Trend:  seasonalTrend(month),
		Region: p.region,
		AsOf:   asOf,
	}

	normal := seasonalWeather[month]
	weather := &domain.WeatherSnapshot{
		MeanTempF:   normal.meanF,
		MinTempF:    normal.meanF - 8,
		HumidityPct: normal.humidity,
		// Monthly normals never move fast enough to register a snap;
		// cold snaps arrive only through materialized bundles
		ColdSnap: false,
		AsOf:     asOf,
	}

	bundle := &domain.ExternalSignals{
		Epidemic:    epidemic,
		Weather:     weather,
		Events:      p.upcomingEvents(asOf),
		Quality:     qualityFor(0),
		CollectedAt: asOf,
		Notes:       []string{fmt.Sprintf("seasonal simulation for %s", p.region)},
	}
	if p.simulateShortages {
		bundle.Disruptions = simulatedDisruptions(asOf)
	}
	return bundle, nil
}

// seasonalTrend derives the direction from where the curve goes next month.
func seasonalTrend(month time.Month) domain.EpidemicTrend {
	base := seasonalFluLevels[month]
	next := seasonalFluLevels[month%12+1]
	switch {
	case next > base+1:
		return domain.TrendRapidIncrease
	case next > base:
		return domain.TrendIncrease
	case next < base-1:
		return domain.TrendRapidDecrease
	case next < base:
		return domain.TrendDecrease
	default:
		return domain.TrendStable
	}
}

// upcomingEvents collects holidays in the lookahead window plus the
// seasonal period markers for the analysis date itself.
func (p *SeasonalProvider) upcomingEvents(asOf time.Time) []domain.CalendarEvent {
	var events []domain.CalendarEvent

	for offset := 0; offset <= holidayLookaheadDays; offset++ {
		day := asOf.AddDate(0, 0, offset)
		for _, h := range holidaysOn(day) {
			// Major holidays pull refills forward; minor ones just thin
			// pharmacy traffic
			impact := domain.ImpactDecrease
			var categories []string
			if h.major {
				impact = domain.ImpactEarlyRefills
				categories = []string{"all"}
			}
			events = append(events, domain.CalendarEvent{
				Name:       h.name,
				Date:       day,
				Impact:     impact,
				Categories: categories,
			})
		}
	}

	month := asOf.Month()
	if month == time.November || month == time.December || month == time.January || month == time.February {
		events = append(events, domain.CalendarEvent{
			Name:       eventFluSeason,
			Date:       asOf,
			Impact:     domain.ImpactIncrease,
			Categories: []string{"antiviral", "cold_flu"},
		})
	}

	if p.isGreece() && month >= time.June && month <= time.August {
		events = append(events, domain.CalendarEvent{
			Name:       eventTouristSeason,
			Date:       asOf,
			Impact:     domain.ImpactIncrease,
			Categories: []string{"gastrointestinal", "suncare", "first_aid"},
		})
	}

	return events
}

func (p *SeasonalProvider) isGreece() bool {
	r := strings.ToLower(p.region)
	return r == "greece" || r == "gr"
}

// simulatedDisruptions returns a fixed shortage register snapshot anchored
// to the collection date.
func simulatedDisruptions(asOf time.Time) []domain.SupplyDisruption {
	amoxicillinUntil := asOf.AddDate(0, 0, 45)
	salbutamolUntil := asOf.AddDate(0, 0, 30)
	return []domain.SupplyDisruption{
		{Medication: "Amoxicillin 500mg", Severity: "high", ExpectedUntil: &amoxicillinUntil},
		{Medication: "Salbutamol Inhaler", Severity: "moderate", ExpectedUntil: &salbutamolUntil},
	}
}
