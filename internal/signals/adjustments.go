package signals

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// DemandAdjustments derives per-category demand guidance from a signal
// bundle, for API consumers that want the "why" behind a forecast. The
// result is sorted by category.
func DemandAdjustments(signals *domain.ExternalSignals) []domain.DemandAdjustment {
	if signals == nil {
		return nil
	}
	var out []domain.DemandAdjustment

	// 1. Antivirals track epidemic activity directly
	if signals.Epidemic != nil {
		out = append(out, domain.DemandAdjustment{
			Category:   "antiviral",
			Multiplier: signals.Epidemic.DemandMultiplier(),
			Confidence: 0.85,
			Reason: fmt.Sprintf("epidemic activity at level %d/10 (%s)",
				signals.Epidemic.Level, signals.Epidemic.Trend),
		})
	}

	// 2. Cold/flu OTC combines weather severity with elevated epidemic
	// activity; only reported when the combined lift clears 5%
	coldMult := 1.0
	var coldReasons []string
	if signals.Weather != nil {
		if wm := signals.Weather.ColdFluMultiplier(); wm > 1.0 {
			coldMult *= wm
			coldReasons = append(coldReasons,
				fmt.Sprintf("cold weather (%.0fF mean)", signals.Weather.MeanTempF))
		}
		if signals.Weather.ColdSnap {
			coldMult *= 1.1
			coldReasons = append(coldReasons, "sudden temperature drop")
		}
	}
	if signals.Epidemic != nil && signals.Epidemic.Level > 5 {
		coldMult *= 1 + float64(signals.Epidemic.Level-5)*0.08
		coldReasons = append(coldReasons, "elevated flu activity")
	}
	if coldMult > 1.05 {
		out = append(out, domain.DemandAdjustment{
			Category:   "cold_flu",
			Multiplier: math.Round(coldMult*100) / 100,
			Confidence: 0.75,
			Reason:     strings.Join(coldReasons, "; "),
		})
	}

	// 3. Chronic maintenance refills pull forward ahead of the first
	// major holiday in the window
	for _, event := range signals.Events {
		if event.Impact == domain.ImpactEarlyRefills {
			out = append(out, domain.DemandAdjustment{
				Category:   "chronic",
				Multiplier: 1.15,
				Confidence: 0.70,
				Reason:     "early refills expected before " + event.Name,
			})
			break
		}
	}

	// 4. Tourist season raises demand for stomach remedies
	for _, event := range signals.Events {
		if event.Name == eventTouristSeason {
			out = append(out, domain.DemandAdjustment{
				Category:   "gastrointestinal",
				Multiplier: 1.25,
				Confidence: 0.65,
				Reason:     "tourist season raises demand for GI medication",
			})
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
