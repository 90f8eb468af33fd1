package profiling

import (
	"fmt"
	"sort"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

const (
	// Fallback pattern for pairs with fewer than two fills.
	defaultAvgIntervalDays = 30.0
	defaultStdDays         = 15.0

	// Lapse risk at or above this marks a patient high-risk in summaries.
	highLapseRisk = 0.2
)

// Profiler turns raw refill history into behavioral profiles with
// next-refill predictions and lapse risk scores.
type Profiler struct {
	cfg config.ProfilingConfig
}

// NewProfiler creates a profiler. Zero config fields fall back to the
// standard thresholds.
func NewProfiler(cfg config.ProfilingConfig) *Profiler {
	if cfg.HighlyRegularStdDays <= 0 {
		cfg.HighlyRegularStdDays = 3.0
	}
	if cfg.RegularStdDays <= 0 {
		cfg.RegularStdDays = 7.0
	}
	if cfg.MinFillsForPredict <= 0 {
		cfg.MinFillsForPredict = 3
	}
	if cfg.DueSoonDays <= 0 {
		cfg.DueSoonDays = 7
	}

	return &Profiler{cfg: cfg}
}

// PairHistory is the ordered fill history for one patient/medication pair.
type PairHistory struct {
	PatientID  string
	Medication string
	Events     []domain.RefillEvent
}

// ValidateEvents checks structural preconditions on raw refill records.
// The first offending record aborts with an error naming it.
func ValidateEvents(events []domain.RefillEvent) error {
	if len(events) == 0 {
		return domain.ErrNoPrescriptions
	}

	for i, e := range events {
		if e.PatientID == "" {
			return fmt.Errorf("prescription record %d: %w: patient_id", i, domain.ErrMissingField)
		}
		if e.Medication == "" {
			return fmt.Errorf("prescription record %d: %w: medication", i, domain.ErrMissingField)
		}
		if e.FillDate.IsZero() {
			return fmt.Errorf("prescription record %d: %w: fill_date", i, domain.ErrMissingField)
		}
		if e.Quantity < 0 {
			return fmt.Errorf("prescription record %d (%s/%s): %w",
				i, e.PatientID, e.Medication, domain.ErrNegativeQuantity)
		}
	}

	return nil
}

// GroupPairs buckets events into per-pair histories, each sorted by fill
// date, with pairs ordered by (patient, medication) for deterministic
// processing.
func GroupPairs(events []domain.RefillEvent) []PairHistory {
	type key struct{ patient, medication string }

	buckets := make(map[key][]domain.RefillEvent)
	for _, e := range events {
		k := key{e.PatientID, e.Medication}
		buckets[k] = append(buckets[k], e)
	}

	pairs := make([]PairHistory, 0, len(buckets))
	for k, history := range buckets {
		sort.Slice(history, func(i, j int) bool {
			return history[i].FillDate.Before(history[j].FillDate)
		})
		pairs = append(pairs, PairHistory{
			PatientID:  k.patient,
			Medication: k.medication,
			Events:     history,
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].PatientID != pairs[j].PatientID {
			return pairs[i].PatientID < pairs[j].PatientID
		}
		return pairs[i].Medication < pairs[j].Medication
	})

	return pairs
}

// Analyze validates events, profiles every patient/medication pair and
// returns the aggregated result. Output ordering is deterministic.
func (p *Profiler) Analyze(events []domain.RefillEvent, analysisDate time.Time) (*domain.ProfilingResult, error) {
	if err := ValidateEvents(events); err != nil {
		return nil, err
	}

	pairs := GroupPairs(events)
	profiles := make([]domain.PatientMedicationProfile, 0, len(pairs))
	for _, pair := range pairs {
		profiles = append(profiles, p.ProfilePair(pair, analysisDate))
	}

	return p.BuildResult(profiles, analysisDate), nil
}

// BuildResult sorts profiles by (patient, medication) and computes the
// run-level counters.
func (p *Profiler) BuildResult(profiles []domain.PatientMedicationProfile, analysisDate time.Time) *domain.ProfilingResult {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].PatientID != profiles[j].PatientID {
			return profiles[i].PatientID < profiles[j].PatientID
		}
		return profiles[i].Medication < profiles[j].Medication
	})

	patients := make(map[string]struct{}, len(profiles))
	dueSoon := 0
	for _, profile := range profiles {
		patients[profile.PatientID] = struct{}{}
		if profile.IsDueSoon {
			dueSoon++
		}
	}

	return &domain.ProfilingResult{
		Profiles:                profiles,
		TotalPatients:           len(patients),
		TotalPatientMedications: len(profiles),
		PatientsDueSoon:         dueSoon,
		AnalysisDate:            analysisDate,
	}
}

// ProfilePair produces the profile for a single pair. The pair's events
// must be sorted by fill date (GroupPairs guarantees this).
func (p *Profiler) ProfilePair(pair PairHistory, analysisDate time.Time) domain.PatientMedicationProfile {
	history := pair.Events
	last := history[len(history)-1]

	// 1. Interval statistics
	pattern := calculatePattern(history)

	// 2. Behavior classification
	behavior := p.classifyBehavior(pattern)

	// 3. Next-refill prediction, only with enough history
	var prediction *domain.RefillPrediction
	if pattern.TotalRefills >= p.cfg.MinFillsForPredict {
		pred := predictNextRefill(last.FillDate, pattern, analysisDate)
		prediction = &pred
	}

	// 4. Due-soon flag (overdue counts as due)
	dueSoon := false
	if prediction != nil {
		dueSoon = prediction.DaysUntilExpected <= p.cfg.DueSoonDays
	}

	// 5. Lapse risk
	risk := lapseRisk(behavior, pattern)

	return domain.PatientMedicationProfile{
		PatientID:    pair.PatientID,
		Medication:   pair.Medication,
		Behavior:     behavior,
		Pattern:      pattern,
		Prediction:   prediction,
		LastFillDate: last.FillDate,
		LastQuantity: last.Quantity,
		IsDueSoon:    dueSoon,
		RiskOfLapse:  risk,
		AnalysisDate: analysisDate,
	}
}

// calculatePattern derives interval statistics from a sorted history.
func calculatePattern(history []domain.RefillEvent) domain.RefillPattern {
	total := len(history)

	if total < 2 {
		return domain.RefillPattern{
			AverageIntervalDays: defaultAvgIntervalDays,
			StdDeviationDays:    defaultStdDays,
			TotalRefills:        total,
			Consistency:         0.0,
		}
	}

	intervals := make([]float64, 0, total-1)
	for i := 1; i < total; i++ {
		days := history[i].FillDate.Sub(history[i-1].FillDate).Hours() / 24
		intervals = append(intervals, days)
	}

	avg := mean(intervals)
	std := defaultStdDays
	if len(intervals) > 1 {
		std = sampleStd(intervals, avg)
	}
	if std == 0 {
		std = 1.0
	}

	cv := 1.0
	if avg > 0 {
		cv = std / avg
	}
	consistency := clamp01(1.0 - cv)

	return domain.RefillPattern{
		AverageIntervalDays: round1(avg),
		StdDeviationDays:    round1(std),
		TotalRefills:        total,
		Consistency:         round2(consistency),
	}
}

func (p *Profiler) classifyBehavior(pattern domain.RefillPattern) domain.BehaviorClass {
	if pattern.TotalRefills < p.cfg.MinFillsForPredict {
		if pattern.TotalRefills <= 1 {
			return domain.BehaviorNewPatient
		}
		return domain.BehaviorInsufficientData
	}

	switch {
	case pattern.StdDeviationDays <= p.cfg.HighlyRegularStdDays:
		return domain.BehaviorHighlyRegular
	case pattern.StdDeviationDays <= p.cfg.RegularStdDays:
		return domain.BehaviorRegular
	default:
		return domain.BehaviorIrregular
	}
}

// predictNextRefill places the expected date one average interval after the
// last fill, with a ±2σ window whose earliest edge never precedes the
// analysis date.
func predictNextRefill(lastFill time.Time, pattern domain.RefillPattern, analysisDate time.Time) domain.RefillPrediction {
	avg := pattern.AverageIntervalDays
	margin := float64(int(2 * pattern.StdDeviationDays))

	expected := lastFill.AddDate(0, 0, int(avg))
	earliest := lastFill.AddDate(0, 0, int(avg-margin))
	latest := lastFill.AddDate(0, 0, int(avg+margin))

	if earliest.Before(analysisDate) {
		earliest = analysisDate
	}

	daysUntil := int(expected.Sub(analysisDate).Hours() / 24)

	confidence := pattern.Consistency
	if pattern.TotalRefills >= 10 {
		confidence = min(0.95, confidence+0.1)
	} else if pattern.TotalRefills >= 6 {
		confidence = min(0.90, confidence+0.05)
	}

	return domain.RefillPrediction{
		ExpectedDate:      expected,
		EarliestDate:      earliest,
		LatestDate:        latest,
		Confidence:        round2(confidence),
		DaysUntilExpected: daysUntil,
	}
}

// lapseRisk estimates the chance the patient misses the next refill.
func lapseRisk(behavior domain.BehaviorClass, pattern domain.RefillPattern) float64 {
	baseRisk := map[domain.BehaviorClass]float64{
		domain.BehaviorHighlyRegular:    0.02,
		domain.BehaviorRegular:          0.08,
		domain.BehaviorIrregular:        0.20,
		domain.BehaviorNewPatient:       0.35,
		domain.BehaviorInsufficientData: 0.25,
	}

	risk, ok := baseRisk[behavior]
	if !ok {
		risk = 0.15
	}

	// Low consistency pushes risk up
	risk += (1 - pattern.Consistency) * 0.1

	// Longer history is more reliable
	if pattern.TotalRefills >= 10 {
		risk *= 0.8
	} else if pattern.TotalRefills >= 6 {
		risk *= 0.9
	} else if pattern.TotalRefills <= 2 {
		risk *= 1.2
	}

	return round2(clamp01(risk))
}

// DueWithin returns profiles expected to refill within the next N days,
// sorted by expected date. Overdue profiles are excluded here; they are
// already past the window, not inside it.
func (p *Profiler) DueWithin(result *domain.ProfilingResult, days int) []domain.PatientMedicationProfile {
	var due []domain.PatientMedicationProfile
	for _, profile := range result.Profiles {
		if profile.Prediction == nil {
			continue
		}
		d := profile.Prediction.DaysUntilExpected
		if d >= 0 && d <= days {
			due = append(due, profile)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].Prediction.ExpectedDate.Before(due[j].Prediction.ExpectedDate)
	})

	return due
}

// SummarizeByMedication rolls profiles up per medication, sorted by name.
func (p *Profiler) SummarizeByMedication(result *domain.ProfilingResult) []domain.MedicationProfileSummary {
	byMed := make(map[string][]domain.PatientMedicationProfile)
	for _, profile := range result.Profiles {
		byMed[profile.Medication] = append(byMed[profile.Medication], profile)
	}

	summaries := make([]domain.MedicationProfileSummary, 0, len(byMed))
	for medication, profiles := range byMed {
		due := 0
		dueQty := 0
		highRisk := 0
		var intervalSum float64
		for _, profile := range profiles {
			if profile.IsDueSoon {
				due++
				dueQty += profile.LastQuantity
			}
			if profile.RiskOfLapse >= highLapseRisk {
				highRisk++
			}
			intervalSum += profile.Pattern.AverageIntervalDays
		}

		summaries = append(summaries, domain.MedicationProfileSummary{
			Medication:         medication,
			TotalPatients:      len(profiles),
			PatientsDue7d:      due,
			ExpectedQuantity7d: dueQty,
			HighRiskPatients:   highRisk,
			AvgRefillInterval:  round1(intervalSum / float64(len(profiles))),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Medication < summaries[j].Medication
	})

	return summaries
}
