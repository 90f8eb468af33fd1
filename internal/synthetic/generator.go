// Package synthetic produces deterministic demo datasets: a medication
// reference table, per-patient refill histories with archetype-driven
// adherence jitter, and a lot-level stock position sized off recent
// dispensing volume.
package synthetic

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// Config controls dataset volume and reproducibility.
type Config struct {
	Patients int       // number of patients, default 200
	Months   int       // months of refill history, default 12
	Seed     int64     // 0 picks a time-based seed
	AsOf     time.Time // end of the history window, zero means today
}

// Dataset is one generated set of pharmacy inputs.
type Dataset struct {
	Prescriptions []domain.RefillEvent
	Lots          []domain.InventoryLot
	Medications   []domain.MedicationInfo
	Behaviors     map[string]string // patient id -> assigned archetype
}

// Generator produces deterministic synthetic pharmacy data.
type Generator struct {
	rng  *rand.Rand
	cfg  Config
	asOf time.Time
}

// NewGenerator returns a generator seeded for reproducibility. A zero
// seed picks a time-based one.
func NewGenerator(cfg Config) *Generator {
	if cfg.Patients <= 0 {
		cfg.Patients = 200
	}
	if cfg.Months <= 0 {
		cfg.Months = 12
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	asOf := cfg.AsOf
	if asOf.IsZero() {
		now := time.Now().UTC()
		asOf = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return &Generator{
		rng:  rand.New(rand.NewSource(seed)),
		cfg:  cfg,
		asOf: asOf,
	}
}

// Generate builds the full dataset: reference table, refill history and
// a stock position derived from the history's trailing demand.
func (g *Generator) Generate() *Dataset {
	ds := &Dataset{
		Medications: medicationReference(),
		Behaviors:   make(map[string]string),
	}

	start := g.asOf.AddDate(0, 0, -g.cfg.Months*30)
	for i := 0; i < g.cfg.Patients; i++ {
		patientID := fmt.Sprintf("P%04d", i+1)
		behavior := g.assignBehavior()
		ds.Behaviors[patientID] = behavior

		for _, med := range g.patientMedications() {
			ds.Prescriptions = append(ds.Prescriptions, g.refillHistory(patientID, med, behavior, start)...)
		}
		ds.Prescriptions = append(ds.Prescriptions, g.acuteCourses(patientID, start)...)
	}

	sort.SliceStable(ds.Prescriptions, func(a, b int) bool {
		pa, pb := ds.Prescriptions[a], ds.Prescriptions[b]
		if !pa.FillDate.Equal(pb.FillDate) {
			return pa.FillDate.Before(pb.FillDate)
		}
		return pa.PatientID < pb.PatientID
	})

	ds.Lots = g.inventoryFromDemand(ds.Prescriptions)
	return ds
}

func (g *Generator) assignBehavior() string {
	r := g.rng.Float64()
	cumulative := 0.0
	for _, b := range behaviorProfiles {
		cumulative += b.probability
		if r < cumulative {
			return b.name
		}
	}
	return "regular"
}

// patientMedications assigns the chronic regimen. Most patients take
// one or two medications.
func (g *Generator) patientMedications() []catalogEntry {
	var count int
	switch r := g.rng.Float64(); {
	case r < 0.40:
		count = 1
	case r < 0.75:
		count = 2
	case r < 0.95:
		count = 3
	default:
		count = 4
	}

	chronic := chronicCatalog()
	perm := g.rng.Perm(len(chronic))
	meds := make([]catalogEntry, 0, count)
	for _, idx := range perm[:min(count, len(chronic))] {
		meds = append(meds, chronic[idx])
	}
	return meds
}

// refillHistory walks refill cycles from a staggered start date to the
// as-of date, applying the archetype's skip, jitter and early-refill
// behavior to each cycle.
func (g *Generator) refillHistory(patientID string, med catalogEntry, behavior string, start time.Time) []domain.RefillEvent {
	params := behaviorByName(behavior)

	supplyDays := 30
	if g.rng.Float64() < 0.25 {
		supplyDays = 90 // some chronic patients get 90-day supplies
	}
	quantity := int(float64(supplyDays) * med.dailyDoses)
	if quantity < 1 {
		quantity = supplyDays
	}

	events := make([]domain.RefillEvent, 0)
	current := start.AddDate(0, 0, g.rng.Intn(31))
	for current.Before(g.asOf) {
		if g.rng.Float64() < params.skipProb {
			current = current.AddDate(0, 0, supplyDays)
			continue
		}

		variation := g.rng.NormFloat64() * params.intervalStd
		if g.rng.Float64() < params.earlyProb {
			variation -= float64(3 + g.rng.Intn(5)) // 3-7 days early
		}

		fillDate := current.AddDate(0, 0, int(variation))
		if fillDate.Before(start) {
			fillDate = start
		}
		if !fillDate.Before(g.asOf) {
			break
		}

		events = append(events, domain.RefillEvent{
			PatientID:  patientID,
			Medication: med.name,
			FillDate:   fillDate,
			Quantity:   quantity,
			DaysSupply: supplyDays,
		})

		current = current.AddDate(0, 0, supplyDays)
	}
	return events
}

// acuteCourses adds short non-chronic courses on top of the chronic
// regimen. Antiviral and cold_flu picks cluster in the winter months so
// seasonal demand shows up in the history.
func (g *Generator) acuteCourses(patientID string, start time.Time) []domain.RefillEvent {
	count := 0
	switch r := g.rng.Float64(); {
	case r < 0.50:
		return nil
	case r < 0.80:
		count = 1
	default:
		count = 2
	}

	acute := acuteCatalog()
	totalDays := int(g.asOf.Sub(start).Hours() / 24)
	events := make([]domain.RefillEvent, 0, count)
	for i := 0; i < count; i++ {
		med := acute[g.rng.Intn(len(acute))]

		fillDate := start.AddDate(0, 0, g.rng.Intn(totalDays))
		if med.category == "antiviral" || med.category == "cold_flu" {
			fillDate = g.winterDate(start, totalDays, fillDate)
		}

		const supplyDays = 10
		quantity := int(supplyDays * med.dailyDoses)
		if quantity < 1 {
			quantity = supplyDays
		}

		events = append(events, domain.RefillEvent{
			PatientID:  patientID,
			Medication: med.name,
			FillDate:   fillDate,
			Quantity:   quantity,
			DaysSupply: supplyDays,
		})
	}
	return events
}

// winterDate re-rolls a date until it lands in November through
// February, giving up after a dozen tries.
func (g *Generator) winterDate(start time.Time, totalDays int, picked time.Time) time.Time {
	if isWinter(picked.Month()) {
		return picked
	}
	for attempt := 0; attempt < 12; attempt++ {
		candidate := start.AddDate(0, 0, g.rng.Intn(totalDays))
		if isWinter(candidate.Month()) {
			return candidate
		}
	}
	return picked
}

func isWinter(m time.Month) bool {
	return m == time.November || m == time.December || m == time.January || m == time.February
}

// inventoryFromDemand sizes current stock off the trailing 90 days of
// dispensing: two to four weeks of cover split across one to three lots
// per medication, with expiry dates spread over the shelf life.
func (g *Generator) inventoryFromDemand(prescriptions []domain.RefillEvent) []domain.InventoryLot {
	cutoff := g.asOf.AddDate(0, 0, -90)
	monthly := make(map[string]float64)
	for _, e := range prescriptions {
		if e.FillDate.Before(cutoff) {
			continue
		}
		monthly[e.Medication] += float64(e.Quantity) / 3
	}

	lots := make([]domain.InventoryLot, 0, len(catalog)*2)
	for _, med := range catalog {
		demand, ok := monthly[med.name]
		if !ok {
			demand = 10 // default for medications with no recent history
		}

		target := int(demand * (0.5 + g.rng.Float64()*0.5))
		remaining := target
		numLots := 1 + g.rng.Intn(3)
		for lot := 0; lot < numLots && remaining > 0; lot++ {
			quantity := remaining
			if lot < numLots-1 {
				quantity = int(float64(remaining) * (0.3 + g.rng.Float64()*0.3))
			}
			remaining -= quantity
			if quantity <= 0 {
				continue
			}

			monthsOut := 2 + g.rng.Intn(max(med.shelfLifeMonths-1, 1))
			expiry := g.asOf.AddDate(0, 0, monthsOut*30)

			lots = append(lots, domain.InventoryLot{
				Medication:     med.name,
				LotNumber:      g.lotNumber(med.name),
				Quantity:       quantity,
				UnitCost:       med.unitCost,
				ExpirationDate: &expiry,
			})
		}
	}

	sort.SliceStable(lots, func(a, b int) bool {
		if lots[a].Medication != lots[b].Medication {
			return lots[a].Medication < lots[b].Medication
		}
		return lots[a].ExpirationDate.Before(*lots[b].ExpirationDate)
	})
	return lots
}

func (g *Generator) lotNumber(medication string) string {
	prefix := strings.ToUpper(strings.ReplaceAll(medication, " ", ""))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("LOT%s%04d", prefix, 1000+g.rng.Intn(9000))
}

func medicationReference() []domain.MedicationInfo {
	meds := make([]domain.MedicationInfo, 0, len(catalog))
	for _, med := range catalog {
		meds = append(meds, domain.MedicationInfo{
			Medication:      med.name,
			Category:        med.category,
			CaseSize:        med.caseSize,
			LeadTimeDays:    med.leadTimeDays,
			ShelfLifeMonths: med.shelfLifeMonths,
		})
	}
	return meds
}
