package synthetic

// catalogEntry describes one medication in the demo formulary.
type catalogEntry struct {
	name            string
	category        string
	unitCost        float64
	shelfLifeMonths int
	caseSize        int
	leadTimeDays    int
	dailyDoses      float64
	chronic         bool
}

// Formulary backing the generated data. Chronic medications drive the
// recurring refill histories; acute ones appear as short courses.
var catalog = []catalogEntry{
	{"Metformin 500mg", "diabetes", 2.50, 24, 100, 7, 2, true},
	{"Metformin 1000mg", "diabetes", 3.00, 24, 100, 7, 2, true},
	{"Insulin Glargine", "diabetes", 45.00, 18, 10, 14, 1, true},
	{"Lisinopril 10mg", "cardiovascular", 1.20, 36, 100, 7, 1, true},
	{"Lisinopril 20mg", "cardiovascular", 1.50, 36, 100, 7, 1, true},
	{"Atorvastatin 20mg", "cardiovascular", 2.00, 36, 100, 7, 1, true},
	{"Amlodipine 5mg", "cardiovascular", 1.80, 36, 100, 7, 1, true},
	{"Tamiflu 75mg", "antiviral", 18.00, 18, 50, 10, 2, false},
	{"Amoxicillin 500mg", "antibiotic", 0.80, 24, 50, 7, 3, false},
	{"Azithromycin 250mg", "antibiotic", 2.50, 24, 30, 7, 1, false},
	{"Omeprazole 20mg", "gastrointestinal", 1.50, 24, 100, 7, 1, true},
	{"Pantoprazole 40mg", "gastrointestinal", 2.00, 24, 100, 7, 1, true},
	{"Levothyroxine 50mcg", "thyroid", 1.00, 24, 100, 7, 1, true},
	{"Levothyroxine 100mcg", "thyroid", 1.20, 24, 100, 7, 1, true},
	{"Albuterol Inhaler", "respiratory", 25.00, 12, 12, 14, 0.5, true},
	{"Sertraline 50mg", "mental_health", 1.50, 36, 100, 7, 1, true},
	{"Gabapentin 300mg", "pain", 0.80, 36, 100, 7, 3, true},
	{"Cetirizine 10mg", "allergy", 0.30, 36, 100, 7, 1, false},
	{"Fluticasone Nasal Spray", "allergy", 15.00, 24, 12, 7, 1, false},
	{"Dextromethorphan Syrup", "cold_flu", 6.50, 24, 24, 7, 3, false},
	{"Pseudoephedrine 60mg", "cold_flu", 0.50, 36, 100, 7, 3, false},
}

func chronicCatalog() []catalogEntry {
	entries := make([]catalogEntry, 0, len(catalog))
	for _, entry := range catalog {
		if entry.chronic {
			entries = append(entries, entry)
		}
	}
	return entries
}

func acuteCatalog() []catalogEntry {
	entries := make([]catalogEntry, 0, len(catalog))
	for _, entry := range catalog {
		if !entry.chronic {
			entries = append(entries, entry)
		}
	}
	return entries
}

// behaviorProfile is a patient adherence archetype. Probabilities sum
// to one across the table.
type behaviorProfile struct {
	name        string
	probability float64
	intervalStd float64
	skipProb    float64
	earlyProb   float64
}

var behaviorProfiles = []behaviorProfile{
	{"highly_regular", 0.30, 2, 0.02, 0.05},
	{"regular", 0.45, 4, 0.08, 0.10},
	{"irregular", 0.20, 8, 0.15, 0.15},
	{"new_patient", 0.05, 5, 0.30, 0.05},
}

func behaviorByName(name string) behaviorProfile {
	for _, b := range behaviorProfiles {
		if b.name == name {
			return b
		}
	}
	return behaviorProfiles[1]
}
