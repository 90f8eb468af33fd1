package forecasting

import (
	"strings"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// CategoryResolver maps a medication name to its demand category.
// Multiplier derivation and category rollups key off the resolved value.
type CategoryResolver interface {
	Resolve(medication string) string
}

// keyword groups checked in order; first match wins
var keywordCategories = []struct {
	category string
	keywords []string
}{
	{"diabetes", []string{"insulin", "metformin", "glipizide"}},
	{"cardiovascular", []string{"lisinopril", "amlodipine", "atorvastatin"}},
	{"antiviral", []string{"tamiflu", "oseltamivir"}},
	{"antibiotic", []string{"amoxicillin", "azithromycin"}},
	{"gastrointestinal", []string{"omeprazole", "pantoprazole"}},
	{"thyroid", []string{"levothyroxine"}},
}

// KeywordResolver infers a category from the medication name. It is the
// fallback used when no reference data is loaded.
type KeywordResolver struct{}

func (KeywordResolver) Resolve(medication string) string {
	name := strings.ToLower(medication)
	for _, group := range keywordCategories {
		for _, kw := range group.keywords {
			if strings.Contains(name, kw) {
				return group.category
			}
		}
	}
	return "other"
}

// ReferenceResolver resolves categories from the medication reference table
// and falls back to another resolver for unknown medications.
type ReferenceResolver struct {
	categories map[string]string
	fallback   CategoryResolver
}

// NewReferenceResolver builds a resolver from medication reference records.
// A nil fallback defaults to the keyword heuristic.
func NewReferenceResolver(meds []domain.MedicationInfo, fallback CategoryResolver) *ReferenceResolver {
	if fallback == nil {
		fallback = KeywordResolver{}
	}
	categories := make(map[string]string, len(meds))
	for _, m := range meds {
		if m.Medication == "" || m.Category == "" {
			continue
		}
		categories[m.Medication] = m.Category
	}
	return &ReferenceResolver{categories: categories, fallback: fallback}
}

func (r *ReferenceResolver) Resolve(medication string) string {
	if category, ok := r.categories[medication]; ok {
		return category
	}
	return r.fallback.Resolve(medication)
}
