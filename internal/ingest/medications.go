package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// LoadMedications reads the medication reference CSV.
// Required columns: medication, category, case_size. The lead_time_days
// and shelf_life_months columns are optional and default to zero, which
// downstream consumers replace with their own defaults.
func LoadMedications(path string) ([]domain.MedicationInfo, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open medications file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	colIndex := headerIndex(header)

	idxMedication := colIndex("medication", "medication_name", "drug")
	idxCategory := colIndex("category")
	idxCaseSize := colIndex("case_size", "pack_size")
	idxLeadTime := colIndex("lead_time_days", "lead_time")
	idxShelfLife := colIndex("shelf_life_months", "shelf_life")

	name := filepath.Base(path)
	if err := requireColumns(name, []indexedColumn{
		{idxMedication, "medication"},
		{idxCategory, "category"},
		{idxCaseSize, "case_size"},
	}); err != nil {
		return nil, err
	}

	meds := make([]domain.MedicationInfo, 0)
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		row++

		get := func(idx int) string {
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		medication := get(idxMedication)
		if medication == "" {
			return nil, fmt.Errorf("%s row %d: %w: medication", name, row, domain.ErrMissingField)
		}
		category := get(idxCategory)
		if category == "" {
			return nil, fmt.Errorf("%s row %d: %w: category", name, row, domain.ErrMissingField)
		}

		caseSize, err := parseIntField(name, row, "case_size", get(idxCaseSize))
		if err != nil {
			return nil, err
		}
		if caseSize < 1 {
			return nil, fmt.Errorf("%s row %d: case_size %d below minimum 1", name, row, caseSize)
		}

		leadTime, err := parseOptionalIntField(name, row, "lead_time_days", get(idxLeadTime))
		if err != nil {
			return nil, err
		}
		shelfLife, err := parseOptionalIntField(name, row, "shelf_life_months", get(idxShelfLife))
		if err != nil {
			return nil, err
		}

		meds = append(meds, domain.MedicationInfo{
			Medication:      medication,
			Category:        category,
			CaseSize:        caseSize,
			LeadTimeDays:    leadTime,
			ShelfLifeMonths: shelfLife,
		})
	}

	return meds, nil
}
