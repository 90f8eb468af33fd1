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

// LoadPrescriptions reads a prescription history CSV into refill events.
// Required columns: patient_id, medication, fill_date, quantity. The
// optional days_supply column defaults to zero when absent or empty.
// Unrecognized columns are ignored and rows keep their file order.
func LoadPrescriptions(path string) ([]domain.RefillEvent, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prescriptions file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	colIndex := headerIndex(header)

	idxPatient := colIndex("patient_id", "patient")
	idxMedication := colIndex("medication", "medication_name", "drug")
	idxFillDate := colIndex("fill_date", "date_filled", "dispense_date")
	idxQuantity := colIndex("quantity", "qty")
	idxDaysSupply := colIndex("days_supply", "supply_days")

	name := filepath.Base(path)
	if err := requireColumns(name, []indexedColumn{
		{idxPatient, "patient_id"},
		{idxMedication, "medication"},
		{idxFillDate, "fill_date"},
		{idxQuantity, "quantity"},
	}); err != nil {
		return nil, err
	}

	events := make([]domain.RefillEvent, 0)
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

		patientID := get(idxPatient)
		if patientID == "" {
			return nil, fmt.Errorf("%s row %d: %w: patient_id", name, row, domain.ErrMissingField)
		}
		medication := get(idxMedication)
		if medication == "" {
			return nil, fmt.Errorf("%s row %d: %w: medication", name, row, domain.ErrMissingField)
		}

		fillDate, err := parseDate(get(idxFillDate))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: fill_date: %w", name, row, err)
		}
		quantity, err := parseIntField(name, row, "quantity", get(idxQuantity))
		if err != nil {
			return nil, err
		}
		daysSupply, err := parseOptionalIntField(name, row, "days_supply", get(idxDaysSupply))
		if err != nil {
			return nil, err
		}

		events = append(events, domain.RefillEvent{
			PatientID:  patientID,
			Medication: medication,
			FillDate:   fillDate,
			Quantity:   quantity,
			DaysSupply: daysSupply,
		})
	}

	return events, nil
}
