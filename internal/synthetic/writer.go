package synthetic

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/ingest"
)

const dateLayout = "2006-01-02"

// WriteCSV writes the dataset as the three input files the loaders
// expect, creating dir when needed.
func (d *Dataset) WriteCSV(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	prescriptions := make([][]string, 0, len(d.Prescriptions)+1)
	prescriptions = append(prescriptions, []string{"patient_id", "medication", "fill_date", "quantity", "days_supply", "behavior_type"})
	for _, e := range d.Prescriptions {
		prescriptions = append(prescriptions, []string{
			e.PatientID,
			e.Medication,
			e.FillDate.Format(dateLayout),
			strconv.Itoa(e.Quantity),
			strconv.Itoa(e.DaysSupply),
			d.Behaviors[e.PatientID],
		})
	}
	if err := writeRows(filepath.Join(dir, ingest.PrescriptionsFile), prescriptions); err != nil {
		return err
	}

	lots := make([][]string, 0, len(d.Lots)+1)
	lots = append(lots, []string{"medication", "lot_number", "quantity", "unit_cost", "expiration_date"})
	for _, lot := range d.Lots {
		expiry := ""
		if lot.ExpirationDate != nil {
			expiry = lot.ExpirationDate.Format(dateLayout)
		}
		lots = append(lots, []string{
			lot.Medication,
			lot.LotNumber,
			strconv.Itoa(lot.Quantity),
			strconv.FormatFloat(lot.UnitCost, 'f', 2, 64),
			expiry,
		})
	}
	if err := writeRows(filepath.Join(dir, ingest.InventoryFile), lots); err != nil {
		return err
	}

	// The reference file carries the catalog's cost and dosing columns
	// alongside the fields the loader consumes.
	extras := make(map[string]catalogEntry, len(catalog))
	for _, entry := range catalog {
		extras[entry.name] = entry
	}
	meds := make([][]string, 0, len(d.Medications)+1)
	meds = append(meds, []string{"medication", "category", "unit_cost", "shelf_life_months", "case_size", "lead_time_days", "daily_doses", "is_chronic"})
	for _, m := range d.Medications {
		entry := extras[m.Medication]
		meds = append(meds, []string{
			m.Medication,
			m.Category,
			strconv.FormatFloat(entry.unitCost, 'f', 2, 64),
			strconv.Itoa(m.ShelfLifeMonths),
			strconv.Itoa(m.CaseSize),
			strconv.Itoa(m.LeadTimeDays),
			strconv.FormatFloat(entry.dailyDoses, 'g', -1, 64),
			strconv.FormatBool(entry.chronic),
		})
	}
	return writeRows(filepath.Join(dir, ingest.MedicationsFile), meds)
}

func writeRows(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	if err := csv.NewWriter(file).WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
