package ingest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPrescriptions(t *testing.T) {
	path := writeCSV(t, "prescription_history.csv", `patient_id,medication,fill_date,quantity,days_supply,behavior_type
P0001,Metformin 500mg,2024-11-02,60,30,regular
P0001,Metformin 500mg,2024-12-02,60,30,regular
P0002,Insulin Glargine,2024-12-15,30,,irregular
`)

	events, err := LoadPrescriptions(path)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "P0001", events[0].PatientID)
	assert.Equal(t, "Metformin 500mg", events[0].Medication)
	assert.Equal(t, time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC), events[0].FillDate)
	assert.Equal(t, 60, events[0].Quantity)
	assert.Equal(t, 30, events[0].DaysSupply)

	// empty days_supply cell stays zero
	assert.Equal(t, "P0002", events[2].PatientID)
	assert.Equal(t, 0, events[2].DaysSupply)
}

func TestLoadPrescriptionsHeaderAliases(t *testing.T) {
	path := writeCSV(t, "export.csv", `Patient ID,Drug,Date Filled,QTY
P0003,Tamiflu 75mg,2025-01-05,20
`)

	events, err := LoadPrescriptions(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "P0003", events[0].PatientID)
	assert.Equal(t, "Tamiflu 75mg", events[0].Medication)
	assert.Equal(t, 20, events[0].Quantity)
	assert.Equal(t, 0, events[0].DaysSupply)
}

func TestLoadPrescriptionsMissingColumn(t *testing.T) {
	path := writeCSV(t, "bad.csv", `patient_id,medication,fill_date
P0001,Metformin 500mg,2024-11-02
`)

	_, err := LoadPrescriptions(path)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.ErrorContains(t, err, "quantity")
}

func TestLoadPrescriptionsNegativeQuantity(t *testing.T) {
	path := writeCSV(t, "bad.csv", `patient_id,medication,fill_date,quantity
P0001,Metformin 500mg,2024-11-02,60
P0001,Metformin 500mg,2024-12-02,-5
`)

	_, err := LoadPrescriptions(path)
	require.ErrorIs(t, err, domain.ErrNegativeQuantity)
	assert.ErrorContains(t, err, "row 3")
}

func TestLoadPrescriptionsBadDate(t *testing.T) {
	path := writeCSV(t, "bad.csv", `patient_id,medication,fill_date,quantity
P0001,Metformin 500mg,not-a-date,60
`)

	_, err := LoadPrescriptions(path)
	require.ErrorIs(t, err, domain.ErrInvalidDate)
	assert.ErrorContains(t, err, "row 2")
}

func TestLoadPrescriptionsBadQuantity(t *testing.T) {
	path := writeCSV(t, "bad.csv", `patient_id,medication,fill_date,quantity
P0001,Metformin 500mg,2024-11-02,sixty
`)

	_, err := LoadPrescriptions(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "parse quantity")
}

func TestLoadPrescriptionsBlankPatient(t *testing.T) {
	path := writeCSV(t, "bad.csv", `patient_id,medication,fill_date,quantity
,Metformin 500mg,2024-11-02,60
`)

	_, err := LoadPrescriptions(path)
	require.ErrorIs(t, err, domain.ErrMissingField)
	assert.ErrorContains(t, err, "patient_id")
}

func TestLoadPrescriptionsRaggedRow(t *testing.T) {
	path := writeCSV(t, "bad.csv", `patient_id,medication,fill_date,quantity
P0001,Metformin 500mg,2024-11-02
`)

	_, err := LoadPrescriptions(path)
	require.ErrorIs(t, err, csv.ErrFieldCount)
}

func TestLoadPrescriptionsEmptyFile(t *testing.T) {
	path := writeCSV(t, "empty.csv", "")

	_, err := LoadPrescriptions(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "read header")
}

func TestLoadInventory(t *testing.T) {
	path := writeCSV(t, "current_stock.csv", `medication,lot_number,quantity,unit_cost,expiration_date,received_date
Metformin 500mg,LOTMET1001,120,2.50,2025-09-15,2024-12-01
Metformin 500mg,LOTMET1002,"1,200",2.50,,2024-12-10
Insulin Glargine,LOTINS2001,40,45.00,2025-03-01,2024-11-20
`)

	lots, err := LoadInventory(path)
	require.NoError(t, err)
	require.Len(t, lots, 3)

	assert.Equal(t, "LOTMET1001", lots[0].LotNumber)
	assert.Equal(t, 120, lots[0].Quantity)
	assert.Equal(t, 2.50, lots[0].UnitCost)
	require.NotNil(t, lots[0].ExpirationDate)
	assert.Equal(t, time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC), *lots[0].ExpirationDate)

	// quoted thousands separator and empty expiry
	assert.Equal(t, 1200, lots[1].Quantity)
	assert.Nil(t, lots[1].ExpirationDate)
}

func TestLoadInventoryNegativeCost(t *testing.T) {
	path := writeCSV(t, "bad.csv", `medication,lot_number,quantity,unit_cost
Metformin 500mg,LOTMET1001,120,-2.50
`)

	_, err := LoadInventory(path)
	require.ErrorIs(t, err, domain.ErrNegativeCost)
	assert.ErrorContains(t, err, "row 2")
}

func TestLoadInventoryMissingColumn(t *testing.T) {
	path := writeCSV(t, "bad.csv", `medication,quantity,unit_cost
Metformin 500mg,120,2.50
`)

	_, err := LoadInventory(path)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.ErrorContains(t, err, "lot_number")
}

func TestLoadInventoryBadExpiry(t *testing.T) {
	path := writeCSV(t, "bad.csv", `medication,lot_number,quantity,unit_cost,expiration_date
Metformin 500mg,LOTMET1001,120,2.50,soon
`)

	_, err := LoadInventory(path)
	require.ErrorIs(t, err, domain.ErrInvalidDate)
	assert.ErrorContains(t, err, "expiration_date")
}

func TestLoadMedications(t *testing.T) {
	path := writeCSV(t, "medication_database.csv", `medication,category,unit_cost,shelf_life_months,case_size,daily_doses,is_chronic
Metformin 500mg,diabetes,2.50,24,100,2,True
Tamiflu 75mg,antiviral,18.00,18,50,2,False
`)

	meds, err := LoadMedications(path)
	require.NoError(t, err)
	require.Len(t, meds, 2)

	assert.Equal(t, "Metformin 500mg", meds[0].Medication)
	assert.Equal(t, "diabetes", meds[0].Category)
	assert.Equal(t, 100, meds[0].CaseSize)
	assert.Equal(t, 24, meds[0].ShelfLifeMonths)
	assert.Equal(t, 0, meds[0].LeadTimeDays)

	assert.Equal(t, "antiviral", meds[1].Category)
	assert.Equal(t, 50, meds[1].CaseSize)
}

func TestLoadMedicationsLeadTime(t *testing.T) {
	path := writeCSV(t, "reference.csv", `medication,category,case_size,lead_time_days
Albuterol Inhaler,respiratory,12,14
`)

	meds, err := LoadMedications(path)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, 14, meds[0].LeadTimeDays)
}

func TestLoadMedicationsCaseSizeBelowOne(t *testing.T) {
	path := writeCSV(t, "bad.csv", `medication,category,case_size
Metformin 500mg,diabetes,0
`)

	_, err := LoadMedications(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "case_size 0 below minimum")
}

func TestLoadMedicationsMissingCategoryValue(t *testing.T) {
	path := writeCSV(t, "bad.csv", `medication,category,case_size
Metformin 500mg,,100
`)

	_, err := LoadMedications(path)
	require.ErrorIs(t, err, domain.ErrMissingField)
	assert.ErrorContains(t, err, "category")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	require.Error(t, Validate(filepath.Join(dir, "missing.csv")))
	require.Error(t, Validate(dir))

	txt := filepath.Join(dir, "stock.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	assert.ErrorContains(t, Validate(txt), "unsupported file extension")

	ok := filepath.Join(dir, "stock.csv")
	require.NoError(t, os.WriteFile(ok, []byte("medication\n"), 0o644))
	assert.NoError(t, Validate(ok))
}

func TestNormalizeColumnName(t *testing.T) {
	cases := map[string]string{
		"Fill Date":       "filldate",
		" Unit_Cost ":     "unitcost",
		"lot-number":      "lotnumber",
		"Days/Supply":     "dayssupply",
		"expiration.date": "expirationdate",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeColumnName(in), in)
	}
}
