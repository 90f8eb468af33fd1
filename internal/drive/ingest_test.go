package drive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

type fakeInputRepo struct {
	prescriptions []domain.RefillEvent
	lots          []domain.InventoryLot
	medications   []domain.MedicationInfo
}

func (f *fakeInputRepo) LoadPrescriptions(_ context.Context) ([]domain.RefillEvent, error) {
	return f.prescriptions, nil
}

func (f *fakeInputRepo) LoadInventory(_ context.Context) ([]domain.InventoryLot, error) {
	return f.lots, nil
}

func (f *fakeInputRepo) LoadMedications(_ context.Context) ([]domain.MedicationInfo, error) {
	return f.medications, nil
}

func (f *fakeInputRepo) UpsertPrescriptions(_ context.Context, events []domain.RefillEvent) (int, error) {
	f.prescriptions = append(f.prescriptions, events...)
	return len(events), nil
}

func (f *fakeInputRepo) ReplaceInventory(_ context.Context, lots []domain.InventoryLot) (int, error) {
	f.lots = lots
	return len(lots), nil
}

func (f *fakeInputRepo) UpsertMedications(_ context.Context, meds []domain.MedicationInfo) (int, error) {
	f.medications = append(f.medications, meds...)
	return len(meds), nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{"prescription_history.csv", TablePrescriptions},
		{"prescription_history_2025-02.csv", TablePrescriptions},
		{"refill_export.xlsx", TablePrescriptions},
		{"current_stock.csv", TableInventory},
		{"inventory_lots_feb.csv", TableInventory},
		{"medication_database.csv", TableMedications},
		{"Medication_Catalog.xlsx", TableMedications},
	}
	for _, tt := range tests {
		table, err := classifyTable(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.table, table, tt.name)
	}

	_, err := classifyTable("holiday_schedule.csv")
	assert.Error(t, err)
}

func TestIngestLocalPrescriptions(t *testing.T) {
	repo := &fakeInputRepo{}
	svc := NewIngestService(nil, repo)
	path := writeFile(t, t.TempDir(), "prescription_history.csv",
		"patient_id,medication,fill_date,quantity,days_supply\n"+
			"P0001,Metformin 500mg,2025-01-05,60,30\n"+
			"P0001,Metformin 500mg,2025-02-04,60,30\n")

	result, err := svc.IngestLocal(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, TablePrescriptions, result.Table)
	assert.Equal(t, 2, result.Rows)
	assert.Len(t, repo.prescriptions, 2)
	assert.Equal(t, "Metformin 500mg", repo.prescriptions[0].Medication)
}

func TestIngestLocalInventoryReplacesSnapshot(t *testing.T) {
	repo := &fakeInputRepo{lots: []domain.InventoryLot{{Medication: "Old Med", LotNumber: "L0"}}}
	svc := NewIngestService(nil, repo)
	path := writeFile(t, t.TempDir(), "current_stock.csv",
		"medication,lot_number,quantity,unit_cost,expiration_date\n"+
			"Metformin 500mg,LOT-001,500,0.12,2026-06-30\n")

	result, err := svc.IngestLocal(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, TableInventory, result.Table)
	require.Len(t, repo.lots, 1)
	assert.Equal(t, "LOT-001", repo.lots[0].LotNumber)
}

func TestIngestLocalMedications(t *testing.T) {
	repo := &fakeInputRepo{}
	svc := NewIngestService(nil, repo)
	path := writeFile(t, t.TempDir(), "medication_database.csv",
		"medication,category,case_size,lead_time_days,shelf_life_months\n"+
			"Metformin 500mg,chronic,100,7,24\n")

	result, err := svc.IngestLocal(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, TableMedications, result.Table)
	require.Len(t, repo.medications, 1)
	assert.Equal(t, "chronic", repo.medications[0].Category)
}

func TestIngestLocalUnknownFile(t *testing.T) {
	svc := NewIngestService(nil, &fakeInputRepo{})
	path := writeFile(t, t.TempDir(), "notes.csv", "a,b\n1,2\n")

	_, err := svc.IngestLocal(context.Background(), path)

	assert.Error(t, err)
}

func TestIngestLocalWithoutRepository(t *testing.T) {
	svc := NewIngestService(nil, nil)

	_, err := svc.IngestLocal(context.Background(), "prescription_history.csv")

	assert.ErrorContains(t, err, "no database configured")
}
