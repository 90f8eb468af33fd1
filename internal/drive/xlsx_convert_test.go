package drive

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestConvertXLSXToCSV(t *testing.T) {
	dir := t.TempDir()
	xlsxPath := filepath.Join(dir, "current_stock.xlsx")

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1",
		&[]interface{}{"medication", "lot_number", "quantity", "unit_cost", "expiration_date"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2",
		&[]interface{}{"Metformin 500mg", "LOT-001", 500, 0.12, "2026-06-30"}))
	// Row 3 stays empty; row 4 ends in a blank expiry cell, which the
	// sheet reader drops.
	require.NoError(t, book.SetSheetRow(sheet, "A4",
		&[]interface{}{"Lisinopril 10mg", "LOT-002", 200, 0.08}))
	require.NoError(t, book.SaveAs(xlsxPath))
	require.NoError(t, book.Close())

	csvPath := filepath.Join(dir, "current_stock.csv")
	require.NoError(t, convertXLSXToCSV(xlsxPath, csvPath))

	rows := readCSV(t, csvPath)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"medication", "lot_number", "quantity", "unit_cost", "expiration_date"}, rows[0])
	assert.Equal(t, []string{"Metformin 500mg", "LOT-001", "500", "0.12", "2026-06-30"}, rows[1])
	assert.Equal(t, []string{"Lisinopril 10mg", "LOT-002", "200", "0.08", ""}, rows[2])
}

func TestConvertXLSXToCSVMissingFile(t *testing.T) {
	dir := t.TempDir()

	err := convertXLSXToCSV(filepath.Join(dir, "absent.xlsx"), filepath.Join(dir, "out.csv"))

	assert.Error(t, err)
}
