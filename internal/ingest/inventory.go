package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// LoadInventory reads a lot-level stock CSV into inventory lots.
// Required columns: medication, lot_number, quantity, unit_cost. The
// expiration_date column is optional and stays nil when empty.
func LoadInventory(path string) ([]domain.InventoryLot, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inventory file: %w", err)
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
	idxLotNumber := colIndex("lot_number", "lot")
	idxQuantity := colIndex("quantity", "qty", "on_hand")
	idxUnitCost := colIndex("unit_cost", "cost")
	idxExpiration := colIndex("expiration_date", "expiry_date", "expiration")

	name := filepath.Base(path)
	if err := requireColumns(name, []indexedColumn{
		{idxMedication, "medication"},
		{idxLotNumber, "lot_number"},
		{idxQuantity, "quantity"},
		{idxUnitCost, "unit_cost"},
	}); err != nil {
		return nil, err
	}

	lots := make([]domain.InventoryLot, 0)
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
		lotNumber := get(idxLotNumber)
		if lotNumber == "" {
			return nil, fmt.Errorf("%s row %d: %w: lot_number", name, row, domain.ErrMissingField)
		}

		quantity, err := parseIntField(name, row, "quantity", get(idxQuantity))
		if err != nil {
			return nil, err
		}

		costRaw := get(idxUnitCost)
		if costRaw == "" {
			return nil, fmt.Errorf("%s row %d: %w: unit_cost", name, row, domain.ErrMissingField)
		}
		unitCost, err := strconv.ParseFloat(strings.ReplaceAll(costRaw, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse unit_cost %q: %w", name, row, costRaw, err)
		}
		if unitCost < 0 {
			return nil, fmt.Errorf("%s row %d: %w: %.2f", name, row, domain.ErrNegativeCost, unitCost)
		}

		var expiry *time.Time
		if raw := get(idxExpiration); raw != "" {
			t, err := parseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: expiration_date: %w", name, row, err)
			}
			expiry = &t
		}

		lots = append(lots, domain.InventoryLot{
			Medication:     medication,
			LotNumber:      lotNumber,
			Quantity:       quantity,
			UnitCost:       unitCost,
			ExpirationDate: expiry,
		})
	}

	return lots, nil
}
