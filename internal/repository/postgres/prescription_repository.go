package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository"
)

type prescriptionRepository struct {
	db *DB
}

func NewPrescriptionRepository(db *DB) repository.PrescriptionRepository {
	return &prescriptionRepository{db: db}
}

func (r *prescriptionRepository) LoadPrescriptions(ctx context.Context) ([]domain.RefillEvent, error) {
	query := `
		SELECT patient_id, medication, fill_date, quantity, days_supply
		FROM prescription_history
		ORDER BY patient_id, medication, fill_date
	`

	var events []domain.RefillEvent
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("failed to load prescription history: %w", err)
	}
	return events, nil
}

func (r *prescriptionRepository) LoadInventory(ctx context.Context) ([]domain.InventoryLot, error) {
	query := `
		SELECT medication, lot_number, quantity, unit_cost, expiration_date
		FROM inventory_lots
		ORDER BY medication, lot_number
	`

	var lots []domain.InventoryLot
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, fmt.Errorf("failed to load inventory lots: %w", err)
	}
	return lots, nil
}

func (r *prescriptionRepository) LoadMedications(ctx context.Context) ([]domain.MedicationInfo, error) {
	query := `
		SELECT medication, category, case_size, lead_time_days, shelf_life_months
		FROM medication_reference
		ORDER BY medication
	`

	var meds []domain.MedicationInfo
	if err := r.db.SelectContext(ctx, &meds, query); err != nil {
		return nil, fmt.Errorf("failed to load medication reference: %w", err)
	}
	return meds, nil
}

// UpsertPrescriptions inserts refill events keyed by
// (patient, medication, fill date), updating quantity and days supply on
// re-import.
func (r *prescriptionRepository) UpsertPrescriptions(ctx context.Context, events []domain.RefillEvent) (int, error) {
	count := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO prescription_history (patient_id, medication, fill_date, quantity, days_supply)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (patient_id, medication, fill_date) DO UPDATE SET
				quantity = EXCLUDED.quantity,
				days_supply = EXCLUDED.days_supply
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			if _, err := stmt.ExecContext(ctx, e.PatientID, e.Medication, e.FillDate, e.Quantity, e.DaysSupply); err != nil {
				return fmt.Errorf("failed to upsert prescription for %s/%s: %w", e.PatientID, e.Medication, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ReplaceInventory swaps the entire lot table for the imported snapshot.
func (r *prescriptionRepository) ReplaceInventory(ctx context.Context, lots []domain.InventoryLot) (int, error) {
	count := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_lots`); err != nil {
			return fmt.Errorf("failed to clear inventory lots: %w", err)
		}

		query := `
			INSERT INTO inventory_lots (medication, lot_number, quantity, unit_cost, expiration_date)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (medication, lot_number) DO UPDATE SET
				quantity = EXCLUDED.quantity,
				unit_cost = EXCLUDED.unit_cost,
				expiration_date = EXCLUDED.expiration_date,
				updated_at = NOW()
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, lot := range lots {
			if _, err := stmt.ExecContext(ctx, lot.Medication, lot.LotNumber, lot.Quantity, lot.UnitCost, lot.ExpirationDate); err != nil {
				return fmt.Errorf("failed to insert lot %s/%s: %w", lot.Medication, lot.LotNumber, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *prescriptionRepository) UpsertMedications(ctx context.Context, meds []domain.MedicationInfo) (int, error) {
	count := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO medication_reference (medication, category, case_size, lead_time_days, shelf_life_months)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (medication) DO UPDATE SET
				category = EXCLUDED.category,
				case_size = EXCLUDED.case_size,
				lead_time_days = EXCLUDED.lead_time_days,
				shelf_life_months = EXCLUDED.shelf_life_months,
				updated_at = NOW()
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, m := range meds {
			if _, err := stmt.ExecContext(ctx, m.Medication, m.Category, m.CaseSize, m.LeadTimeDays, m.ShelfLifeMonths); err != nil {
				return fmt.Errorf("failed to upsert medication %s: %w", m.Medication, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
