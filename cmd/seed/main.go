// backend-go/cmd/seed/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/ingest"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository/postgres"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/synthetic"
)

type ctxKey int

// dbKey carries the open pool from the Before hook to the action.
const dbKey ctxKey = iota

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	db, err := postgres.NewDBFromURL(c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFromContext(c *cli.Context) (*postgres.DB, error) {
	db, ok := c.Context.Value(dbKey).(*postgres.DB)
	if !ok || db == nil {
		return nil, fmt.Errorf("database connection not found in context")
	}
	return db, nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Prepare the pharmacy database: schema, input tables, demo data",
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "Apply the embedded migrations",
				Flags: []cli.Flag{
					newDBURLFlag(),
				},
				Before: initDB,
				After:  closeDB,
				Action: runSchema,
			},
			{
				Name:  "inputs",
				Usage: "Load prescription history, stock, and the medication catalog from CSV",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing the pharmacy CSV exports",
						Value:   "./data",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runInputs,
			},
			{
				Name:  "demo",
				Usage: "Generate a synthetic dataset and load it",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.IntFlag{
						Name:  "patients",
						Usage: "Number of synthetic patients",
						Value: 200,
					},
					&cli.IntFlag{
						Name:  "months",
						Usage: "Months of refill history",
						Value: 12,
					},
					&cli.Int64Flag{
						Name:  "seed",
						Usage: "Random seed, 0 picks one from the clock",
					},
					&cli.StringFlag{
						Name:  "as-of",
						Usage: "End of the history window (YYYY-MM-DD), defaults to today",
					},
					&cli.StringFlag{
						Name:  "out-dir",
						Usage: "Also write the generated dataset as CSV into this directory",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runDemo,
			},
			{
				Name:  "all",
				Usage: "Apply the schema, then load the input tables",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing the pharmacy CSV exports",
						Value:   "./data",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					if err := runSchema(c); err != nil {
						return fmt.Errorf("error applying schema: %w", err)
					}
					if err := runInputs(c); err != nil {
						return fmt.Errorf("error loading inputs: %w", err)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runSchema(c *cli.Context) error {
	db, err := dbFromContext(c)
	if err != nil {
		return err
	}

	log.Println("Applying migrations...")
	if err := postgres.Migrate(db.DB.DB); err != nil {
		return err
	}
	log.Println("Schema is up to date")
	return nil
}

func runInputs(c *cli.Context) error {
	db, err := dbFromContext(c)
	if err != nil {
		return err
	}

	repo := postgres.NewPrescriptionRepository(db)
	dataDir := c.String("data-dir")

	// Prescription history is required, the other two tables are
	// optional the same way they are for an analysis run.
	prescriptions, err := ingest.LoadPrescriptions(filepath.Join(dataDir, ingest.PrescriptionsFile))
	if err != nil {
		return fmt.Errorf("load prescriptions: %w", err)
	}
	n, err := repo.UpsertPrescriptions(c.Context, prescriptions)
	if err != nil {
		return fmt.Errorf("store prescriptions: %w", err)
	}
	log.Printf("Loaded %d prescription fills", n)

	inventoryPath := filepath.Join(dataDir, ingest.InventoryFile)
	if _, err := os.Stat(inventoryPath); os.IsNotExist(err) {
		log.Printf("No %s found, skipping inventory", ingest.InventoryFile)
	} else {
		lots, err := ingest.LoadInventory(inventoryPath)
		if err != nil {
			return fmt.Errorf("load inventory: %w", err)
		}
		n, err := repo.ReplaceInventory(c.Context, lots)
		if err != nil {
			return fmt.Errorf("store inventory: %w", err)
		}
		log.Printf("Replaced stock snapshot with %d lots", n)
	}

	medicationsPath := filepath.Join(dataDir, ingest.MedicationsFile)
	if _, err := os.Stat(medicationsPath); os.IsNotExist(err) {
		log.Printf("No %s found, skipping medication catalog", ingest.MedicationsFile)
	} else {
		meds, err := ingest.LoadMedications(medicationsPath)
		if err != nil {
			return fmt.Errorf("load medications: %w", err)
		}
		n, err := repo.UpsertMedications(c.Context, meds)
		if err != nil {
			return fmt.Errorf("store medications: %w", err)
		}
		log.Printf("Loaded %d medications", n)
	}

	return nil
}

func runDemo(c *cli.Context) error {
	db, err := dbFromContext(c)
	if err != nil {
		return err
	}

	cfg := synthetic.Config{
		Patients: c.Int("patients"),
		Months:   c.Int("months"),
		Seed:     c.Int64("seed"),
	}
	if v := c.String("as-of"); v != "" {
		asOf, err := time.Parse("2006-01-02", v)
		if err != nil {
			return fmt.Errorf("invalid as-of date %q, want YYYY-MM-DD", v)
		}
		cfg.AsOf = asOf
	}

	dataset := synthetic.NewGenerator(cfg).Generate()
	log.Printf("Generated %d fills, %d lots, %d medications for %d patients",
		len(dataset.Prescriptions), len(dataset.Lots), len(dataset.Medications), c.Int("patients"))

	if dir := c.String("out-dir"); dir != "" {
		if err := dataset.WriteCSV(dir); err != nil {
			return fmt.Errorf("write dataset: %w", err)
		}
		log.Printf("Wrote CSV files to %s", dir)
	}

	repo := postgres.NewPrescriptionRepository(db)
	if _, err := repo.UpsertPrescriptions(c.Context, dataset.Prescriptions); err != nil {
		return fmt.Errorf("store prescriptions: %w", err)
	}
	if _, err := repo.ReplaceInventory(c.Context, dataset.Lots); err != nil {
		return fmt.Errorf("store inventory: %w", err)
	}
	if _, err := repo.UpsertMedications(c.Context, dataset.Medications); err != nil {
		return fmt.Errorf("store medications: %w", err)
	}
	log.Println("Demo dataset loaded")
	return nil
}
