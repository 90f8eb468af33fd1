// backend-go/cmd/apothecary/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/report"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository/postgres"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/service"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/signals"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/synthetic"
)

const dateLayout = "2006-01-02"

func main() {
	app := &cli.App{
		Name:  "apothecary",
		Usage: "Run pharmacy demand analysis from the command line",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Analyze a directory of CSV exports and write the report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "data-dir",
						Usage: "Directory containing the pharmacy CSV exports",
						Value: "./data",
					},
					&cli.StringFlag{
						Name:  "report-dir",
						Usage: "Directory to write report artifacts into",
						Value: "./data/reports",
					},
					&cli.StringFlag{
						Name:  "date",
						Usage: "Analysis date (YYYY-MM-DD), defaults to today",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent workers for the profiling stage",
					},
					&cli.StringFlag{
						Name:  "region",
						Usage: "Region for the seasonal signal simulation",
						Value: "greece",
					},
					&cli.StringFlag{
						Name:  "bundle",
						Usage: "Path to a materialized signal bundle, overrides the simulation",
					},
					&cli.StringFlag{
						Name:    "db-url",
						Usage:   "Also persist the run to this database",
						EnvVars: []string{"DATABASE_URL"},
					},
				},
				Action: runAnalysis,
			},
			{
				Name:  "generate",
				Usage: "Write a synthetic demo dataset as CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out-dir",
						Usage: "Directory to write the dataset into",
						Value: "./data",
					},
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
				},
				Action: runGenerate,
			},
			{
				Name:  "export",
				Usage: "Export a stored report as CSV tables",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "report-dir",
						Usage: "Directory holding report artifacts",
						Value: "./data/reports",
					},
					&cli.StringFlag{
						Name:  "run-id",
						Usage: "Run to export, defaults to the latest report",
					},
					&cli.StringFlag{
						Name:  "out-dir",
						Usage: "Directory to write the CSV tables into",
						Value: "./data/exports",
					},
				},
				Action: runExport,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAnalysis(c *cli.Context) error {
	var analysisDate time.Time
	if v := c.String("date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
		}
		analysisDate = parsed
	}

	cfg := config.DefaultPipelineConfig()
	if w := c.Int("workers"); w > 0 {
		cfg.WorkerCount = w
	}

	provider := signals.NewProvider(config.SignalsConfig{
		Region:     c.String("region"),
		BundlePath: c.String("bundle"),
	})
	reports := report.NewStore(c.String("report-dir"), nil)

	// Persist the run alongside the report when a database is given.
	var runsRepo repository.AnalysisRepository
	if url := c.String("db-url"); url != "" {
		db, err := postgres.NewDBFromURL(url)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		runsRepo = postgres.NewAnalysisRepository(db)
	}

	svc := service.NewAnalysisService(cfg, provider, reports, nil, runsRepo, nil)

	payload, err := svc.RunFromCSV(c.Context, c.String("data-dir"), analysisDate)
	if err != nil {
		return err
	}

	run := payload.Run
	reportPath := filepath.Join(c.String("report-dir"),
		run.AnalysisDate.Format("2006-01"), fmt.Sprintf("run-%s.json", run.ID))

	fmt.Printf("Run %s finished (%s)\n", run.ID, run.Stage)
	fmt.Printf("  analysis date:  %s\n", run.AnalysisDate.Format(dateLayout))
	fmt.Printf("  prescriptions:  %d\n", run.Prescriptions)
	fmt.Printf("  profiles:       %d\n", run.Profiles)
	fmt.Printf("  forecasts:      %d\n", run.Forecasts)
	fmt.Printf("  orders:         %d", run.Orders)
	if payload.Optimization != nil {
		fmt.Printf(" (%d critical)", payload.Optimization.Summary.CriticalOrders)
	}
	fmt.Println()
	fmt.Printf("  report:         %s\n", reportPath)
	return nil
}

func runGenerate(c *cli.Context) error {
	cfg := synthetic.Config{
		Patients: c.Int("patients"),
		Months:   c.Int("months"),
		Seed:     c.Int64("seed"),
	}
	if v := c.String("as-of"); v != "" {
		asOf, err := time.Parse(dateLayout, v)
		if err != nil {
			return fmt.Errorf("invalid as-of date %q, want YYYY-MM-DD", v)
		}
		cfg.AsOf = asOf
	}

	dataset := synthetic.NewGenerator(cfg).Generate()
	if err := dataset.WriteCSV(c.String("out-dir")); err != nil {
		return err
	}

	fmt.Printf("Wrote %d fills, %d lots, %d medications to %s\n",
		len(dataset.Prescriptions), len(dataset.Lots), len(dataset.Medications), c.String("out-dir"))
	return nil
}

func runExport(c *cli.Context) error {
	store := report.NewStore(c.String("report-dir"), nil)

	var payload *report.Payload
	var err error
	if v := c.String("run-id"); v != "" {
		id, parseErr := uuid.Parse(v)
		if parseErr != nil {
			return fmt.Errorf("invalid run id %q", v)
		}
		payload, err = store.Load(id)
	} else {
		payload, err = store.Latest()
	}
	if err != nil {
		return err
	}

	outDir := c.String("out-dir")
	if err := payload.ExportCSV(outDir); err != nil {
		return err
	}

	fmt.Printf("Exported run %s to %s\n", payload.Run.ID, outDir)
	for _, name := range []string{report.OrdersFile, report.ProfilesFile, report.ForecastsFile} {
		fmt.Printf("  %s\n", filepath.Join(outDir, name))
	}
	return nil
}
