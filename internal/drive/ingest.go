package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/ingest"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository"
)

// Table names an input table an exported file maps onto.
type Table string

const (
	TablePrescriptions Table = "prescriptions"
	TableInventory     Table = "inventory"
	TableMedications   Table = "medications"
)

// IngestResult summarizes one ingested file.
type IngestResult struct {
	File  string `json:"file"`
	Table Table  `json:"table"`
	Rows  int    `json:"rows"`
}

// IngestService loads downloaded export files into the database input
// tables.
type IngestService struct {
	driveService *Service
	repo         repository.PrescriptionRepository
}

func NewIngestService(driveService *Service, repo repository.PrescriptionRepository) *IngestService {
	return &IngestService{
		driveService: driveService,
		repo:         repo,
	}
}

// IngestFile downloads one Drive file and loads it into the table its
// name maps onto. XLSX exports are converted to CSV first.
func (s *IngestService) IngestFile(ctx context.Context, fileID string) (*IngestResult, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no database configured for ingest")
	}

	// 1. Resolve the original file name, which decides the target table
	info, err := s.driveService.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if _, err := classifyTable(info.Name); err != nil {
		return nil, err
	}

	// 2. Download into a scratch directory
	tmpDir, err := os.MkdirTemp("", "drive-ingest-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, info.Name)
	out, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if err := s.driveService.DownloadFile(ctx, fileID, out); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to download %s: %w", info.Name, err)
	}
	out.Close()

	// 3. Spreadsheet exports become CSV before parsing
	if strings.EqualFold(filepath.Ext(localPath), ".xlsx") {
		csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
		if err := convertXLSXToCSV(localPath, csvPath); err != nil {
			return nil, fmt.Errorf("failed to convert %s to csv: %w", info.Name, err)
		}
		localPath = csvPath
	}

	return s.IngestLocal(ctx, localPath)
}

// IngestLocal parses a CSV file already on disk and upserts its rows
// into the table its name maps onto. Inventory files replace the lot
// snapshot; the other tables upsert on their natural keys.
func (s *IngestService) IngestLocal(ctx context.Context, path string) (*IngestResult, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no database configured for ingest")
	}

	table, err := classifyTable(filepath.Base(path))
	if err != nil {
		return nil, err
	}

	var rows int
	switch table {
	case TablePrescriptions:
		events, err := ingest.LoadPrescriptions(path)
		if err != nil {
			return nil, err
		}
		rows, err = s.repo.UpsertPrescriptions(ctx, events)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert prescriptions: %w", err)
		}
	case TableInventory:
		lots, err := ingest.LoadInventory(path)
		if err != nil {
			return nil, err
		}
		rows, err = s.repo.ReplaceInventory(ctx, lots)
		if err != nil {
			return nil, fmt.Errorf("failed to replace inventory: %w", err)
		}
	case TableMedications:
		meds, err := ingest.LoadMedications(path)
		if err != nil {
			return nil, err
		}
		rows, err = s.repo.UpsertMedications(ctx, meds)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert medications: %w", err)
		}
	}

	result := &IngestResult{File: filepath.Base(path), Table: table, Rows: rows}
	log.Info().
		Str("file", result.File).
		Str("table", string(result.Table)).
		Int("rows", result.Rows).
		Msg("file ingested")
	return result, nil
}

// classifyTable maps an export file name onto an input table. Exact
// canonical names win; otherwise a keyword match decides, so files like
// "prescription_history_2025-02.csv" still land in the right table.
func classifyTable(name string) (Table, error) {
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))

	switch base + ".csv" {
	case ingest.PrescriptionsFile:
		return TablePrescriptions, nil
	case ingest.InventoryFile:
		return TableInventory, nil
	case ingest.MedicationsFile:
		return TableMedications, nil
	}

	switch {
	case strings.Contains(base, "prescription"), strings.Contains(base, "refill"):
		return TablePrescriptions, nil
	case strings.Contains(base, "stock"), strings.Contains(base, "inventory"), strings.Contains(base, "lot"):
		return TableInventory, nil
	case strings.Contains(base, "medication"), strings.Contains(base, "catalog"):
		return TableMedications, nil
	}

	return "", fmt.Errorf("cannot map file %s to an input table", name)
}
