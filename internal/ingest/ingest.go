// Package ingest loads the three pharmacy input tables from CSV files:
// prescription history, lot-level inventory and the medication reference.
// Header matching is case, space and punctuation insensitive so exports
// from different dispensing systems resolve to the same columns. Loaders
// reject malformed rows with the file row number instead of coercing them.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// Canonical input file names, shared by the generator, the pipeline run
// and the drive ingest path.
const (
	PrescriptionsFile = "prescription_history.csv"
	InventoryFile     = "current_stock.csv"
	MedicationsFile   = "medication_database.csv"
)

// Validate performs basic validation on an input file path.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat input file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path %s is a directory, expected file", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		return fmt.Errorf("unsupported file extension %s for %s (only CSV supported)", ext, path)
	}
	return nil
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	return columnNameSanitizer.Replace(strings.TrimSpace(strings.ToLower(name)))
}

// headerIndex builds a lookup over a header row. The returned func resolves
// the first candidate name present in the header to its column index, -1
// when none match. Duplicate headers keep the first occurrence.
func headerIndex(header []string) func(names ...string) int {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeColumnName(h)
		if _, ok := byName[n]; !ok {
			byName[n] = i
		}
	}
	return func(names ...string) int {
		for _, name := range names {
			if idx, ok := byName[normalizeColumnName(name)]; ok {
				return idx
			}
		}
		return -1
	}
}

// requireColumns fails with the first missing required column by name.
func requireColumns(file string, cols []indexedColumn) error {
	for _, col := range cols {
		if col.idx < 0 {
			return fmt.Errorf("%s: %w: %s", file, domain.ErrMissingColumn, col.name)
		}
	}
	return nil
}

type indexedColumn struct {
	idx  int
	name string
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidDate, raw)
}

// parseIntField parses a required integer cell, rejecting negatives.
// Thousands separators are stripped before parsing.
func parseIntField(file string, row int, field, raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s row %d: %w: %s", file, row, domain.ErrMissingField, field)
	}
	v, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("%s row %d: parse %s %q: %w", file, row, field, raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s row %d: %w: %s %d", file, row, domain.ErrNegativeQuantity, field, v)
	}
	return v, nil
}

// parseOptionalIntField is parseIntField with an empty cell treated as zero.
func parseOptionalIntField(file string, row int, field, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return parseIntField(file, row, field, raw)
}
