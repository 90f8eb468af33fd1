// Package report materializes completed analysis runs as JSON artifacts
// on disk, with an optional object-storage mirror. Reports are grouped
// into month directories keyed by the analysis date.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/pipeline"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/storage"
)

const (
	fileExt         = ".json"
	remoteKeyPrefix = "reports"
)

// Payload is the complete artifact written for a finished run: the run
// record, the configuration that produced it, the collected signals and
// all three stage results.
type Payload struct {
	Run          *domain.AnalysisRun        `json:"run"`
	Config       config.PipelineConfig      `json:"config"`
	Signals      *domain.ExternalSignals    `json:"external_signals,omitempty"`
	Profiling    *domain.ProfilingResult    `json:"profiling"`
	Forecasting  *domain.ForecastingResult  `json:"forecasting"`
	Optimization *domain.OptimizationResult `json:"optimization"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// NewPayload assembles a report payload from a pipeline result.
func NewPayload(cfg config.PipelineConfig, res *pipeline.Result) *Payload {
	return &Payload{
		Run:          res.Run,
		Config:       cfg,
		Signals:      res.Signals,
		Profiling:    res.Profiles,
		Forecasting:  res.Forecast,
		Optimization: res.Optimization,
		GeneratedAt:  time.Now().UTC(),
	}
}

// Entry identifies one stored report.
type Entry struct {
	ID      uuid.UUID
	Path    string
	SavedAt time.Time
}

// Store reads and writes report files under a base directory.
type Store struct {
	dir    string
	remote storage.ObjectStorage
}

// NewStore builds a store rooted at dir. A non-nil remote mirrors every
// saved report to object storage.
func NewStore(dir string, remote storage.ObjectStorage) *Store {
	return &Store{dir: dir, remote: remote}
}

// Save writes the payload to <dir>/<YYYY-MM>/run-<id>.json via a temp
// file and rename, so readers never observe a partial report. A remote
// upload failure is logged and does not fail the save.
func (s *Store) Save(ctx context.Context, p *Payload) (string, error) {
	if p.Run == nil {
		return "", fmt.Errorf("report payload has no run")
	}

	month := p.Run.AnalysisDate.Format("2006-01")
	name := fmt.Sprintf("run-%s%s", p.Run.ID, fileExt)

	dir := filepath.Join(s.dir, month)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed creating report directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	dest := filepath.Join(dir, name)
	if err := writeAtomic(dest, data); err != nil {
		return "", err
	}

	if s.remote != nil {
		key := fmt.Sprintf("%s/%s/%s", remoteKeyPrefix, month, name)
		if err := s.remote.UploadObject(ctx, key, data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("report upload failed, local copy kept")
		}
	}

	return dest, nil
}

// Restore downloads mirrored reports that are missing locally, so a
// fresh deployment can serve the history already in object storage.
// It returns the number of files pulled down.
func (s *Store) Restore(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, nil
	}

	objects, err := s.remote.ListObjects(ctx, remoteKeyPrefix+"/")
	if err != nil {
		return 0, fmt.Errorf("failed to list remote reports: %w", err)
	}

	pulled := 0
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, remoteKeyPrefix+"/")
		if rel == "" || strings.Contains(rel, "..") || !strings.HasSuffix(rel, fileExt) {
			continue
		}

		dest := filepath.Join(s.dir, filepath.FromSlash(rel))
		if _, err := os.Stat(dest); err == nil {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return pulled, fmt.Errorf("failed creating report directory: %w", err)
		}
		if err := s.remote.DownloadObject(ctx, obj.Key, dest); err != nil {
			return pulled, fmt.Errorf("failed to restore %s: %w", obj.Key, err)
		}
		pulled++
	}

	return pulled, nil
}

// Load returns the stored report for a run ID.
func (s *Store) Load(id uuid.UUID) (*Payload, error) {
	pattern := filepath.Join(s.dir, "*", fmt.Sprintf("run-%s%s", id, fileExt))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search reports: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrReportNotFound)
	}
	return s.read(matches[0])
}

// Latest returns the most recently saved report.
func (s *Store) Latest() (*Payload, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no reports stored: %w", domain.ErrReportNotFound)
	}
	return s.read(entries[0].Path)
}

// List returns all stored reports, newest first.
func (s *Store) List() ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*", "run-*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	var entries []Entry
	for _, match := range matches {
		base := filepath.Base(match)
		raw := strings.TrimSuffix(strings.TrimPrefix(base, "run-"), fileExt)
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ID: id, Path: match, SavedAt: info.ModTime()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SavedAt.After(entries[j].SavedAt)
	})
	return entries, nil
}

func (s *Store) read(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &p, nil
}

func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".report-*")
	if err != nil {
		return fmt.Errorf("failed creating temp report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed closing report file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed setting report permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}
