package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DownloadOptions controls how export files are pulled from Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader mirrors the export folder to a local directory the ingest
// loaders can read.
type Downloader struct {
	service *Service
}

func NewDownloader(s *Service) *Downloader {
	return &Downloader{service: s}
}

// DownloadFolderCSV pulls every recognizable export from the folder
// into DownloadDir and returns the local CSV paths. Files that map
// onto no input table are skipped; XLSX exports are converted to CSV
// and the spreadsheet copy removed.
func (d *Downloader) DownloadFolderCSV(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.service.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		if _, err := classifyTable(f.Name); err != nil {
			log.Debug().Str("file", f.Name).Msg("skipping unrecognized export")
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, f.Name)
		if err := d.fetch(ctx, f.ID, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}

		if ext == ".xlsx" {
			csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
			if err := convertXLSXToCSV(localPath, csvPath); err != nil {
				return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
			}
			_ = os.Remove(localPath)
			localPath = csvPath
		}

		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

func (d *Downloader) fetch(ctx context.Context, fileID, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.service.DownloadFile(ctx, fileID, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
