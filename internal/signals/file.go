package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// FileProvider reads a materialized signal bundle from a JSON file.
// Bundles are produced out of band, hand-written or exported from an
// upstream collector.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading from path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Collect loads and grades the bundle. A quality recorded in the file
// wins; otherwise quality is derived from which sections are present.
func (p *FileProvider) Collect(_ context.Context, asOf time.Time) (*domain.ExternalSignals, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read signal bundle %s: %w", p.path, err)
	}

	var bundle domain.ExternalSignals
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("parse signal bundle %s: %w", p.path, err)
	}

	if bundle.Quality == "" {
		missing := 0
		if bundle.Epidemic == nil {
			missing++
		}
		if bundle.Weather == nil {
			missing++
		}
		bundle.Quality = qualityFor(missing)
	}
	if bundle.CollectedAt.IsZero() {
		bundle.CollectedAt = asOf
	}
	return &bundle, nil
}
