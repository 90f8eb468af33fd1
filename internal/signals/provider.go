package signals

import (
	"context"
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// Provider produces the external signal bundle for an analysis date.
// Implementations never fetch live data; they simulate or read bundles
// materialized out of band.
type Provider interface {
	Collect(ctx context.Context, asOf time.Time) (*domain.ExternalSignals, error)
}

// NewProvider selects the provider for the configured source: a
// materialized bundle file when a path is set, the seasonal simulation
// otherwise.
func NewProvider(cfg config.SignalsConfig) Provider {
	if cfg.BundlePath != "" {
		return NewFileProvider(cfg.BundlePath)
	}
	return NewSeasonalProvider(cfg)
}

// qualityFor grades a bundle by how many of its sections are unusable.
func qualityFor(errorCount int) domain.SignalQuality {
	switch {
	case errorCount > 2:
		return domain.SignalDegraded
	case errorCount > 0:
		return domain.SignalPartial
	default:
		return domain.SignalComplete
	}
}
