package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

func TestReasonsRoundTrip(t *testing.T) {
	reasons := []domain.OrderReason{
		domain.ReasonStockoutRisk,
		domain.ReasonExpiringSoon,
		domain.ReasonShortage,
	}

	raw := joinReasons(reasons)
	assert.Equal(t, "stockout_risk,expiring_soon,shortage", raw)
	assert.Equal(t, reasons, splitReasons(raw))
}

func TestReasonsEmpty(t *testing.T) {
	assert.Equal(t, "", joinReasons(nil))
	assert.Nil(t, splitReasons(""))
}
