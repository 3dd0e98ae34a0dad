// Package engine implements the tax-loss-harvesting decision engine: lot
// normalization, threshold filtering, wash-sale checking, alternative
// selection, savings calculation, opportunity ranking, and the sell-then-buy
// harvest orchestrator.
package engine

import (
	"fmt"
	"time"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// defaultHoldingDays is assumed when a position has no acquisition timestamp.
const defaultHoldingDays = 365

// Normalize turns a raw position into a fully-computed lot. It returns
// domain.ErrInvalidPosition when quantity or price is non-positive and
// domain.ErrMissingPriceData when the cost basis is non-positive (the loss
// percentage would be undefined). Callers skip bad lots and continue scanning.
func Normalize(p domain.Position, now time.Time) (domain.Lot, error) {
	if p.Quantity <= 0 || p.Price <= 0 {
		return domain.Lot{}, fmt.Errorf("normalize %s: qty=%.4f price=%.4f: %w",
			p.Symbol, p.Quantity, p.Price, domain.ErrInvalidPosition)
	}
	if p.AvgCost <= 0 {
		return domain.Lot{}, fmt.Errorf("normalize %s: cost basis %.4f: %w",
			p.Symbol, p.AvgCost, domain.ErrMissingPriceData)
	}

	lot := domain.Lot{
		Symbol:      p.Symbol,
		AssetName:   p.AssetName,
		AssetClass:  p.AssetClass,
		Sector:      p.Sector,
		Quantity:    p.Quantity,
		AvgCost:     p.AvgCost,
		Price:       p.Price,
		MarketValue: p.Quantity * p.Price,
		CostBasis:   p.Quantity * p.AvgCost,
		HoldingDays: defaultHoldingDays,
	}
	lot.Unrealized = lot.MarketValue - lot.CostBasis
	lot.LossPct = lot.Unrealized / lot.CostBasis * 100

	if !p.AcquiredAt.IsZero() {
		days := int(now.Sub(p.AcquiredAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		lot.HoldingDays = days
	}

	return lot, nil
}

// MeetsThresholds is the harvest-worthiness predicate: the unrealized loss
// must be at least minAmount dollars AND at least minPct percent. Both bounds
// must hold; a lot at a gain or below either bound is dropped silently.
func MeetsThresholds(lot domain.Lot, minAmount, minPct float64) bool {
	return lot.Unrealized <= -minAmount && lot.LossPct <= -minPct
}

// TaxSavings quantifies the monetary benefit of realizing a loss at the given
// marginal rate. The loss is passed as the (negative) unrealized P/L.
func TaxSavings(unrealizedLoss, taxRate float64) float64 {
	if unrealizedLoss >= 0 {
		return 0
	}
	return -unrealizedLoss * taxRate
}
