// Package alert computes position PnL and decides when take-profit and
// stop-loss notifications fire.
package alert

import (
	"math"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// PnL is the profit-and-loss snapshot of a position at its effective
// price.
type PnL struct {
	// Percent is the relative PnL in percent. NaN when EntryPrice is
	// zero.
	Percent float64
	// Absolute is (effective - entry) * quantity, in dollars.
	Absolute float64
	// EffectivePrice is the current price when known, otherwise the
	// entry price.
	EffectivePrice float64
}

// ComputePnL derives PnL for a position. Before the first successful
// price fetch the effective price equals the entry price, so both PnL
// figures are zero.
func ComputePnL(p domain.Position) PnL {
	eff := p.EntryPrice
	if p.CurrentPrice != nil {
		eff = *p.CurrentPrice
	}
	pct := math.NaN()
	if p.EntryPrice != 0 {
		pct = (eff - p.EntryPrice) / p.EntryPrice * 100
	}
	return PnL{
		Percent:        pct,
		Absolute:       (eff - p.EntryPrice) * p.Quantity,
		EffectivePrice: eff,
	}
}
