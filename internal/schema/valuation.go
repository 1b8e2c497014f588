package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bound is a payoff bound that may be unbounded (e.g. long straddle profit).
type Bound struct {
	Value     decimal.Decimal `json:"value"`
	Unbounded bool            `json:"unbounded,omitempty"`
}

// Bounded wraps a finite payoff bound.
func Bounded(v decimal.Decimal) Bound {
	return Bound{Value: v}
}

// Unbounded marks a payoff bound without a finite limit.
func Unbounded() Bound {
	return Bound{Unbounded: true}
}

// Valuation is the cached result of revaluing a strategy against the latest
// quotes. A stale valuation is excluded from portfolio aggregation.
type Valuation struct {
	PnL        decimal.Decimal   `json:"pnl"`
	MaxProfit  Bound             `json:"maxProfit"`
	MaxLoss    Bound             `json:"maxLoss"`
	Breakevens []decimal.Decimal `json:"breakevens"`
	Stale      bool              `json:"stale,omitempty"`
	AsOf       time.Time         `json:"asOf"`
}

// Clone returns a deep copy of the valuation.
func (v Valuation) Clone() Valuation {
	clone := v
	if len(v.Breakevens) > 0 {
		clone.Breakevens = make([]decimal.Decimal, len(v.Breakevens))
		copy(clone.Breakevens, v.Breakevens)
	}
	return clone
}
