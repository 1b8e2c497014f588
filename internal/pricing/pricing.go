// Package pricing defines the leg pricing collaborator boundary. The engine
// never computes option values itself; it composes per-leg values supplied by
// a Pricer into strategy-level P&L.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/internal/schema"
)

// Pricer values one leg against the latest quote for its underlying.
type Pricer interface {
	// LegValue returns the current per-unit value of the leg given the
	// underlying price.
	LegValue(leg schema.Leg, underlying decimal.Decimal) (decimal.Decimal, error)
}

// Intrinsic is the built-in pricing proxy: option legs are valued at intrinsic
// value, stock legs at the underlying price.
type Intrinsic struct{}

// NewIntrinsic constructs the built-in pricer.
func NewIntrinsic() Intrinsic {
	return Intrinsic{}
}

// LegValue implements Pricer.
func (Intrinsic) LegValue(leg schema.Leg, underlying decimal.Decimal) (decimal.Decimal, error) {
	switch leg.Option {
	case schema.OptionCall:
		if underlying.GreaterThan(leg.Strike) {
			return underlying.Sub(leg.Strike), nil
		}
		return decimal.Zero, nil
	case schema.OptionPut:
		if underlying.LessThan(leg.Strike) {
			return leg.Strike.Sub(underlying), nil
		}
		return decimal.Zero, nil
	default:
		return underlying, nil
	}
}
