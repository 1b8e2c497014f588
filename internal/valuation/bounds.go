// Package valuation computes per-strategy and portfolio-level valuations from
// ledger snapshots and the latest applied quotes.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/schema"
)

// netPremium returns the signed premium collected per lot unit: short legs
// collect premium, long legs pay it. Positive means a net credit structure.
func netPremium(legs []schema.Leg) decimal.Decimal {
	total := decimal.Zero
	for _, leg := range legs {
		contribution := leg.EntryPremium.Mul(decimal.NewFromInt(leg.Quantity))
		if leg.Side == schema.SideLong {
			total = total.Sub(contribution)
		} else {
			total = total.Add(contribution)
		}
	}
	return total
}

// Bounds precomputes the max-profit and max-loss bounds plus breakeven points
// for the strategy's payoff structure, scaled by lot size. Entry premiums must
// be populated (post-fill) for the numbers to be meaningful.
func Bounds(strategy schema.Strategy) (maxProfit, maxLoss schema.Bound, breakevens []decimal.Decimal, err error) {
	lot := decimal.NewFromInt(strategy.LotSize)
	net := netPremium(strategy.Legs)
	legs := strategy.Legs

	switch strategy.Type {
	case schema.StrategyIronCondor:
		shortCall, longCall, shortPut, longPut := legs[0], legs[1], legs[2], legs[3]
		credit := net
		callWing := longCall.Strike.Sub(shortCall.Strike)
		putWing := shortPut.Strike.Sub(longPut.Strike)
		narrow := callWing
		if putWing.LessThan(narrow) {
			narrow = putWing
		}
		maxProfit = schema.Bounded(credit.Mul(lot))
		maxLoss = schema.Bounded(narrow.Sub(credit).Mul(lot))
		breakevens = []decimal.Decimal{
			shortPut.Strike.Sub(credit),
			shortCall.Strike.Add(credit),
		}

	case schema.StrategyButterfly:
		lower, body, upper := legs[0], legs[1], legs[2]
		debit := net.Neg()
		wing := body.Strike.Sub(lower.Strike)
		maxProfit = schema.Bounded(wing.Sub(debit).Mul(lot))
		maxLoss = schema.Bounded(debit.Mul(lot))
		breakevens = []decimal.Decimal{
			lower.Strike.Add(debit),
			upper.Strike.Sub(debit),
		}

	case schema.StrategyStraddle:
		call := legs[0]
		debit := net.Neg()
		maxProfit = schema.Unbounded()
		maxLoss = schema.Bounded(debit.Mul(lot))
		breakevens = []decimal.Decimal{
			call.Strike.Sub(debit),
			call.Strike.Add(debit),
		}

	case schema.StrategyStrangle:
		call, put := legs[0], legs[1]
		debit := net.Neg()
		maxProfit = schema.Unbounded()
		maxLoss = schema.Bounded(debit.Mul(lot))
		breakevens = []decimal.Decimal{
			put.Strike.Sub(debit),
			call.Strike.Add(debit),
		}

	case schema.StrategyCallSpread:
		lowStrike, width := spreadShape(legs)
		if net.Sign() < 0 {
			debit := net.Neg()
			maxProfit = schema.Bounded(width.Sub(debit).Mul(lot))
			maxLoss = schema.Bounded(debit.Mul(lot))
			breakevens = []decimal.Decimal{lowStrike.Add(debit)}
		} else {
			maxProfit = schema.Bounded(net.Mul(lot))
			maxLoss = schema.Bounded(width.Sub(net).Mul(lot))
			breakevens = []decimal.Decimal{lowStrike.Add(net)}
		}

	case schema.StrategyPutSpread:
		lowStrike, width := spreadShape(legs)
		highStrike := lowStrike.Add(width)
		if net.Sign() < 0 {
			debit := net.Neg()
			maxProfit = schema.Bounded(width.Sub(debit).Mul(lot))
			maxLoss = schema.Bounded(debit.Mul(lot))
			breakevens = []decimal.Decimal{highStrike.Sub(debit)}
		} else {
			maxProfit = schema.Bounded(net.Mul(lot))
			maxLoss = schema.Bounded(width.Sub(net).Mul(lot))
			breakevens = []decimal.Decimal{highStrike.Sub(net)}
		}

	case schema.StrategyCoveredCall:
		stock, call := legs[0], legs[1]
		entry := stock.EntryPremium
		premium := call.EntryPremium
		maxProfit = schema.Bounded(call.Strike.Sub(entry).Add(premium).Mul(lot))
		maxLoss = schema.Bounded(entry.Sub(premium).Mul(lot))
		breakevens = []decimal.Decimal{entry.Sub(premium)}

	case schema.StrategyProtectivePut:
		stock, put := legs[0], legs[1]
		entry := stock.EntryPremium
		premium := put.EntryPremium
		maxProfit = schema.Unbounded()
		maxLoss = schema.Bounded(entry.Sub(put.Strike).Add(premium).Mul(lot))
		breakevens = []decimal.Decimal{entry.Add(premium)}

	default:
		return schema.Bound{}, schema.Bound{}, nil,
			errs.New("valuation/bounds", errs.CodeInvalid,
				errs.WithMessage("no payoff structure for strategy type"))
	}
	return maxProfit, maxLoss, breakevens, nil
}

// spreadShape returns the lower strike and width of a two-leg vertical spread.
func spreadShape(legs []schema.Leg) (low, width decimal.Decimal) {
	a, b := legs[0].Strike, legs[1].Strike
	if a.LessThan(b) {
		return a, b.Sub(a)
	}
	return b, a.Sub(b)
}

// PayoffAt evaluates the strategy payoff at expiry for the given underlying
// price, net of entry premiums and scaled by lot size.
func PayoffAt(strategy schema.Strategy, price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, leg := range strategy.Legs {
		var value decimal.Decimal
		switch leg.Option {
		case schema.OptionCall:
			if price.GreaterThan(leg.Strike) {
				value = price.Sub(leg.Strike)
			}
		case schema.OptionPut:
			if price.LessThan(leg.Strike) {
				value = leg.Strike.Sub(price)
			}
		default:
			value = price
		}
		qty := decimal.NewFromInt(leg.Quantity * leg.Side.Sign())
		total = total.Add(value.Sub(leg.EntryPremium).Mul(qty))
	}
	return total.Mul(decimal.NewFromInt(strategy.LotSize))
}
