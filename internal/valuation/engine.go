package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/pricing"
	"github.com/alfadesk/riskcore/internal/schema"
)

// Engine composes leg-level values supplied by the pricing collaborator into
// strategy-level valuations.
type Engine struct {
	pricer pricing.Pricer
	clock  func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the valuation clock, used by deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine constructs a valuation engine backed by the given pricer.
func NewEngine(pricer pricing.Pricer, opts ...Option) *Engine {
	e := &Engine{pricer: pricer, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Revalue computes the strategy's unrealized P&L against the supplied quotes.
// A missing quote for any leg symbol marks the valuation stale instead of
// failing; payoff bounds are derived from the setup-time entry premiums.
func (e *Engine) Revalue(strategy schema.Strategy, quotes schema.QuoteBook) (schema.Valuation, error) {
	maxProfit, maxLoss, breakevens, err := Bounds(strategy)
	if err != nil {
		return schema.Valuation{}, err
	}
	valuation := schema.Valuation{
		MaxProfit:  maxProfit,
		MaxLoss:    maxLoss,
		Breakevens: breakevens,
		AsOf:       e.clock().UTC(),
	}

	lot := decimal.NewFromInt(strategy.LotSize)
	pnl := decimal.Zero
	for _, leg := range strategy.Legs {
		quote, ok := quotes.Lookup(leg.Symbol)
		if !ok {
			valuation.Stale = true
			return valuation, errs.New("valuation", errs.CodeUnavailable,
				errs.WithMessage("no quote for leg symbol"),
				errs.WithMetadata(map[string]string{"symbol": leg.Symbol}))
		}
		value, err := e.pricer.LegValue(leg, quote.Price)
		if err != nil {
			valuation.Stale = true
			return valuation, err
		}
		qty := decimal.NewFromInt(leg.Quantity * leg.Side.Sign())
		pnl = pnl.Add(value.Sub(leg.EntryPremium).Mul(qty))
	}
	valuation.PnL = pnl.Mul(lot)
	return valuation, nil
}

// SetupValuation builds the initial cached valuation holding the precomputed
// payoff bounds with no market P&L yet.
func (e *Engine) SetupValuation(strategy schema.Strategy) (schema.Valuation, error) {
	maxProfit, maxLoss, breakevens, err := Bounds(strategy)
	if err != nil {
		return schema.Valuation{}, err
	}
	return schema.Valuation{
		MaxProfit:  maxProfit,
		MaxLoss:    maxLoss,
		Breakevens: breakevens,
		Stale:      true,
		AsOf:       e.clock().UTC(),
	}, nil
}

// Aggregate sums cached valuations across the given ACTIVE strategies into the
// per-strategy snapshot slice and the exact portfolio P&L total. Stale
// valuations are excluded from the total but still listed.
func Aggregate(active []schema.Strategy) ([]schema.StrategySnapshot, decimal.Decimal) {
	strategies := make([]schema.StrategySnapshot, 0, len(active))
	total := decimal.Zero
	for _, s := range active {
		strategies = append(strategies, schema.StrategySnapshot{
			ID:         s.ID,
			Type:       s.Type,
			State:      s.State,
			PnL:        s.Valuation.PnL,
			MaxProfit:  s.Valuation.MaxProfit,
			MaxLoss:    s.Valuation.MaxLoss,
			Breakevens: append([]decimal.Decimal(nil), s.Valuation.Breakevens...),
		})
		if !s.Valuation.Stale {
			total = total.Add(s.Valuation.PnL)
		}
	}
	return strategies, total
}
