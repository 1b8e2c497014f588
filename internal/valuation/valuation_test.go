package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/pricing"
	"github.com/alfadesk/riskcore/internal/schema"
)

func condorLeg(option schema.OptionType, side schema.Side, strike, premium int64) schema.Leg {
	return schema.Leg{
		Symbol:       "NIFTY",
		Option:       option,
		Strike:       decimal.NewFromInt(strike),
		Expiry:       time.Date(2026, 9, 24, 0, 0, 0, 0, time.UTC),
		Side:         side,
		Quantity:     1,
		EntryPremium: decimal.NewFromInt(premium),
	}
}

// Net credit 40: shorts collect 25+35, longs pay 10+10.
func ironCondor() schema.Strategy {
	return schema.Strategy{
		ID:      schema.NewStrategyID(),
		Type:    schema.StrategyIronCondor,
		State:   schema.StateActive,
		LotSize: 50,
		Legs: []schema.Leg{
			condorLeg(schema.OptionCall, schema.SideShort, 19600, 25),
			condorLeg(schema.OptionCall, schema.SideLong, 19700, 10),
			condorLeg(schema.OptionPut, schema.SideShort, 19400, 35),
			condorLeg(schema.OptionPut, schema.SideLong, 19300, 10),
		},
	}
}

func quoteAt(price int64, ts time.Time) schema.Quote {
	return schema.Quote{Symbol: "NIFTY", Price: decimal.NewFromInt(price), Timestamp: ts}
}

func TestIronCondorScenario(t *testing.T) {
	engine := NewEngine(pricing.NewIntrinsic())
	strategy := ironCondor()

	book := NewBook()
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if !book.Apply(quoteAt(19500, base)) {
		t.Fatalf("first tick must apply")
	}
	if !book.Apply(quoteAt(19550, base.Add(time.Second))) {
		t.Fatalf("second tick must apply")
	}

	valuation, err := engine.Revalue(strategy, book.Snapshot())
	if err != nil {
		t.Fatalf("revalue: %v", err)
	}

	maxProfit := decimal.NewFromInt(40 * 50)
	maxLoss := decimal.NewFromInt((100 - 40) * 50)
	if !valuation.MaxProfit.Value.Equal(maxProfit) {
		t.Fatalf("expected max profit %s, got %s", maxProfit, valuation.MaxProfit.Value)
	}
	if !valuation.MaxLoss.Value.Equal(maxLoss) {
		t.Fatalf("max loss must stay fixed at %s, got %s", maxLoss, valuation.MaxLoss.Value)
	}
	// Both wings out of the money under the intrinsic proxy: P&L sits at the
	// max-profit bound.
	if !valuation.PnL.Equal(maxProfit) {
		t.Fatalf("expected pnl %s, got %s", maxProfit, valuation.PnL)
	}
	if valuation.Stale {
		t.Fatalf("valuation must not be stale with quotes present")
	}

	wantBreakevens := []int64{19360, 19640}
	if len(valuation.Breakevens) != 2 {
		t.Fatalf("expected 2 breakevens, got %d", len(valuation.Breakevens))
	}
	for i, want := range wantBreakevens {
		if !valuation.Breakevens[i].Equal(decimal.NewFromInt(want)) {
			t.Fatalf("breakeven %d: expected %d, got %s", i, want, valuation.Breakevens[i])
		}
	}
}

func TestStaleTickIgnored(t *testing.T) {
	book := NewBook()
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	if !book.Apply(quoteAt(19550, base.Add(time.Second))) {
		t.Fatalf("t1 must apply")
	}
	// t2 < t1 arrives after t1: it must be dropped.
	if book.Apply(quoteAt(19400, base)) {
		t.Fatalf("stale tick must be rejected")
	}
	// Equal timestamp is also stale.
	if book.Apply(quoteAt(19400, base.Add(time.Second))) {
		t.Fatalf("duplicate timestamp must be rejected")
	}

	quote, ok := book.Lookup("NIFTY")
	if !ok {
		t.Fatalf("quote must be present")
	}
	if !quote.Price.Equal(decimal.NewFromInt(19550)) {
		t.Fatalf("book must reflect only t1, got %s", quote.Price)
	}
}

func TestRevalueMissingQuoteMarksStale(t *testing.T) {
	engine := NewEngine(pricing.NewIntrinsic())
	strategy := ironCondor()

	valuation, err := engine.Revalue(strategy, schema.QuoteBook{})
	if !errs.IsCode(err, errs.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if !valuation.Stale {
		t.Fatalf("valuation must be marked stale on missing quote")
	}
	// Bounds are still present so observers keep the payoff envelope.
	if !valuation.MaxLoss.Value.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("bounds must survive stale valuation")
	}
}

func TestIndexOnlyTouchesDependents(t *testing.T) {
	index := NewIndex()
	condor := ironCondor()
	other := ironCondor()
	for i := range other.Legs {
		other.Legs[i].Symbol = "BANKNIFTY"
	}
	index.Register(condor.ID, condor.Symbols())
	index.Register(other.ID, other.Symbols())

	affected := index.Affected("NIFTY")
	if len(affected) != 1 || affected[0] != condor.ID {
		t.Fatalf("expected only the NIFTY strategy, got %v", affected)
	}
	if got := index.Affected("RELIANCE"); got != nil {
		t.Fatalf("expected no strategies for unreferenced symbol, got %v", got)
	}

	index.Drop(condor.ID)
	if got := index.Affected("NIFTY"); got != nil {
		t.Fatalf("dropped strategy must leave the index, got %v", got)
	}
}

func TestAggregateExactSumExcludesStale(t *testing.T) {
	first := ironCondor()
	first.Valuation = schema.Valuation{PnL: decimal.NewFromInt(1200)}
	second := ironCondor()
	second.Valuation = schema.Valuation{PnL: decimal.NewFromInt(-300)}
	stale := ironCondor()
	stale.Valuation = schema.Valuation{PnL: decimal.NewFromInt(9999), Stale: true}

	strategies, total := Aggregate([]schema.Strategy{first, second, stale})
	if len(strategies) != 3 {
		t.Fatalf("all strategies must be listed, got %d", len(strategies))
	}
	if !total.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("portfolio pnl must be the exact sum of non-stale valuations, got %s", total)
	}
}

func TestStraddleBounds(t *testing.T) {
	strategy := schema.Strategy{
		ID:      schema.NewStrategyID(),
		Type:    schema.StrategyStraddle,
		LotSize: 50,
		Legs: []schema.Leg{
			condorLeg(schema.OptionCall, schema.SideLong, 19500, 120),
			condorLeg(schema.OptionPut, schema.SideLong, 19500, 80),
		},
	}
	maxProfit, maxLoss, breakevens, err := Bounds(strategy)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if !maxProfit.Unbounded {
		t.Fatalf("long straddle profit must be unbounded")
	}
	if !maxLoss.Value.Equal(decimal.NewFromInt(200 * 50)) {
		t.Fatalf("expected max loss 10000, got %s", maxLoss.Value)
	}
	if !breakevens[0].Equal(decimal.NewFromInt(19300)) || !breakevens[1].Equal(decimal.NewFromInt(19700)) {
		t.Fatalf("unexpected breakevens %v", breakevens)
	}
}

func TestPayoffAtExpiry(t *testing.T) {
	strategy := ironCondor()
	// Inside the profit zone the condor keeps the full credit.
	inside := PayoffAt(strategy, decimal.NewFromInt(19500))
	if !inside.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected payoff 2000 inside the zone, got %s", inside)
	}
	// Deep through the call wing the loss is capped.
	beyond := PayoffAt(strategy, decimal.NewFromInt(20000))
	if !beyond.Equal(decimal.NewFromInt(-3000)) {
		t.Fatalf("expected capped loss -3000, got %s", beyond)
	}
}
