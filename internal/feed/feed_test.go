package feed

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSyntheticEmitsEverySymbol(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 15, 0, 0, time.UTC)
	bases := map[string]decimal.Decimal{
		"NIFTY":     decimal.NewFromInt(19500),
		"BANKNIFTY": decimal.NewFromInt(44200),
	}
	gen := NewSynthetic(time.Millisecond, bases,
		WithSyntheticClock(func() time.Time { return now }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quotes, errs := gen.Stream(ctx, []string{"NIFTY", "BANKNIFTY"})

	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		select {
		case q := <-quotes:
			if err := q.Validate(); err != nil {
				t.Fatalf("invalid synthetic quote: %v", err)
			}
			if !q.Timestamp.Equal(now) {
				t.Fatalf("timestamp = %s, want clock time %s", q.Timestamp, now)
			}
			seen[q.Symbol]++
		case err := <-errs:
			t.Fatalf("unexpected feed error: %v", err)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for synthetic quotes")
		}
	}
	if seen["NIFTY"] == 0 || seen["BANKNIFTY"] == 0 {
		t.Fatalf("uneven symbol coverage: %v", seen)
	}
}

func TestSyntheticPricesStayNearBase(t *testing.T) {
	base := decimal.NewFromInt(19500)
	gen := NewSynthetic(time.Millisecond, map[string]decimal.Decimal{"NIFTY": base})

	// Amplitude is bounded at 0.75% of base in either direction.
	band := base.Mul(decimal.NewFromFloat(0.0075))
	for seq := uint64(1); seq <= 26; seq++ {
		price := gen.priceAt("NIFTY", seq)
		if price.Sign() <= 0 {
			t.Fatalf("non-positive price %s at seq %d", price, seq)
		}
		if price.Sub(base).Abs().GreaterThan(band.Add(decimal.NewFromFloat(0.01))) {
			t.Fatalf("price %s at seq %d outside %s band around %s", price, seq, band, base)
		}
	}
}

func TestSyntheticUnknownSymbolFallsBack(t *testing.T) {
	gen := NewSynthetic(time.Millisecond, nil)
	price := gen.priceAt("UNKNOWN", 1)
	if price.Sign() <= 0 {
		t.Fatalf("fallback price %s must be positive", price)
	}
}

func TestSyntheticStreamClosesOnCancel(t *testing.T) {
	gen := NewSynthetic(time.Millisecond, map[string]decimal.Decimal{"NIFTY": decimal.NewFromInt(100)})
	ctx, cancel := context.WithCancel(context.Background())
	quotes, errs := gen.Stream(ctx, []string{"NIFTY"})

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-quotes:
			if !ok {
				select {
				case _, ok := <-errs:
					if ok {
						t.Fatal("error channel carried a value on clean shutdown")
					}
				case <-deadline:
					t.Fatal("error channel not closed after cancel")
				}
				return
			}
		case <-deadline:
			t.Fatal("quote channel not closed after cancel")
		}
	}
}

func TestTickFrameToQuote(t *testing.T) {
	frame := tickFrame{Symbol: "NIFTY", Price: "19512.35", TS: 1787252400000}
	quote, err := frame.toQuote()
	if err != nil {
		t.Fatalf("toQuote: %v", err)
	}
	if quote.Symbol != "NIFTY" {
		t.Fatalf("symbol = %s", quote.Symbol)
	}
	if !quote.Price.Equal(decimal.RequireFromString("19512.35")) {
		t.Fatalf("price = %s, want 19512.35", quote.Price)
	}
	if want := time.UnixMilli(1787252400000).UTC(); !quote.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %s, want %s", quote.Timestamp, want)
	}
}

func TestTickFrameRejectsBadPrice(t *testing.T) {
	for _, price := range []string{"", "not-a-number", "-1"} {
		frame := tickFrame{Symbol: "NIFTY", Price: price, TS: 1787252400000}
		if _, err := frame.toQuote(); err == nil {
			t.Fatalf("price %q accepted", price)
		}
	}
}
