package feed

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/internal/schema"
)

// Synthetic emits a deterministic oscillating price walk per symbol. Used for
// development and tests when no live quote endpoint is available.
type Synthetic struct {
	interval time.Duration
	bases    map[string]decimal.Decimal
	clock    func() time.Time
}

// SyntheticOption adjusts generator construction.
type SyntheticOption func(*Synthetic)

// WithSyntheticClock substitutes the wall clock, letting tests control tick
// timestamps.
func WithSyntheticClock(clock func() time.Time) SyntheticOption {
	return func(s *Synthetic) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSynthetic builds a generator emitting one quote per symbol each
// interval, walking from the given base prices.
func NewSynthetic(interval time.Duration, bases map[string]decimal.Decimal, opts ...SyntheticOption) *Synthetic {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	copied := make(map[string]decimal.Decimal, len(bases))
	for symbol, base := range bases {
		copied[symbol] = base
	}
	s := &Synthetic{interval: interval, bases: copied, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream emits quotes until the context is cancelled. The error channel never
// carries anything but is closed alongside the quote channel.
func (s *Synthetic) Stream(ctx context.Context, symbols []string) (<-chan schema.Quote, <-chan error) {
	quotes := make(chan schema.Quote)
	errCh := make(chan error, 1)

	go func() {
		defer close(quotes)
		defer close(errCh)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		seq := uint64(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			seq++
			now := s.clock().UTC()
			for _, symbol := range symbols {
				quote := schema.Quote{
					Symbol:    symbol,
					Price:     s.priceAt(symbol, seq),
					Timestamp: now,
				}
				select {
				case quotes <- quote:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return quotes, errCh
}

// priceAt oscillates around the base price with a bounded sine amplitude.
func (s *Synthetic) priceAt(symbol string, seq uint64) decimal.Decimal {
	base, ok := s.bases[symbol]
	if !ok {
		base = decimal.NewFromInt(100)
	}
	amplitude := base.InexactFloat64() * 0.0075 * math.Sin(float64(seq%13))
	price := base.Add(decimal.NewFromFloat(amplitude))
	if price.Sign() <= 0 {
		return base
	}
	return price.Round(2)
}

var _ Feed = (*Synthetic)(nil)
var _ Feed = (*WSFeed)(nil)
