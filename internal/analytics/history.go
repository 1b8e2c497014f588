package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/internal/schema"
)

// DailyPnL is one realized session result in the history series.
type DailyPnL struct {
	Date time.Time
	PnL  decimal.Decimal
}

// CompletedTrade records a stopped strategy's final P&L for win-rate tracking.
type CompletedTrade struct {
	StrategyID schema.StrategyID
	Type       schema.StrategyType
	PnL        decimal.Decimal
	ClosedAt   time.Time
}

// HistoryStore persists the daily P&L series and completed trades that feed
// the portfolio statistics.
type HistoryStore interface {
	UpsertDaily(ctx context.Context, day DailyPnL) error
	Series(ctx context.Context, window int) ([]DailyPnL, error)
	RecordTrade(ctx context.Context, trade CompletedTrade) error
	TradeCounts(ctx context.Context) (wins, completed int, err error)
}

// MemoryHistory is the in-memory HistoryStore used by default and in tests.
type MemoryHistory struct {
	mu     sync.RWMutex
	days   map[string]DailyPnL
	trades []CompletedTrade
}

// NewMemoryHistory constructs an empty in-memory history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{days: make(map[string]DailyPnL)}
}

// UpsertDaily records or replaces a session result keyed by calendar date.
func (m *MemoryHistory) UpsertDaily(_ context.Context, day DailyPnL) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := day.Date.UTC().Format("2006-01-02")
	day.Date = day.Date.UTC().Truncate(24 * time.Hour)
	m.days[key] = day
	return nil
}

// Series returns the trailing window of daily results, oldest first.
func (m *MemoryHistory) Series(_ context.Context, window int) ([]DailyPnL, error) {
	m.mu.RLock()
	out := make([]DailyPnL, 0, len(m.days))
	for _, d := range m.days {
		out = append(out, d)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if window > 0 && len(out) > window {
		out = out[len(out)-window:]
	}
	return out, nil
}

// RecordTrade appends a completed trade.
func (m *MemoryHistory) RecordTrade(_ context.Context, trade CompletedTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trade)
	return nil
}

// TradeCounts reports winners and total completed trades.
func (m *MemoryHistory) TradeCounts(_ context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wins := 0
	for _, t := range m.trades {
		if t.PnL.Sign() > 0 {
			wins++
		}
	}
	return wins, len(m.trades), nil
}
