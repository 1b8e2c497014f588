package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DayStats is one session's counters.
type DayStats struct {
	Date   time.Time
	Trades int
	PnL    decimal.Decimal
}

// Tracker accumulates per-session trade counts and realized P&L. Counters
// reset automatically when the UTC calendar date rolls over.
type Tracker struct {
	mu    sync.Mutex
	clock func() time.Time
	day   DayStats
}

// NewTracker builds a tracker using the supplied clock, or time.Now when nil.
func NewTracker(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	t := &Tracker{clock: clock}
	t.day.Date = sessionDate(clock())
	return t
}

// RecordTrade counts one fill against the current session.
func (t *Tracker) RecordTrade() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.day.Trades++
}

// AddPnL accumulates realized P&L for the current session.
func (t *Tracker) AddPnL(pnl decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.day.PnL = t.day.PnL.Add(pnl)
}

// Stats returns a copy of the current session counters, applying any pending
// date rollover first.
func (t *Tracker) Stats() DayStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.day
}

// rollover resets the counters when the session date has changed. Callers
// hold the mutex.
func (t *Tracker) rollover() {
	today := sessionDate(t.clock())
	if !today.Equal(t.day.Date) {
		t.day = DayStats{Date: today}
	}
}

func sessionDate(now time.Time) time.Time {
	year, month, day := now.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
