package engine

import (
	"sync"
	"time"
)

// throttle admits at most one tick per interval per symbol, coalescing quote
// bursts before they reach revaluation.
type throttle struct {
	interval time.Duration
	clock    func() time.Time
	mu       sync.Mutex
	last     map[string]time.Time
}

func newThrottle(interval time.Duration, clock func() time.Time) *throttle {
	if clock == nil {
		clock = time.Now
	}
	return &throttle{
		interval: interval,
		clock:    clock,
		last:     make(map[string]time.Time),
	}
}

// allow reports whether a tick for the symbol should be processed now.
func (t *throttle) allow(symbol string) bool {
	if t == nil || t.interval <= 0 {
		return true
	}
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[symbol]
	if !ok || now.Sub(last) >= t.interval {
		t.last[symbol] = now
		return true
	}
	return false
}
