package valuation

import (
	"sync"
	"time"

	"github.com/alfadesk/riskcore/internal/schema"
)

// Book retains the latest applied quote per symbol. A tick is applied only
// when its timestamp is strictly newer than the last applied one for that
// symbol; duplicates and out-of-order ticks are reported as stale and dropped
// by the caller.
type Book struct {
	mu          sync.RWMutex
	quotes      schema.QuoteBook
	lastApplied map[string]time.Time
}

// NewBook constructs an empty quote book.
func NewBook() *Book {
	return &Book{
		quotes:      make(schema.QuoteBook),
		lastApplied: make(map[string]time.Time),
	}
}

// Apply records the quote if it is newer than the last applied tick for its
// symbol. It returns false when the tick is stale.
func (b *Book) Apply(quote schema.Quote) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if last, ok := b.lastApplied[quote.Symbol]; ok && !quote.Timestamp.After(last) {
		return false
	}
	b.quotes[quote.Symbol] = quote
	b.lastApplied[quote.Symbol] = quote.Timestamp
	return true
}

// Lookup returns the latest applied quote for the symbol.
func (b *Book) Lookup(symbol string) (schema.Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[symbol]
	return q, ok
}

// Snapshot returns a copy of the current book for lock-free readers.
func (b *Book) Snapshot() schema.QuoteBook {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.quotes.Clone()
}
