package valuation

import (
	"sync"

	"github.com/alfadesk/riskcore/internal/schema"
)

// Index maps symbols to the strategies that depend on them, so a tick only
// touches strategies with at least one leg on the ticked symbol.
type Index struct {
	mu      sync.RWMutex
	bySym   map[string]map[schema.StrategyID]struct{}
	symbols map[schema.StrategyID][]string
}

// NewIndex constructs an empty dependency index.
func NewIndex() *Index {
	return &Index{
		bySym:   make(map[string]map[schema.StrategyID]struct{}),
		symbols: make(map[schema.StrategyID][]string),
	}
}

// Register records the strategy's symbol dependencies, replacing any previous
// registration for the same id.
func (i *Index) Register(id schema.StrategyID, symbols []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dropLocked(id)
	deduped := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		set, ok := i.bySym[symbol]
		if !ok {
			set = make(map[schema.StrategyID]struct{})
			i.bySym[symbol] = set
		}
		if _, dup := set[id]; dup {
			continue
		}
		set[id] = struct{}{}
		deduped = append(deduped, symbol)
	}
	i.symbols[id] = deduped
}

// Drop removes the strategy from the index.
func (i *Index) Drop(id schema.StrategyID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dropLocked(id)
}

func (i *Index) dropLocked(id schema.StrategyID) {
	for _, symbol := range i.symbols[id] {
		if set, ok := i.bySym[symbol]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(i.bySym, symbol)
			}
		}
	}
	delete(i.symbols, id)
}

// Affected returns the ids of strategies with a leg on the symbol.
func (i *Index) Affected(symbol string) []schema.StrategyID {
	i.mu.RLock()
	defer i.mu.RUnlock()
	set := i.bySym[symbol]
	if len(set) == 0 {
		return nil
	}
	out := make([]schema.StrategyID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
