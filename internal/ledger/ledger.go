package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/lifecycle"
	"github.com/alfadesk/riskcore/internal/schema"
)

var two = decimal.NewFromInt(2)

// Ledger is the authoritative arena of strategy records. The outer map is
// guarded by a read/write mutex; each strategy carries its own lock so ticks
// and lifecycle requests for a given id serialize without blocking unrelated
// strategies.
type Ledger struct {
	mu         sync.RWMutex
	strategies map[schema.StrategyID]*entry
	clock      func() time.Time
}

type entry struct {
	mu       sync.Mutex
	strategy schema.Strategy
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock, used by deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New constructs an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		strategies: make(map[schema.StrategyID]*entry),
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Create validates the leg set against the type's shape template and, on
// success, inserts a new DRAFT strategy. The ledger is unchanged on any
// validation failure.
func (l *Ledger) Create(typ schema.StrategyType, legs []schema.Leg, lotSize int64) (schema.Strategy, error) {
	if lotSize <= 0 {
		return schema.Strategy{}, errs.New("ledger", errs.CodeInvalid,
			errs.WithMessage("lot size must be positive"))
	}
	if err := ValidateShape(typ, legs); err != nil {
		return schema.Strategy{}, err
	}
	now := l.clock().UTC()
	strategy := schema.Strategy{
		ID:        schema.NewStrategyID(),
		Type:      typ,
		Legs:      schema.CloneLegs(legs),
		State:     schema.StateDraft,
		LotSize:   lotSize,
		CreatedAt: now,
		UpdatedAt: now,
	}

	l.mu.Lock()
	l.strategies[strategy.ID] = &entry{strategy: strategy}
	l.mu.Unlock()

	return strategy.Clone(), nil
}

// Get returns a copy of the strategy.
func (l *Ledger) Get(id schema.StrategyID) (schema.Strategy, error) {
	e, err := l.lookup(id)
	if err != nil {
		return schema.Strategy{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategy.Clone(), nil
}

// Transition applies a lifecycle event under the strategy's own lock and
// returns the resulting state plus whether the state actually changed (a
// repeated stop reports false). The mutation is all-or-nothing: an illegal
// event leaves the record untouched.
func (l *Ledger) Transition(id schema.StrategyID, event lifecycle.Event) (schema.LifecycleState, bool, error) {
	e, err := l.lookup(id)
	if err != nil {
		return "", false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next, changed, err := lifecycle.Next(e.strategy.State, event)
	if err != nil {
		return e.strategy.State, false, err
	}
	if event == lifecycle.EventSetup {
		if err := ValidateShape(e.strategy.Type, e.strategy.Legs); err != nil {
			return e.strategy.State, false, err
		}
	}
	if changed {
		e.strategy.State = next
		e.strategy.UpdatedAt = l.clock().UTC()
	}
	return next, changed, nil
}

// Mutate runs fn against the strategy record under its exclusive lock. It is
// the single write path shared by fills and valuation updates.
func (l *Ledger) Mutate(id schema.StrategyID, fn func(*schema.Strategy) error) error {
	e, err := l.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(&e.strategy); err != nil {
		return err
	}
	e.strategy.UpdatedAt = l.clock().UTC()
	return nil
}

// ApplyFill records an executed order premium on the addressed leg.
func (l *Ledger) ApplyFill(fill schema.Fill) error {
	return l.Mutate(fill.StrategyID, func(s *schema.Strategy) error {
		if fill.LegIndex < 0 || fill.LegIndex >= len(s.Legs) {
			return errs.New("ledger", errs.CodeInvalid,
				errs.WithMessage("fill addresses a leg outside the strategy"))
		}
		if fill.Premium.Sign() < 0 {
			return errs.New("ledger", errs.CodeInvalid,
				errs.WithMessage("fill premium must not be negative"))
		}
		s.Legs[fill.LegIndex].EntryPremium = fill.Premium
		return nil
	})
}

// SetValuation replaces the cached valuation for the strategy.
func (l *Ledger) SetValuation(id schema.StrategyID, valuation schema.Valuation) error {
	return l.Mutate(id, func(s *schema.Strategy) error {
		s.Valuation = valuation.Clone()
		return nil
	})
}

// ListActive returns copies of all ACTIVE strategies ordered by creation time.
func (l *Ledger) ListActive() []schema.Strategy {
	return l.list(func(s schema.Strategy) bool { return s.State == schema.StateActive })
}

// List returns copies of every strategy ordered by creation time.
func (l *Ledger) List() []schema.Strategy {
	return l.list(func(schema.Strategy) bool { return true })
}

// Len reports the number of strategies in the ledger.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.strategies)
}

func (l *Ledger) list(keep func(schema.Strategy) bool) []schema.Strategy {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.strategies))
	for _, e := range l.strategies {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	out := make([]schema.Strategy, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		s := e.strategy
		if keep(s) {
			out = append(out, s.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (l *Ledger) lookup(id schema.StrategyID) (*entry, error) {
	l.mu.RLock()
	e, ok := l.strategies[id]
	l.mu.RUnlock()
	if !ok {
		return nil, errs.New("ledger", errs.CodeNotFound,
			errs.WithMessage("strategy not found"),
			errs.WithMetadata(map[string]string{"strategy": id.String()}))
	}
	return e, nil
}
