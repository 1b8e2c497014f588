package schema

import (
	"time"

	"github.com/google/uuid"

	"github.com/alfadesk/riskcore/errs"
)

// StrategyType names a supported multi-leg payoff shape.
type StrategyType string

const (
	// StrategyIronCondor is the four-leg neutral credit structure.
	StrategyIronCondor StrategyType = "iron_condor"
	// StrategyButterfly is the three-strike neutral debit structure.
	StrategyButterfly StrategyType = "butterfly"
	// StrategyStraddle is a same-strike call plus put.
	StrategyStraddle StrategyType = "straddle"
	// StrategyStrangle is an out-of-the-money call plus put.
	StrategyStrangle StrategyType = "strangle"
	// StrategyCallSpread is a two-leg vertical call spread.
	StrategyCallSpread StrategyType = "call_spread"
	// StrategyPutSpread is a two-leg vertical put spread.
	StrategyPutSpread StrategyType = "put_spread"
	// StrategyCoveredCall is a short call against long stock.
	StrategyCoveredCall StrategyType = "covered_call"
	// StrategyProtectivePut is a long put against long stock.
	StrategyProtectivePut StrategyType = "protective_put"
)

// Validate ensures the strategy type is one of the supported shapes.
func (t StrategyType) Validate() error {
	switch t {
	case StrategyIronCondor, StrategyButterfly, StrategyStraddle, StrategyStrangle,
		StrategyCallSpread, StrategyPutSpread, StrategyCoveredCall, StrategyProtectivePut:
		return nil
	default:
		return errs.New("schema/strategy-type", errs.CodeInvalid,
			errs.WithMessage("unknown strategy type"))
	}
}

// Profile describes the qualitative characteristics of a strategy type as
// presented to operators.
type Profile struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	MarketOutlook string `json:"marketOutlook"`
	Volatility    string `json:"volatility"`
	TimeDecay     string `json:"timeDecay"`
}

var profiles = map[StrategyType]Profile{
	StrategyIronCondor: {
		Name:          "Iron Condor",
		Description:   "Neutral strategy with limited risk and reward",
		MarketOutlook: "Neutral",
		Volatility:    "Low to Moderate",
		TimeDecay:     "Positive",
	},
	StrategyButterfly: {
		Name:          "Butterfly",
		Description:   "Neutral strategy with maximum profit at center strike",
		MarketOutlook: "Neutral",
		Volatility:    "Low",
		TimeDecay:     "Positive",
	},
	StrategyStraddle: {
		Name:          "Straddle",
		Description:   "Volatility strategy betting on big moves",
		MarketOutlook: "Volatile",
		Volatility:    "High",
		TimeDecay:     "Negative",
	},
	StrategyStrangle: {
		Name:          "Strangle",
		Description:   "Volatility strategy with wider breakeven",
		MarketOutlook: "Volatile",
		Volatility:    "High",
		TimeDecay:     "Negative",
	},
	StrategyCallSpread: {
		Name:          "Call Spread",
		Description:   "Bullish strategy with limited risk",
		MarketOutlook: "Bullish",
		Volatility:    "Any",
		TimeDecay:     "Positive",
	},
	StrategyPutSpread: {
		Name:          "Put Spread",
		Description:   "Bearish strategy with limited risk",
		MarketOutlook: "Bearish",
		Volatility:    "Any",
		TimeDecay:     "Positive",
	},
	StrategyCoveredCall: {
		Name:          "Covered Call",
		Description:   "Income strategy on owned stock",
		MarketOutlook: "Neutral to Bullish",
		Volatility:    "Any",
		TimeDecay:     "Positive",
	},
	StrategyProtectivePut: {
		Name:          "Protective Put",
		Description:   "Insurance strategy for owned stock",
		MarketOutlook: "Bullish with Protection",
		Volatility:    "Any",
		TimeDecay:     "Negative",
	},
}

// Profile returns the operator-facing characteristics for the type.
func (t StrategyType) Profile() Profile {
	return profiles[t]
}

// AllStrategyTypes returns the supported strategy types in stable order.
func AllStrategyTypes() []StrategyType {
	return []StrategyType{
		StrategyIronCondor, StrategyButterfly, StrategyStraddle, StrategyStrangle,
		StrategyCallSpread, StrategyPutSpread, StrategyCoveredCall, StrategyProtectivePut,
	}
}

// LifecycleState is the single lifecycle state held by a strategy.
type LifecycleState string

const (
	// StateDraft is the initial state after creation.
	StateDraft LifecycleState = "DRAFT"
	// StateConfigured marks a strategy with validated setup parameters.
	StateConfigured LifecycleState = "CONFIGURED"
	// StateActive marks a strategy included in revaluation and aggregation.
	StateActive LifecycleState = "ACTIVE"
	// StatePaused marks a strategy whose valuation is frozen.
	StatePaused LifecycleState = "PAUSED"
	// StateStopped is the terminal state.
	StateStopped LifecycleState = "STOPPED"
)

// Terminal reports whether no further transitions are possible.
func (s LifecycleState) Terminal() bool {
	return s == StateStopped
}

// StrategyID identifies a strategy for its whole lifetime.
type StrategyID = uuid.UUID

// NewStrategyID mints a fresh strategy identifier.
func NewStrategyID() StrategyID {
	return uuid.New()
}

// Strategy is a named multi-leg options position. Instances are owned by the
// position ledger; callers only ever observe copies.
type Strategy struct {
	ID        StrategyID     `json:"id"`
	Type      StrategyType   `json:"type"`
	Legs      []Leg          `json:"legs"`
	State     LifecycleState `json:"state"`
	LotSize   int64          `json:"lotSize"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Valuation Valuation      `json:"valuation"`
}

// Symbols returns the distinct underlying symbols referenced by the legs.
func (s Strategy) Symbols() []string {
	seen := make(map[string]struct{}, len(s.Legs))
	out := make([]string, 0, len(s.Legs))
	for _, leg := range s.Legs {
		if _, ok := seen[leg.Symbol]; ok {
			continue
		}
		seen[leg.Symbol] = struct{}{}
		out = append(out, leg.Symbol)
	}
	return out
}

// Clone returns a deep copy safe to hand to readers.
func (s Strategy) Clone() Strategy {
	clone := s
	clone.Legs = CloneLegs(s.Legs)
	clone.Valuation = s.Valuation.Clone()
	return clone
}
