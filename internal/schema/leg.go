// Package schema defines the canonical domain types shared across the engine.
package schema

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
)

// OptionType identifies the contract kind held by a leg.
type OptionType string

const (
	// OptionCall is a call option contract.
	OptionCall OptionType = "call"
	// OptionPut is a put option contract.
	OptionPut OptionType = "put"
	// OptionStock marks an underlying stock leg used by covered positions.
	OptionStock OptionType = "stock"
)

// Validate ensures the option type is one of the supported kinds.
func (o OptionType) Validate() error {
	switch o {
	case OptionCall, OptionPut, OptionStock:
		return nil
	default:
		return errs.New("schema/option-type", errs.CodeInvalid,
			errs.WithMessage("option type must be call, put, or stock"))
	}
}

// Side identifies the direction of a leg.
type Side string

const (
	// SideLong marks a bought leg.
	SideLong Side = "long"
	// SideShort marks a sold leg.
	SideShort Side = "short"
)

// Validate ensures the side is long or short.
func (s Side) Validate() error {
	switch s {
	case SideLong, SideShort:
		return nil
	default:
		return errs.New("schema/side", errs.CodeInvalid,
			errs.WithMessage("side must be long or short"))
	}
}

// Sign returns +1 for long legs and -1 for short legs.
func (s Side) Sign() int64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Leg is one option contract within a multi-leg strategy. A leg is immutable
// once its entry premium has been filled; it is owned exclusively by its
// strategy and mutated only through the ledger.
type Leg struct {
	Symbol       string          `json:"symbol"`
	Option       OptionType      `json:"option"`
	Strike       decimal.Decimal `json:"strike"`
	Expiry       time.Time       `json:"expiry"`
	Side         Side            `json:"side"`
	Quantity     int64           `json:"quantity"`
	EntryPremium decimal.Decimal `json:"entryPremium"`
}

// Validate checks the structural fields of a single leg.
func (l Leg) Validate() error {
	if strings.TrimSpace(l.Symbol) == "" {
		return errs.New("schema/leg", errs.CodeInvalid, errs.WithMessage("leg symbol required"))
	}
	if err := l.Option.Validate(); err != nil {
		return err
	}
	if err := l.Side.Validate(); err != nil {
		return err
	}
	if l.Quantity <= 0 {
		return errs.New("schema/leg", errs.CodeInvalid, errs.WithMessage("leg quantity must be positive"))
	}
	if l.Option != OptionStock && l.Strike.Sign() <= 0 {
		return errs.New("schema/leg", errs.CodeInvalid, errs.WithMessage("option leg strike must be positive"))
	}
	if l.EntryPremium.Sign() < 0 {
		return errs.New("schema/leg", errs.CodeInvalid, errs.WithMessage("entry premium must not be negative"))
	}
	return nil
}

// Clone returns a copy of the leg slice; decimal values are immutable so a
// shallow element copy suffices.
func CloneLegs(legs []Leg) []Leg {
	if len(legs) == 0 {
		return nil
	}
	out := make([]Leg, len(legs))
	copy(out, legs)
	return out
}
