// Package ledger owns the authoritative set of strategies and their legs.
package ledger

import (
	"fmt"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/schema"
)

// legSpec pins the option type and side required at one template position.
type legSpec struct {
	option schema.OptionType
	side   schema.Side
}

// shapeTemplate is the fixed per-type leg template: leg count, side pattern,
// and a relative strike ordering check.
type shapeTemplate struct {
	legs    []legSpec
	ordered func(legs []schema.Leg) error
}

func shapeErr(format string, args ...any) error {
	return errs.New("ledger/shape", errs.CodeInvalidShape,
		errs.WithMessage(fmt.Sprintf(format, args...)))
}

// Template positions are fixed: callers must supply legs in template order so
// the ordering checks can address them by index.
var shapeTemplates = map[schema.StrategyType]shapeTemplate{
	schema.StrategyIronCondor: {
		legs: []legSpec{
			{schema.OptionCall, schema.SideShort},
			{schema.OptionCall, schema.SideLong},
			{schema.OptionPut, schema.SideShort},
			{schema.OptionPut, schema.SideLong},
		},
		ordered: func(legs []schema.Leg) error {
			shortCall, longCall, shortPut, longPut := legs[0], legs[1], legs[2], legs[3]
			if !shortCall.Strike.LessThan(longCall.Strike) {
				return shapeErr("iron condor requires short call strike %s < long call strike %s",
					shortCall.Strike, longCall.Strike)
			}
			if !shortPut.Strike.GreaterThan(longPut.Strike) {
				return shapeErr("iron condor requires short put strike %s > long put strike %s",
					shortPut.Strike, longPut.Strike)
			}
			if !shortPut.Strike.LessThan(shortCall.Strike) {
				return shapeErr("iron condor requires short put strike %s < short call strike %s",
					shortPut.Strike, shortCall.Strike)
			}
			return nil
		},
	},
	schema.StrategyButterfly: {
		legs: []legSpec{
			{schema.OptionCall, schema.SideLong},
			{schema.OptionCall, schema.SideShort},
			{schema.OptionCall, schema.SideLong},
		},
		ordered: func(legs []schema.Leg) error {
			lower, body, upper := legs[0], legs[1], legs[2]
			if !lower.Strike.LessThan(body.Strike) || !body.Strike.LessThan(upper.Strike) {
				return shapeErr("butterfly requires ascending strikes %s < %s < %s",
					lower.Strike, body.Strike, upper.Strike)
			}
			if !lower.Strike.Add(upper.Strike).Equal(body.Strike.Mul(two)) {
				return shapeErr("butterfly wings must be equidistant from body strike %s", body.Strike)
			}
			if body.Quantity != lower.Quantity+upper.Quantity {
				return shapeErr("butterfly body quantity must equal the summed wing quantity")
			}
			return nil
		},
	},
	schema.StrategyStraddle: {
		legs: []legSpec{
			{schema.OptionCall, schema.SideLong},
			{schema.OptionPut, schema.SideLong},
		},
		ordered: func(legs []schema.Leg) error {
			call, put := legs[0], legs[1]
			if !call.Strike.Equal(put.Strike) {
				return shapeErr("straddle requires matching strikes, got call %s put %s",
					call.Strike, put.Strike)
			}
			return nil
		},
	},
	schema.StrategyStrangle: {
		legs: []legSpec{
			{schema.OptionCall, schema.SideLong},
			{schema.OptionPut, schema.SideLong},
		},
		ordered: func(legs []schema.Leg) error {
			call, put := legs[0], legs[1]
			if !call.Strike.GreaterThan(put.Strike) {
				return shapeErr("strangle requires call strike %s > put strike %s",
					call.Strike, put.Strike)
			}
			return nil
		},
	},
	schema.StrategyCallSpread: {
		legs: []legSpec{
			{schema.OptionCall, schema.SideLong},
			{schema.OptionCall, schema.SideShort},
		},
		ordered: func(legs []schema.Leg) error {
			if legs[0].Strike.Equal(legs[1].Strike) {
				return shapeErr("call spread legs must have distinct strikes")
			}
			return nil
		},
	},
	schema.StrategyPutSpread: {
		legs: []legSpec{
			{schema.OptionPut, schema.SideLong},
			{schema.OptionPut, schema.SideShort},
		},
		ordered: func(legs []schema.Leg) error {
			if legs[0].Strike.Equal(legs[1].Strike) {
				return shapeErr("put spread legs must have distinct strikes")
			}
			return nil
		},
	},
	schema.StrategyCoveredCall: {
		legs: []legSpec{
			{schema.OptionStock, schema.SideLong},
			{schema.OptionCall, schema.SideShort},
		},
		ordered: func([]schema.Leg) error { return nil },
	},
	schema.StrategyProtectivePut: {
		legs: []legSpec{
			{schema.OptionStock, schema.SideLong},
			{schema.OptionPut, schema.SideLong},
		},
		ordered: func([]schema.Leg) error { return nil },
	},
}

// ValidateShape checks a leg set against the declared type's template: leg
// count, per-position option type and side, individual leg fields, single
// underlying, and relative strike ordering.
func ValidateShape(typ schema.StrategyType, legs []schema.Leg) error {
	if err := typ.Validate(); err != nil {
		return err
	}
	template, ok := shapeTemplates[typ]
	if !ok {
		return shapeErr("no template for strategy type %s", typ)
	}
	if len(legs) != len(template.legs) {
		return shapeErr("%s requires exactly %d legs, got %d", typ, len(template.legs), len(legs))
	}
	underlying := ""
	for i, leg := range legs {
		if err := leg.Validate(); err != nil {
			return err
		}
		spec := template.legs[i]
		if leg.Option != spec.option {
			return shapeErr("%s leg %d must be a %s, got %s", typ, i, spec.option, leg.Option)
		}
		if leg.Side != spec.side {
			return shapeErr("%s leg %d must be %s, got %s", typ, i, spec.side, leg.Side)
		}
		if underlying == "" {
			underlying = leg.Symbol
		} else if leg.Symbol != underlying {
			return shapeErr("%s legs must share one underlying, got %s and %s",
				typ, underlying, leg.Symbol)
		}
	}
	return template.ordered(legs)
}
