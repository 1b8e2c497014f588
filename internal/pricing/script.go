package pricing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/schema"
)

// ScriptPricer evaluates an operator-supplied JavaScript pricing formula. The
// script must define a function `legValue(leg, underlying)` returning a
// number; `leg` carries option, side, strike, quantity, and entryPremium as
// numbers/strings.
//
// A goja runtime is not safe for concurrent use, so calls serialize through a
// single mutex; pricing scripts are expected to be small pure functions.
type ScriptPricer struct {
	mu   sync.Mutex
	rt   *goja.Runtime
	call goja.Callable
}

// NewScriptPricer compiles the source and resolves the legValue export.
func NewScriptPricer(source string) (*ScriptPricer, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errs.New("pricing/script", errs.CodeInvalid,
			errs.WithMessage("pricing script source required"))
	}
	rt := goja.New()
	if _, err := rt.RunString(source); err != nil {
		return nil, errs.New("pricing/script", errs.CodeInvalid,
			errs.WithMessage("pricing script failed to evaluate"),
			errs.WithCause(err))
	}
	value := rt.Get("legValue")
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, errs.New("pricing/script", errs.CodeInvalid,
			errs.WithMessage("pricing script must define legValue(leg, underlying)"))
	}
	call, ok := goja.AssertFunction(value)
	if !ok {
		return nil, errs.New("pricing/script", errs.CodeInvalid,
			errs.WithMessage("legValue must be callable"))
	}
	return &ScriptPricer{rt: rt, call: call}, nil
}

// LegValue implements Pricer by invoking the script function.
func (p *ScriptPricer) LegValue(leg schema.Leg, underlying decimal.Decimal) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	legArg := p.rt.ToValue(map[string]any{
		"symbol":       leg.Symbol,
		"option":       string(leg.Option),
		"side":         string(leg.Side),
		"strike":       leg.Strike.InexactFloat64(),
		"quantity":     leg.Quantity,
		"entryPremium": leg.EntryPremium.InexactFloat64(),
	})
	result, err := p.call(goja.Undefined(), legArg, p.rt.ToValue(underlying.InexactFloat64()))
	if err != nil {
		return decimal.Zero, errs.New("pricing/script", errs.CodeUnavailable,
			errs.WithMessage("pricing script raised"),
			errs.WithCause(err))
	}
	out := result.ToFloat()
	if out != out { // NaN
		return decimal.Zero, errs.New("pricing/script", errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("pricing script returned NaN for %s", leg.Symbol)))
	}
	return decimal.NewFromFloat(out), nil
}
