package schema

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
)

// Quote is a normalized price tick from the market data boundary. Only the
// latest quote per symbol is retained by the engine.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate checks the quote fields before it enters the engine.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.Symbol) == "" {
		return errs.New("schema/quote", errs.CodeInvalid, errs.WithMessage("quote symbol required"))
	}
	if q.Price.Sign() <= 0 {
		return errs.New("schema/quote", errs.CodeInvalid, errs.WithMessage("quote price must be positive"))
	}
	if q.Timestamp.IsZero() {
		return errs.New("schema/quote", errs.CodeInvalid, errs.WithMessage("quote timestamp required"))
	}
	return nil
}

// QuoteBook retains the latest applied quote per symbol.
type QuoteBook map[string]Quote

// Lookup returns the latest quote for the symbol, if any.
func (b QuoteBook) Lookup(symbol string) (Quote, bool) {
	q, ok := b[symbol]
	return q, ok
}

// Clone returns a copy of the book safe for concurrent readers.
func (b QuoteBook) Clone() QuoteBook {
	if len(b) == 0 {
		return QuoteBook{}
	}
	out := make(QuoteBook, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
