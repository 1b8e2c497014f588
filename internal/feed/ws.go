package feed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/observability"
	"github.com/alfadesk/riskcore/internal/schema"
)

// WSFeed consumes a quote websocket with automatic reconnection and
// exponential backoff. Subscriptions are replayed after every reconnect.
type WSFeed struct {
	baseURL string
	clock   func() time.Time

	msgIDGen atomic.Uint64
}

// NewWSFeed builds a websocket feed against the given endpoint.
func NewWSFeed(baseURL string) *WSFeed {
	return &WSFeed{baseURL: baseURL, clock: time.Now}
}

type subscribeRequest struct {
	Method  string   `json:"method"`
	Symbols []string `json:"symbols"`
	ID      uint64   `json:"id"`
}

type tickFrame struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	TS     int64  `json:"ts"`
}

// Stream dials the endpoint, subscribes to the symbols, and emits quotes
// until the context is cancelled. Dial failures are retried with exponential
// backoff and reported on the error channel.
func (f *WSFeed) Stream(ctx context.Context, symbols []string) (<-chan schema.Quote, <-chan error) {
	quotes := make(chan schema.Quote)
	errCh := make(chan error, 4)

	go func() {
		defer close(quotes)
		defer close(errCh)
		f.run(ctx, symbols, quotes, errCh)
	}()

	return quotes, errCh
}

func (f *WSFeed) run(ctx context.Context, symbols []string, quotes chan<- schema.Quote, errCh chan<- error) {
	backoffCfg := backoff.NewExponentialBackOff()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.Dial(ctx, f.baseURL, nil)
		if err != nil {
			reportErr(errCh, errs.New("feed", errs.CodeNetwork,
				errs.WithMessage("dial "+f.baseURL),
				errs.WithCause(err)))
			if !sleepBackoff(ctx, backoffCfg.NextBackOff()) {
				return
			}
			continue
		}

		if err := f.subscribe(ctx, conn, symbols); err != nil {
			reportErr(errCh, fmt.Errorf("subscribe: %w", err))
			_ = conn.Close(websocket.StatusPolicyViolation, "subscribe failed")
			if !sleepBackoff(ctx, backoffCfg.NextBackOff()) {
				return
			}
			continue
		}

		backoffCfg.Reset()
		observability.Log(observability.Event{
			Component: "feed",
			Message:   "quote stream connected",
			Fields:    map[string]any{"endpoint": f.baseURL, "symbols": len(symbols)},
		})

		err = f.readLoop(ctx, conn, quotes, errCh)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
			return
		}
		if err != nil {
			reportErr(errCh, fmt.Errorf("read loop: %w", err))
		}

		if !sleepBackoff(ctx, backoffCfg.NextBackOff()) {
			return
		}
	}
}

func (f *WSFeed) subscribe(ctx context.Context, conn *websocket.Conn, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	req := subscribeRequest{
		Method:  "SUBSCRIBE",
		Symbols: symbols,
		ID:      f.msgIDGen.Add(1),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal subscribe request: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (f *WSFeed) readLoop(ctx context.Context, conn *websocket.Conn, quotes chan<- schema.Quote, errCh chan<- error) error {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var frame tickFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			reportErr(errCh, fmt.Errorf("decode tick frame: %w", err))
			continue
		}
		quote, err := frame.toQuote()
		if err != nil {
			reportErr(errCh, err)
			continue
		}

		select {
		case quotes <- quote:
		case <-ctx.Done():
			return context.Canceled
		}
	}
}

func (t tickFrame) toQuote() (schema.Quote, error) {
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return schema.Quote{}, fmt.Errorf("tick price %q: %w", t.Price, err)
	}
	quote := schema.Quote{
		Symbol:    t.Symbol,
		Price:     price,
		Timestamp: time.UnixMilli(t.TS).UTC(),
	}
	if err := quote.Validate(); err != nil {
		return schema.Quote{}, err
	}
	return quote, nil
}

func reportErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

func sleepBackoff(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
