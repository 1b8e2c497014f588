package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/observability"
	"github.com/alfadesk/riskcore/internal/schema"
)

const fillBuffer = 128

// Simulated is an in-process broker that fills orders at their leg's entry
// premium after a configurable delay. Order submission is throttled.
type Simulated struct {
	limiter *rate.Limiter
	delay   time.Duration
	clock   func() time.Time

	mu     sync.Mutex
	orders map[schema.OrderID]*simOrder
	fills  chan schema.Fill
	closed bool
}

type simOrder struct {
	req   schema.OrderRequest
	state schema.OrderState
	timer *time.Timer
}

// SimOption adjusts simulated broker construction.
type SimOption func(*Simulated)

// WithThrottle bounds order submissions per second.
func WithThrottle(perSecond float64) SimOption {
	return func(s *Simulated) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithFillDelay sets how long an order stays pending before filling. Zero
// fills immediately.
func WithFillDelay(d time.Duration) SimOption {
	return func(s *Simulated) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithSimClock substitutes the wall clock used for fill timestamps.
func WithSimClock(clock func() time.Time) SimOption {
	return func(s *Simulated) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSimulated builds a simulated broker.
func NewSimulated(opts ...SimOption) *Simulated {
	s := &Simulated{
		clock:  time.Now,
		orders: make(map[schema.OrderID]*simOrder),
		fills:  make(chan schema.Fill, fillBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder accepts the request, waits out the throttle, and schedules a
// fill at the leg's entry premium.
func (s *Simulated) PlaceOrder(ctx context.Context, req schema.OrderRequest) (schema.OrderID, error) {
	if err := req.Leg.Validate(); err != nil {
		return schema.OrderID{}, errs.New("broker", errs.CodeInvalid,
			errs.WithMessage("order leg invalid"), errs.WithCause(err))
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return schema.OrderID{}, errs.New("broker", errs.CodeRejected,
				errs.WithMessage("order throttle wait interrupted"), errs.WithCause(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schema.OrderID{}, errs.New("broker", errs.CodeUnavailable, errs.WithMessage("broker closed"))
	}

	id := uuid.New()
	order := &simOrder{req: req, state: schema.OrderPending}
	s.orders[id] = order

	if s.delay <= 0 {
		s.fill(id, order)
		return id, nil
	}
	order.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if pending, ok := s.orders[id]; ok && pending.state == schema.OrderPending && !s.closed {
			s.fill(id, pending)
		}
	})
	return id, nil
}

// fill marks the order filled and delivers it. Callers hold s.mu.
func (s *Simulated) fill(id schema.OrderID, order *simOrder) {
	order.state = schema.OrderFilled
	f := schema.Fill{
		OrderID:    id,
		StrategyID: order.req.StrategyID,
		LegIndex:   order.req.LegIndex,
		Premium:    order.req.Leg.EntryPremium,
		FilledAt:   s.clock().UTC(),
	}
	select {
	case s.fills <- f:
	default:
		observability.Log(observability.Event{
			Component: "broker",
			Level:     observability.LevelError,
			Message:   "fill buffer full, dropping fill",
			Fields:    map[string]any{"order": id.String()},
		})
	}
}

// CancelOrder cancels a pending order. Cancelling a filled order is a
// conflict; an unknown id is not found.
func (s *Simulated) CancelOrder(_ context.Context, id schema.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return errs.New("broker", errs.CodeNotFound, errs.WithMessage("unknown order"))
	}
	switch order.state {
	case schema.OrderPending:
		if order.timer != nil {
			order.timer.Stop()
		}
		order.state = schema.OrderCancelled
		return nil
	case schema.OrderCancelled:
		return nil
	default:
		return errs.New("broker", errs.CodeConflict,
			errs.WithMessage("order already "+string(order.state)))
	}
}

// OrderState reports the current state of an order.
func (s *Simulated) OrderState(id schema.OrderID) (schema.OrderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return "", errs.New("broker", errs.CodeNotFound, errs.WithMessage("unknown order"))
	}
	return order.state, nil
}

// Fills returns the fill delivery channel.
func (s *Simulated) Fills() <-chan schema.Fill {
	return s.fills
}

// Close stops pending timers and closes the fill channel.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, order := range s.orders {
		if order.timer != nil {
			order.timer.Stop()
		}
	}
	close(s.fills)
	return nil
}

var _ Broker = (*Simulated)(nil)
