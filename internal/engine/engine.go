// Package engine conducts the full pipeline: quotes in, per-strategy
// revaluation, limit evaluation, snapshot broadcast out. Lifecycle requests
// and ticks share the per-strategy write path, so the two never race on one
// strategy record.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/analytics"
	"github.com/alfadesk/riskcore/internal/broadcast"
	"github.com/alfadesk/riskcore/internal/broker"
	"github.com/alfadesk/riskcore/internal/feed"
	"github.com/alfadesk/riskcore/internal/ledger"
	"github.com/alfadesk/riskcore/internal/lifecycle"
	"github.com/alfadesk/riskcore/internal/observability"
	"github.com/alfadesk/riskcore/internal/risk"
	"github.com/alfadesk/riskcore/internal/schema"
	"github.com/alfadesk/riskcore/internal/valuation"
	"github.com/alfadesk/riskcore/lib/async"
)

// Deps wires the engine's collaborators. Ledger, Valuer, Limits, History,
// and Broadcaster are required.
type Deps struct {
	Ledger      *ledger.Ledger
	Valuer      *valuation.Engine
	History     analytics.HistoryStore
	Limits      LimitsSource
	Broadcaster *broadcast.Broadcaster
	Broker      broker.Broker

	Analytics    analytics.Params
	Workers      int
	QueueDepth   int
	TickThrottle time.Duration
	Clock        func() time.Time
}

// LimitsSource hands the engine the risk limits currently in force.
type LimitsSource interface {
	Current() risk.Limits
}

// Engine owns the tick pipeline and the strategy lifecycle operations.
type Engine struct {
	ledger  *ledger.Ledger
	valuer  *valuation.Engine
	book    *valuation.Book
	index   *valuation.Index
	history analytics.HistoryStore
	params  analytics.Params
	limits  LimitsSource
	tracker *risk.Tracker
	bcast   *broadcast.Broadcaster
	broker  broker.Broker
	pool    *async.Pool
	gate    *throttle
	clock   func() time.Time

	// dirty coalesces snapshot publication requests.
	dirty chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       conc.WaitGroup
}

// New validates the dependencies and assembles an engine.
func New(deps Deps) (*Engine, error) {
	if deps.Ledger == nil || deps.Valuer == nil || deps.History == nil ||
		deps.Limits == nil || deps.Broadcaster == nil {
		return nil, errs.New("engine", errs.CodeInvalid,
			errs.WithMessage("ledger, valuer, history, limits, and broadcaster are required"))
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = 4
	}
	queue := deps.QueueDepth
	if queue <= 0 {
		queue = 256
	}
	pool, err := async.NewPool(workers, queue)
	if err != nil {
		return nil, err
	}
	params := deps.Analytics
	if params.Confidence <= 0 || params.Confidence >= 1 {
		params.Confidence = analytics.DefaultParams().Confidence
	}
	if params.WindowDays <= 0 {
		params.WindowDays = analytics.DefaultParams().WindowDays
	}
	return &Engine{
		ledger:  deps.Ledger,
		valuer:  deps.Valuer,
		book:    valuation.NewBook(),
		index:   valuation.NewIndex(),
		history: deps.History,
		params:  params,
		limits:  deps.Limits,
		tracker: risk.NewTracker(clock),
		bcast:   deps.Broadcaster,
		broker:  deps.Broker,
		pool:    pool,
		gate:    newThrottle(deps.TickThrottle, clock),
		clock:   clock,
		dirty:   make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}, nil
}

// CreateStrategy records a new draft strategy.
func (e *Engine) CreateStrategy(typ schema.StrategyType, legs []schema.Leg, lotSize int64) (schema.Strategy, error) {
	return e.ledger.Create(typ, legs, lotSize)
}

// Setup validates the strategy shape, caches its payoff bounds, and moves it
// to CONFIGURED.
func (e *Engine) Setup(id schema.StrategyID) (schema.LifecycleState, error) {
	state, _, err := e.ledger.Transition(id, lifecycle.EventSetup)
	if err != nil {
		return state, err
	}
	err = e.ledger.Mutate(id, func(s *schema.Strategy) error {
		v, err := e.valuer.SetupValuation(*s)
		if err != nil {
			return err
		}
		s.Valuation = v
		return nil
	})
	if err != nil {
		return state, err
	}
	e.markDirty()
	return state, nil
}

// Start activates the strategy, registers its symbol dependencies, and
// revalues it immediately against the current book.
func (e *Engine) Start(id schema.StrategyID) (schema.LifecycleState, error) {
	state, _, err := e.ledger.Transition(id, lifecycle.EventStart)
	if err != nil {
		return state, err
	}
	strategy, err := e.ledger.Get(id)
	if err != nil {
		return state, err
	}
	e.index.Register(id, strategy.Symbols())
	e.revalue(id)
	e.markDirty()
	return state, nil
}

// Pause freezes the strategy's last valuation and stops revaluing it.
func (e *Engine) Pause(id schema.StrategyID) (schema.LifecycleState, error) {
	state, _, err := e.ledger.Transition(id, lifecycle.EventPause)
	if err != nil {
		return state, err
	}
	e.index.Drop(id)
	e.markDirty()
	return state, nil
}

// Stop terminates the strategy and records the completed trade. Stopping a
// stopped strategy is a no-op.
func (e *Engine) Stop(ctx context.Context, id schema.StrategyID) (schema.LifecycleState, error) {
	state, changed, err := e.ledger.Transition(id, lifecycle.EventStop)
	if err != nil {
		return state, err
	}
	if !changed {
		return state, nil
	}

	e.index.Drop(id)
	final, err := e.ledger.Get(id)
	if err != nil {
		return state, err
	}
	pnl := final.Valuation.PnL
	e.tracker.AddPnL(pnl)
	trade := analytics.CompletedTrade{
		StrategyID: id,
		Type:       final.Type,
		PnL:        pnl,
		ClosedAt:   e.clock().UTC(),
	}
	if err := e.history.RecordTrade(ctx, trade); err != nil {
		observability.Log(observability.Event{
			Component: "engine",
			Level:     observability.LevelError,
			Message:   "record completed trade failed",
			Fields:    map[string]any{"strategy": id.String(), "error": err.Error()},
		})
	}
	e.markDirty()
	return state, nil
}

// PlaceLegOrders submits one order per leg of the strategy to the brokerage
// boundary. Fills flow back through Run.
func (e *Engine) PlaceLegOrders(ctx context.Context, id schema.StrategyID) ([]schema.OrderID, error) {
	if e.broker == nil {
		return nil, errs.New("engine", errs.CodeUnavailable, errs.WithMessage("no broker configured"))
	}
	strategy, err := e.ledger.Get(id)
	if err != nil {
		return nil, err
	}
	orders := make([]schema.OrderID, 0, len(strategy.Legs))
	for i, leg := range strategy.Legs {
		req := schema.OrderRequest{
			StrategyID: id,
			LegIndex:   i,
			Leg:        leg,
			Timestamp:  e.clock().UTC(),
		}
		orderID, err := e.broker.PlaceOrder(ctx, req)
		if err != nil {
			return orders, err
		}
		orders = append(orders, orderID)
	}
	return orders, nil
}

// Run drives the engine until the context is cancelled: quotes from the feed,
// fills from the broker, and snapshot publication.
func (e *Engine) Run(ctx context.Context, source feed.Feed, symbols []string) error {
	quotes, feedErrs := source.Stream(ctx, symbols)

	e.wg.Go(func() { e.publishLoop(ctx) })
	if e.broker != nil {
		e.wg.Go(func() { e.consumeFills(ctx) })
	}

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case err, ok := <-feedErrs:
			if !ok {
				feedErrs = nil
				continue
			}
			observability.Log(observability.Event{
				Component: "engine",
				Level:     observability.LevelError,
				Message:   "feed error",
				Fields:    map[string]any{"error": err.Error()},
			})
		case quote, ok := <-quotes:
			if !ok {
				e.shutdown()
				return nil
			}
			e.ProcessQuote(quote)
		}
	}
}

// ProcessQuote applies one tick: the stale gate, the dependency index, and
// parallel revaluation of only the affected strategies.
func (e *Engine) ProcessQuote(quote schema.Quote) {
	if err := quote.Validate(); err != nil {
		observability.Log(observability.Event{
			Component: "engine",
			Level:     observability.LevelError,
			Message:   "invalid quote dropped",
			Fields:    map[string]any{"symbol": quote.Symbol, "error": err.Error()},
		})
		return
	}
	if !e.gate.allow(quote.Symbol) {
		return
	}
	if !e.book.Apply(quote) {
		recordTick(false)
		return
	}
	recordTick(true)

	affected := e.index.Affected(quote.Symbol)
	if len(affected) == 0 {
		return
	}

	var batch sync.WaitGroup
	for _, id := range affected {
		id := id
		batch.Add(1)
		err := e.pool.Submit(context.Background(), func(context.Context) error {
			defer batch.Done()
			e.revalue(id)
			return nil
		})
		if err != nil {
			batch.Done()
			e.revalue(id)
		}
	}
	batch.Wait()
	e.markDirty()
}

// revalue recomputes one strategy under its exclusive lock, keeping tick
// processing and lifecycle transitions serialized per strategy id.
func (e *Engine) revalue(id schema.StrategyID) {
	quotes := e.book.Snapshot()
	err := e.ledger.Mutate(id, func(s *schema.Strategy) error {
		if s.State != schema.StateActive {
			return nil
		}
		v, err := e.valuer.Revalue(*s, quotes)
		if err != nil && !v.Stale {
			return err
		}
		s.Valuation = v
		return nil
	})
	if err != nil {
		observability.Log(observability.Event{
			Component: "engine",
			Level:     observability.LevelError,
			Message:   "revaluation failed",
			Fields:    map[string]any{"strategy": id.String(), "error": err.Error()},
		})
		return
	}
	recordRevaluation()
}

func (e *Engine) consumeFills(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case fill, ok := <-e.broker.Fills():
			if !ok {
				return
			}
			if err := e.ledger.ApplyFill(fill); err != nil {
				observability.Log(observability.Event{
					Component: "engine",
					Level:     observability.LevelError,
					Message:   "fill rejected",
					Fields:    map[string]any{"order": fill.OrderID.String(), "error": err.Error()},
				})
				continue
			}
			e.tracker.RecordTrade()
			e.markDirty()
		}
	}
}

// markDirty schedules a snapshot publication without blocking the caller.
func (e *Engine) markDirty() {
	select {
	case e.dirty <- struct{}{}:
	default:
	}
}

func (e *Engine) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case _, ok := <-e.dirty:
			if !ok {
				return
			}
			e.publishSnapshot(ctx)
		}
	}
}

// publishSnapshot assembles a consistent snapshot from the cached valuations
// and hands it to the broadcaster. Version assignment is the broadcaster's.
func (e *Engine) publishSnapshot(ctx context.Context) {
	active := e.ledger.ListActive()
	strategies, total := valuation.Aggregate(active)

	// The day's history entry carries unrealized plus realized results, so
	// profits locked in by stopping a strategy stay in the series.
	sessionPnL := total.Add(e.tracker.Stats().PnL)
	if err := e.history.UpsertDaily(ctx, analytics.DailyPnL{Date: e.clock().UTC(), PnL: sessionPnL}); err != nil {
		observability.Log(observability.Event{
			Component: "engine",
			Level:     observability.LevelError,
			Message:   "daily history upsert failed",
			Fields:    map[string]any{"error": err.Error()},
		})
	}

	metrics := e.portfolioMetrics(ctx)
	metrics.TotalPnL = total

	snap := &schema.Snapshot{
		Strategies: strategies,
		Portfolio:  metrics,
		CreatedAt:  e.clock().UTC(),
	}
	limits := e.limits.Current()
	alerts := risk.Evaluate(snap, limits)
	alerts = append(alerts, risk.EvaluateDaily(e.tracker.Stats(), limits)...)
	alerts = append(alerts, risk.EvaluateConcentration(exposureShares(active), limits)...)
	snap.Alerts = alerts

	if _, err := e.bcast.Publish(ctx, snap); err != nil {
		observability.Log(observability.Event{
			Component: "engine",
			Level:     observability.LevelError,
			Message:   "snapshot publish failed",
			Fields:    map[string]any{"error": err.Error()},
		})
	}
}

func (e *Engine) portfolioMetrics(ctx context.Context) schema.PortfolioMetrics {
	series, err := e.history.Series(ctx, e.params.WindowDays)
	if err != nil {
		observability.Log(observability.Event{
			Component: "engine",
			Level:     observability.LevelError,
			Message:   "history series unavailable",
			Fields:    map[string]any{"error": err.Error()},
		})
		return schema.PortfolioMetrics{}
	}
	daily := make([]decimal.Decimal, len(series))
	for i, day := range series {
		daily[i] = day.PnL
	}
	wins, completed, err := e.history.TradeCounts(ctx)
	if err != nil {
		observability.Log(observability.Event{
			Component: "engine",
			Level:     observability.LevelError,
			Message:   "trade counts unavailable",
			Fields:    map[string]any{"error": err.Error()},
		})
	}
	return analytics.Compute(daily, wins, completed, e.params)
}

// exposureShares weighs each underlying by its bounded worst-case loss as a
// share of the portfolio's gross exposure.
func exposureShares(active []schema.Strategy) map[string]decimal.Decimal {
	weights := make(map[string]decimal.Decimal)
	gross := decimal.Zero
	for _, s := range active {
		if len(s.Legs) == 0 || s.Valuation.MaxLoss.Unbounded {
			continue
		}
		underlying := s.Legs[0].Symbol
		weight := s.Valuation.MaxLoss.Value.Abs()
		weights[underlying] = weights[underlying].Add(weight)
		gross = gross.Add(weight)
	}
	if gross.IsZero() {
		return nil
	}
	shares := make(map[string]decimal.Decimal, len(weights))
	for symbol, weight := range weights {
		shares[symbol] = weight.Div(gross).Round(4)
	}
	return shares
}

// Subscribe attaches a snapshot subscriber.
func (e *Engine) Subscribe() *broadcast.Subscription {
	return e.bcast.Subscribe()
}

// ListActive returns copies of the strategies currently in ACTIVE state.
func (e *Engine) ListActive() []schema.Strategy {
	return e.ledger.ListActive()
}

// DailyStats exposes the current session counters.
func (e *Engine) DailyStats() risk.DayStats {
	return e.tracker.Stats()
}

func (e *Engine) shutdown() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.pool.Shutdown(shutdownCtx); err != nil {
		observability.Log(observability.Event{
			Component: "engine",
			Level:     observability.LevelError,
			Message:   "worker pool shutdown timed out",
		})
	}
	e.wg.Wait()
}
