// Package broadcast fans versioned portfolio snapshots out to dashboard
// subscribers. Each subscriber owns a single-slot mailbox: delivery never
// blocks the publisher, and a slow subscriber observes the latest snapshot
// rather than a backlog of stale history.
package broadcast

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/schema"
)

// Subscription is one subscriber's handle. Updates yields snapshots in
// strictly increasing version order until Close.
type Subscription struct {
	id   uuid.UUID
	slot chan *schema.Snapshot

	mu         sync.Mutex
	lastPushed uint64
	closed     bool

	owner *Broadcaster
}

// Updates returns the subscriber's snapshot channel. At most one snapshot is
// pending at any time.
func (s *Subscription) Updates() <-chan *schema.Snapshot {
	return s.slot
}

// Close detaches the subscriber and releases its mailbox.
func (s *Subscription) Close() {
	s.owner.drop(s.id)
	s.closeSlot()
}

// offer places the snapshot in the mailbox, evicting any pending older one.
// Pushed versions strictly increase; stale offers are dropped. Reports
// whether a pending snapshot was coalesced away.
func (s *Subscription) offer(snap *schema.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || snap.Version <= s.lastPushed {
		return false
	}
	s.lastPushed = snap.Version
	coalesced := false
	select {
	case <-s.slot:
		coalesced = true
	default:
	}
	// The slot is empty and only offer fills it, serialized by s.mu.
	s.slot <- snap
	return coalesced
}

func (s *Subscription) closeSlot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.slot)
}

// Broadcaster assigns monotonic versions and distributes snapshots.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]*Subscription
	current *schema.Snapshot
	version uint64
	limiter *rate.Limiter
	workers int
	closed  bool
}

// Option adjusts broadcaster construction.
type Option func(*Broadcaster)

// WithPublishRate bounds how many snapshots per second are published; zero or
// negative disables the bound.
func WithPublishRate(perSecond float64) Option {
	return func(b *Broadcaster) {
		if perSecond > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithWorkers caps fan-out concurrency.
func WithWorkers(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.workers = n
		}
	}
}

// New constructs an empty broadcaster.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:    make(map[uuid.UUID]*Subscription),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe attaches a new subscriber. A late subscriber receives the current
// snapshot immediately, then subsequent versions.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		id:   uuid.New(),
		slot: make(chan *schema.Snapshot, 1),
	}
	sub.owner = b

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.closeSlot()
		return sub
	}
	b.subs[sub.id] = sub
	current := b.current
	b.mu.Unlock()

	if current != nil {
		sub.offer(current)
	}
	return sub
}

// Publish stamps the snapshot with the next version and fans it out. The
// snapshot must not be mutated by the caller afterwards. Blocks only on the
// configured publish-rate bound, never on subscribers.
func (b *Broadcaster) Publish(ctx context.Context, snap *schema.Snapshot) (uint64, error) {
	if snap == nil {
		return 0, errs.New("broadcast", errs.CodeInvalid, errs.WithMessage("nil snapshot"))
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return 0, errs.New("broadcast", errs.CodeUnavailable,
				errs.WithMessage("publish rate wait interrupted"), errs.WithCause(err))
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, errs.New("broadcast", errs.CodeUnavailable, errs.WithMessage("broadcaster closed"))
	}
	b.version++
	snap.Version = b.version
	b.current = snap
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	version := b.version
	b.mu.Unlock()

	start := time.Now()
	b.fanout(ctx, snap, targets)
	recordPublish(ctx, time.Since(start))
	return version, nil
}

// Current returns the most recently published snapshot, or nil before the
// first publish.
func (b *Broadcaster) Current() *schema.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Version returns the last assigned snapshot version.
func (b *Broadcaster) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// SubscriberCount reports attached subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches all subscribers and closes their channels. Publish after
// Close fails.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uuid.UUID]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.closeSlot()
	}
}

func (b *Broadcaster) drop(id uuid.UUID) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

func (b *Broadcaster) fanout(ctx context.Context, snap *schema.Snapshot, targets []*Subscription) {
	if len(targets) == 0 {
		return
	}
	workers := b.workers
	if workers > len(targets) {
		workers = len(targets)
	}
	p := pool.New().WithMaxGoroutines(workers)
	for _, target := range targets {
		sub := target
		p.Go(func() {
			if sub.offer(snap) {
				recordCoalesced(ctx)
			}
		})
	}
	p.Wait()
}

var (
	publishCounter   metric.Int64Counter
	coalescedCounter metric.Int64Counter
	publishLatency   metric.Float64Histogram
	metricsOnce      sync.Once
)

func initMetrics() {
	meter := otel.Meter("broadcast")
	if c, err := meter.Int64Counter("riskcore_snapshots_published_total",
		metric.WithDescription("Snapshots published to subscribers"),
		metric.WithUnit("{snapshot}")); err == nil {
		publishCounter = c
	}
	if c, err := meter.Int64Counter("riskcore_snapshots_coalesced_total",
		metric.WithDescription("Stale snapshots evicted from slow subscriber mailboxes"),
		metric.WithUnit("{snapshot}")); err == nil {
		coalescedCounter = c
	}
	if h, err := meter.Float64Histogram("riskcore_snapshot_fanout_seconds",
		metric.WithDescription("Time spent fanning one snapshot out to all subscribers"),
		metric.WithUnit("s")); err == nil {
		publishLatency = h
	}
}

func recordPublish(ctx context.Context, elapsed time.Duration) {
	metricsOnce.Do(initMetrics)
	if publishCounter != nil {
		publishCounter.Add(ctx, 1)
	}
	if publishLatency != nil {
		publishLatency.Record(ctx, elapsed.Seconds())
	}
}

func recordCoalesced(ctx context.Context) {
	metricsOnce.Do(initMetrics)
	if coalescedCounter != nil {
		coalescedCounter.Add(ctx, 1)
	}
}
