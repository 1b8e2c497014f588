// Command engine launches the strategy lifecycle and risk analytics runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	dbmigrations "github.com/alfadesk/riskcore/db/migrations"
	"github.com/alfadesk/riskcore/internal/analytics"
	"github.com/alfadesk/riskcore/internal/broadcast"
	"github.com/alfadesk/riskcore/internal/broker"
	"github.com/alfadesk/riskcore/internal/config"
	"github.com/alfadesk/riskcore/internal/engine"
	"github.com/alfadesk/riskcore/internal/feed"
	"github.com/alfadesk/riskcore/internal/ledger"
	"github.com/alfadesk/riskcore/internal/observability"
	"github.com/alfadesk/riskcore/internal/persistence/migrations"
	"github.com/alfadesk/riskcore/internal/pricing"
	"github.com/alfadesk/riskcore/internal/valuation"
	"github.com/alfadesk/riskcore/lib/telemetry"
)

const (
	defaultConfigPath        = "config/app.yaml"
	engineLoggerPrefix       = "riskcore "
	telemetryShutdownTimeout = 5 * time.Second
	databaseConnectTimeout   = 10 * time.Second
)

func main() {
	cfgPath := flag.String("config", defaultConfigPath, "Path to application configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stdout, engineLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
	observability.SetLogger(observability.NewTextLogger(logger))

	cfg, err := config.Load(ctx, *cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.Printf("configuration initialised: env=%s, feed=%s", cfg.Environment, cfg.Feed.Mode)

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  string(cfg.Environment),
	})
	if err != nil {
		logger.Fatalf("initialise telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shutdownCancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}()

	history, historyCleanup, err := buildHistory(ctx, cfg.Analytics, logger)
	if err != nil {
		logger.Fatalf("initialise history store: %v", err)
	}
	defer historyCleanup()

	limits, err := cfg.Risk.Limits()
	if err != nil {
		logger.Fatalf("parse risk limits: %v", err)
	}
	limitsStore, err := config.NewLimitsStore(limits)
	if err != nil {
		logger.Fatalf("initialise limits store: %v", err)
	}

	throttle, err := cfg.Engine.TickThrottleInterval()
	if err != nil {
		logger.Fatalf("parse tick throttle: %v", err)
	}

	bcast := broadcast.New(
		broadcast.WithPublishRate(cfg.Broadcast.PublishRate),
		broadcast.WithWorkers(cfg.Broadcast.Workers),
	)
	defer bcast.Close()

	brokerage := buildBroker(cfg.Broker, logger)
	defer func() {
		if err := brokerage.Close(); err != nil {
			logger.Printf("broker close: %v", err)
		}
	}()

	pricer, err := buildPricer(cfg.Pricing)
	if err != nil {
		logger.Fatalf("initialise pricer: %v", err)
	}

	eng, err := engine.New(engine.Deps{
		Ledger:      ledger.New(),
		Valuer:      valuation.NewEngine(pricer),
		History:     history,
		Limits:      limitsStore,
		Broadcaster: bcast,
		Broker:      brokerage,
		Analytics: analytics.Params{
			Confidence: cfg.Analytics.VarConfidence,
			WindowDays: cfg.Analytics.WindowDays,
		},
		Workers:      cfg.Engine.WorkerCount(),
		QueueDepth:   cfg.Engine.QueueDepth,
		TickThrottle: throttle,
	})
	if err != nil {
		logger.Fatalf("initialise engine: %v", err)
	}

	source, symbols, err := buildFeed(cfg.Feed)
	if err != nil {
		logger.Fatalf("initialise feed: %v", err)
	}

	logger.Printf("engine started; streaming %d symbols", len(symbols))
	if err := eng.Run(ctx, source, symbols); err != nil && err != context.Canceled {
		logger.Fatalf("engine stopped: %v", err)
	}
	logger.Print("engine shut down cleanly")
}

// buildHistory selects the Postgres-backed store when a DSN is configured and
// falls back to the in-memory store otherwise.
func buildHistory(ctx context.Context, cfg config.AnalyticsConfig, logger *log.Logger) (analytics.HistoryStore, func(), error) {
	if cfg.HistoryDSN == "" {
		return analytics.NewMemoryHistory(), func() {}, nil
	}

	if err := migrations.ApplyFS(ctx, cfg.HistoryDSN, dbmigrations.Files, logger); err != nil {
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, databaseConnectTimeout)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, cfg.HistoryDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open history pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping history database: %w", err)
	}
	logger.Print("history store backed by postgres")
	return analytics.NewPostgresHistory(pool), pool.Close, nil
}

// buildPricer loads the operator-supplied JavaScript formula in script mode
// and falls back to intrinsic pricing otherwise.
func buildPricer(cfg config.PricingConfig) (pricing.Pricer, error) {
	if cfg.Mode != config.PricingScript {
		return pricing.NewIntrinsic(), nil
	}
	source, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("read pricing script: %w", err)
	}
	return pricing.NewScriptPricer(string(source))
}

func buildBroker(cfg config.BrokerConfig, logger *log.Logger) broker.Broker {
	opts := []broker.SimOption{broker.WithThrottle(cfg.OrderThrottle)}
	if delay, err := cfg.FillDelayDuration(); err == nil && delay > 0 {
		opts = append(opts, broker.WithFillDelay(delay))
	} else if err != nil {
		logger.Printf("broker fill delay ignored: %v", err)
	}
	return broker.NewSimulated(opts...)
}

// buildFeed returns the configured quote source plus the symbols to stream.
// The basePrices keys double as the subscription list in websocket mode.
func buildFeed(cfg config.FeedConfig) (feed.Feed, []string, error) {
	bases, err := cfg.SyntheticBases()
	if err != nil {
		return nil, nil, err
	}
	symbols := make([]string, 0, len(bases))
	for symbol := range bases {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	switch cfg.Mode {
	case config.FeedWebsocket:
		return feed.NewWSFeed(cfg.Endpoint), symbols, nil
	default:
		interval, err := cfg.SyntheticInterval()
		if err != nil {
			return nil, nil, err
		}
		return feed.NewSynthetic(interval, bases), symbols, nil
	}
}
