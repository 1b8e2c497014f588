// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alfadesk/riskcore/internal/risk"
)

// Environment identifies the deployment environment.
type Environment string

const (
	// EnvDev is the development environment.
	EnvDev Environment = "dev"
	// EnvStaging is the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd is the production environment.
	EnvProd Environment = "prod"
)

// EngineConfig sizes the revaluation pipeline.
type EngineConfig struct {
	// Workers bounds parallel strategy revaluation; 0 means one per CPU.
	Workers int `yaml:"workers"`
	// QueueDepth sizes the revaluation task queue.
	QueueDepth int `yaml:"queueDepth"`
	// TickThrottle coalesces bursts of ticks per symbol, e.g. "100ms".
	// Empty disables throttling.
	TickThrottle string `yaml:"tickThrottle"`
}

// WorkerCount resolves the effective worker count.
func (c EngineConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	if cores := runtime.NumCPU(); cores > 0 {
		return cores
	}
	return 4
}

// TickThrottleInterval parses the throttle window; zero means disabled.
func (c EngineConfig) TickThrottleInterval() (time.Duration, error) {
	raw := strings.TrimSpace(c.TickThrottle)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("engine tickThrottle: %w", err)
	}
	return d, nil
}

// BroadcastConfig sizes snapshot distribution.
type BroadcastConfig struct {
	// PublishRate bounds snapshots per second; 0 disables the bound.
	PublishRate float64 `yaml:"publishRate"`
	// Workers bounds fan-out concurrency; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// RiskLimitsConfig carries the configured limits as decimal strings.
type RiskLimitsConfig struct {
	MaxDailyLoss     string  `yaml:"maxDailyLoss"`
	MaxPositionSize  string  `yaml:"maxPositionSize"`
	MaxDailyTrades   int     `yaml:"maxDailyTrades"`
	MaxDrawdown      string  `yaml:"maxDrawdown"`
	MaxVar           string  `yaml:"maxVar"`
	MaxConcentration float64 `yaml:"maxConcentration"`
}

// Limits converts the configured strings into validated risk limits. Empty
// strings disable the corresponding limit.
func (c RiskLimitsConfig) Limits() (risk.Limits, error) {
	limits := risk.Limits{
		MaxDailyTrades:   c.MaxDailyTrades,
		MaxConcentration: decimal.NewFromFloat(c.MaxConcentration),
	}
	for _, field := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"maxDailyLoss", c.MaxDailyLoss, &limits.MaxDailyLoss},
		{"maxPositionSize", c.MaxPositionSize, &limits.MaxPositionSize},
		{"maxDrawdown", c.MaxDrawdown, &limits.MaxDrawdown},
		{"maxVar", c.MaxVar, &limits.MaxVaR},
	} {
		raw := strings.TrimSpace(field.raw)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return risk.Limits{}, fmt.Errorf("risk %s: %w", field.name, err)
		}
		*field.dst = value
	}
	if err := limits.Validate(); err != nil {
		return risk.Limits{}, err
	}
	return limits, nil
}

// AnalyticsConfig fixes the statistical parameters and the optional history
// database.
type AnalyticsConfig struct {
	// VarConfidence is the VaR confidence level, e.g. 0.95.
	VarConfidence float64 `yaml:"varConfidence"`
	// WindowDays is the trailing session window for the statistics.
	WindowDays int `yaml:"windowDays"`
	// HistoryDSN points at a Postgres history store; empty keeps history in
	// memory.
	HistoryDSN string `yaml:"historyDsn"`
}

// FeedConfig selects the quote source.
type FeedConfig struct {
	// Mode is "synthetic" or "websocket".
	Mode string `yaml:"mode"`
	// Endpoint is the websocket URL when mode is websocket.
	Endpoint string `yaml:"endpoint"`
	// Interval paces the synthetic generator, e.g. "500ms".
	Interval string `yaml:"interval"`
	// BasePrices seeds the synthetic walk per symbol, as decimal strings.
	BasePrices map[string]string `yaml:"basePrices"`
}

// Feed source modes.
const (
	FeedSynthetic = "synthetic"
	FeedWebsocket = "websocket"
)

// SyntheticInterval parses the generator interval.
func (c FeedConfig) SyntheticInterval() (time.Duration, error) {
	raw := strings.TrimSpace(c.Interval)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("feed interval: %w", err)
	}
	return d, nil
}

// SyntheticBases parses the configured base prices.
func (c FeedConfig) SyntheticBases() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.BasePrices))
	for symbol, raw := range c.BasePrices {
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("feed basePrices[%s]: %w", symbol, err)
		}
		out[symbol] = value
	}
	return out, nil
}

// PricingConfig selects the leg pricer.
type PricingConfig struct {
	// Mode is "intrinsic" or "script".
	Mode string `yaml:"mode"`
	// ScriptPath points at a JavaScript pricing formula when mode is script.
	ScriptPath string `yaml:"scriptPath"`
}

// Pricer modes.
const (
	PricingIntrinsic = "intrinsic"
	PricingScript    = "script"
)

// BrokerConfig configures the brokerage boundary.
type BrokerConfig struct {
	// OrderThrottle bounds orders per second; 0 disables the bound.
	OrderThrottle float64 `yaml:"orderThrottle"`
	// FillDelay holds simulated orders pending, e.g. "50ms".
	FillDelay string `yaml:"fillDelay"`
}

// FillDelayDuration parses the simulated fill delay.
func (c BrokerConfig) FillDelayDuration() (time.Duration, error) {
	raw := strings.TrimSpace(c.FillDelay)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("broker fillDelay: %w", err)
	}
	return d, nil
}

// TelemetryConfig configures metric export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// AppConfig is the root configuration document.
type AppConfig struct {
	Environment Environment      `yaml:"environment"`
	Engine      EngineConfig     `yaml:"engine"`
	Broadcast   BroadcastConfig  `yaml:"broadcast"`
	Risk        RiskLimitsConfig `yaml:"risk"`
	Analytics   AnalyticsConfig  `yaml:"analytics"`
	Pricing     PricingConfig    `yaml:"pricing"`
	Feed        FeedConfig       `yaml:"feed"`
	Broker      BrokerConfig     `yaml:"broker"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
}

// Load reads, normalises, and validates the YAML configuration at configPath.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if c.Environment == "" {
		c.Environment = EnvDev
	}

	if c.Engine.QueueDepth <= 0 {
		c.Engine.QueueDepth = 256
	}

	c.Pricing.Mode = strings.ToLower(strings.TrimSpace(c.Pricing.Mode))
	if c.Pricing.Mode == "" {
		c.Pricing.Mode = PricingIntrinsic
	}
	c.Pricing.ScriptPath = strings.TrimSpace(c.Pricing.ScriptPath)

	c.Feed.Mode = strings.ToLower(strings.TrimSpace(c.Feed.Mode))
	if c.Feed.Mode == "" {
		c.Feed.Mode = FeedSynthetic
	}
	c.Feed.Endpoint = strings.TrimSpace(c.Feed.Endpoint)

	c.Analytics.HistoryDSN = strings.TrimSpace(c.Analytics.HistoryDSN)
	if c.Analytics.VarConfidence <= 0 || c.Analytics.VarConfidence >= 1 {
		c.Analytics.VarConfidence = 0.95
	}
	if c.Analytics.WindowDays <= 0 {
		c.Analytics.WindowDays = 30
	}

	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "riskcore-engine"
	}
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}

	if _, err := c.Engine.TickThrottleInterval(); err != nil {
		return err
	}
	if c.Broadcast.PublishRate < 0 {
		return fmt.Errorf("broadcast publishRate must be >= 0")
	}
	if c.Broadcast.Workers < 0 {
		return fmt.Errorf("broadcast workers must be >= 0")
	}

	if _, err := c.Risk.Limits(); err != nil {
		return err
	}

	switch c.Pricing.Mode {
	case PricingIntrinsic:
	case PricingScript:
		if c.Pricing.ScriptPath == "" {
			return fmt.Errorf("pricing scriptPath required in script mode")
		}
	default:
		return fmt.Errorf("pricing mode must be %s or %s", PricingIntrinsic, PricingScript)
	}

	switch c.Feed.Mode {
	case FeedSynthetic:
		if _, err := c.Feed.SyntheticInterval(); err != nil {
			return err
		}
		if _, err := c.Feed.SyntheticBases(); err != nil {
			return err
		}
	case FeedWebsocket:
		if c.Feed.Endpoint == "" {
			return fmt.Errorf("feed endpoint required in websocket mode")
		}
	default:
		return fmt.Errorf("feed mode must be %s or %s", FeedSynthetic, FeedWebsocket)
	}

	if c.Broker.OrderThrottle < 0 {
		return fmt.Errorf("broker orderThrottle must be >= 0")
	}
	if _, err := c.Broker.FillDelayDuration(); err != nil {
		return err
	}

	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}

// LimitsStore hands the current risk limits to the engine and supports hot
// reload by an external admin action.
type LimitsStore struct {
	mu     sync.RWMutex
	limits risk.Limits
}

// NewLimitsStore seeds the store with validated limits.
func NewLimitsStore(limits risk.Limits) (*LimitsStore, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &LimitsStore{limits: limits}, nil
}

// Current returns the limits in force.
func (s *LimitsStore) Current() risk.Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

// Update replaces the limits after validation.
func (s *LimitsStore) Update(limits risk.Limits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.limits = limits
	s.mu.Unlock()
	return nil
}
