package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity classifies a risk alert.
type Severity string

const (
	// SeverityGood signals a metric comfortably inside its limit.
	SeverityGood Severity = "good"
	// SeverityWarning signals a metric approaching its limit.
	SeverityWarning Severity = "warning"
	// SeverityDanger signals a breached limit.
	SeverityDanger Severity = "danger"
)

// Alert reports one evaluated limit alongside the snapshot it was computed from.
type Alert struct {
	Severity Severity        `json:"severity"`
	Metric   string          `json:"metric"`
	Value    decimal.Decimal `json:"value"`
	Limit    decimal.Decimal `json:"limit"`
}

// StrategySnapshot is the per-strategy slice of a portfolio snapshot.
type StrategySnapshot struct {
	ID         StrategyID        `json:"id"`
	Type       StrategyType      `json:"type"`
	State      LifecycleState    `json:"state"`
	PnL        decimal.Decimal   `json:"pnl"`
	MaxProfit  Bound             `json:"maxProfit"`
	MaxLoss    Bound             `json:"maxLoss"`
	Breakevens []decimal.Decimal `json:"breakevens"`
}

// PortfolioMetrics aggregates risk statistics across all active strategies.
type PortfolioMetrics struct {
	TotalPnL    decimal.Decimal `json:"totalPnl"`
	VaR         decimal.Decimal `json:"var95"`
	Sharpe      decimal.Decimal `json:"sharpe"`
	MaxDrawdown decimal.Decimal `json:"maxDrawdown"`
	WinRate     decimal.Decimal `json:"winRate"`
}

// Snapshot is an immutable, versioned view of the portfolio. Versions strictly
// increase; a snapshot is never mutated after construction.
type Snapshot struct {
	Version    uint64             `json:"version"`
	Strategies []StrategySnapshot `json:"strategies"`
	Portfolio  PortfolioMetrics   `json:"portfolio"`
	Alerts     []Alert            `json:"alerts"`
	CreatedAt  time.Time          `json:"createdAt"`
}
