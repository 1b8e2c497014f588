// Package risk evaluates portfolio snapshots against configured limits.
// Evaluation is pure: the same snapshot and limits always produce the same
// alerts, in a fixed metric order.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/errs"
	"github.com/alfadesk/riskcore/internal/schema"
)

// Metric names carried on alerts.
const (
	MetricDailyLoss     = "daily_loss"
	MetricDailyTrades   = "daily_trades"
	MetricPositionSize  = "position_exposure"
	MetricMaxDrawdown   = "max_drawdown"
	MetricVaR           = "var95"
	MetricConcentration = "concentration"
)

// warningShare is the fraction of a limit at which a metric is flagged as
// approaching it.
var warningShare = decimal.NewFromFloat(0.8)

// Limits defines the portfolio risk parameters. A zero limit disables the
// corresponding check.
type Limits struct {
	// MaxDailyLoss caps realized plus unrealized loss per session.
	MaxDailyLoss decimal.Decimal `yaml:"maxDailyLoss"`

	// MaxPositionSize caps the worst-case loss exposure of any single
	// strategy.
	MaxPositionSize decimal.Decimal `yaml:"maxPositionSize"`

	// MaxDailyTrades caps fills per session.
	MaxDailyTrades int `yaml:"maxDailyTrades"`

	// MaxDrawdown caps the peak-to-trough decline of the cumulative P&L
	// series.
	MaxDrawdown decimal.Decimal `yaml:"maxDrawdown"`

	// MaxVaR caps the historical-simulation Value-at-Risk.
	MaxVaR decimal.Decimal `yaml:"maxVar"`

	// MaxConcentration caps the share of gross exposure carried by a single
	// underlying, expressed as a fraction in (0, 1].
	MaxConcentration decimal.Decimal `yaml:"maxConcentration"`
}

// Validate rejects negative limits and out-of-range concentration shares.
func (l Limits) Validate() error {
	for _, check := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"maxDailyLoss", l.MaxDailyLoss},
		{"maxPositionSize", l.MaxPositionSize},
		{"maxDrawdown", l.MaxDrawdown},
		{"maxVar", l.MaxVaR},
	} {
		if check.value.IsNegative() {
			return errs.New("risk", errs.CodeInvalid,
				errs.WithMessage(check.name+" must not be negative"))
		}
	}
	if l.MaxDailyTrades < 0 {
		return errs.New("risk", errs.CodeInvalid,
			errs.WithMessage("maxDailyTrades must not be negative"))
	}
	if l.MaxConcentration.IsNegative() || l.MaxConcentration.GreaterThan(decimal.NewFromInt(1)) {
		return errs.New("risk", errs.CodeInvalid,
			errs.WithMessage("maxConcentration must be within (0, 1]"))
	}
	return nil
}

// Evaluate grades the snapshot's portfolio metrics against the limits. Each
// configured limit yields exactly one alert; disabled limits yield none.
func Evaluate(snap *schema.Snapshot, limits Limits) []schema.Alert {
	if snap == nil {
		return nil
	}
	var alerts []schema.Alert

	if limits.MaxDailyLoss.IsPositive() {
		loss := snap.Portfolio.TotalPnL.Neg()
		alerts = append(alerts, grade(MetricDailyLoss, loss, limits.MaxDailyLoss))
	}
	if limits.MaxPositionSize.IsPositive() {
		alerts = append(alerts, gradePositionSize(snap.Strategies, limits.MaxPositionSize))
	}
	if limits.MaxDrawdown.IsPositive() {
		alerts = append(alerts, grade(MetricMaxDrawdown, snap.Portfolio.MaxDrawdown, limits.MaxDrawdown))
	}
	if limits.MaxVaR.IsPositive() {
		alerts = append(alerts, grade(MetricVaR, snap.Portfolio.VaR, limits.MaxVaR))
	}
	return alerts
}

// EvaluateDaily grades the session counters. Pure over its inputs; callers
// pass the current Tracker state.
func EvaluateDaily(day DayStats, limits Limits) []schema.Alert {
	if limits.MaxDailyTrades <= 0 {
		return nil
	}
	trades := decimal.NewFromInt(int64(day.Trades))
	limit := decimal.NewFromInt(int64(limits.MaxDailyTrades))
	return []schema.Alert{grade(MetricDailyTrades, trades, limit)}
}

// EvaluateConcentration grades per-underlying exposure shares against the
// concentration limit. Shares are fractions of gross exposure.
func EvaluateConcentration(shares map[string]decimal.Decimal, limits Limits) []schema.Alert {
	if !limits.MaxConcentration.IsPositive() || len(shares) == 0 {
		return nil
	}
	worst := decimal.Zero
	for _, share := range shares {
		if share.GreaterThan(worst) {
			worst = share
		}
	}
	return []schema.Alert{grade(MetricConcentration, worst, limits.MaxConcentration)}
}

// gradePositionSize reports the single worst strategy exposure. An unbounded
// max loss always breaches a finite limit.
func gradePositionSize(strategies []schema.StrategySnapshot, limit decimal.Decimal) schema.Alert {
	worst := decimal.Zero
	unbounded := false
	for _, s := range strategies {
		if s.MaxLoss.Unbounded {
			unbounded = true
			continue
		}
		loss := s.MaxLoss.Value.Abs()
		if loss.GreaterThan(worst) {
			worst = loss
		}
	}
	if unbounded {
		return schema.Alert{
			Severity: schema.SeverityDanger,
			Metric:   MetricPositionSize,
			Value:    worst,
			Limit:    limit,
		}
	}
	return grade(MetricPositionSize, worst, limit)
}

// grade maps value/limit onto the three severities: danger at or past the
// limit, warning at 80% of it, good otherwise. Negative values (e.g. a daily
// gain viewed as negative loss) are always good.
func grade(metric string, value, limit decimal.Decimal) schema.Alert {
	severity := schema.SeverityGood
	if value.IsPositive() {
		switch {
		case value.GreaterThanOrEqual(limit):
			severity = schema.SeverityDanger
		case value.GreaterThanOrEqual(limit.Mul(warningShare)):
			severity = schema.SeverityWarning
		}
	}
	return schema.Alert{Severity: severity, Metric: metric, Value: value, Limit: limit}
}
