// Package analytics derives portfolio risk statistics from the historical
// daily P&L series: Value-at-Risk, Sharpe ratio, maximum drawdown, win rate.
package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/internal/schema"
)

// tradingDaysPerYear is the conventional annualization factor for the Sharpe
// ratio.
const tradingDaysPerYear = 252

// Params fixes the statistical window and confidence level. Defaults follow
// the common 95% / trailing 30 sessions choice; both are configurable.
type Params struct {
	Confidence float64
	WindowDays int
}

// DefaultParams returns 95% VaR over a trailing 30-session window.
func DefaultParams() Params {
	return Params{Confidence: 0.95, WindowDays: 30}
}

// Compute derives portfolio metrics from the trailing daily P&L series and the
// completed-trade tally. The series is ordered oldest first; only the trailing
// window is considered.
func Compute(series []decimal.Decimal, wins, completed int, params Params) schema.PortfolioMetrics {
	if params.WindowDays > 0 && len(series) > params.WindowDays {
		series = series[len(series)-params.WindowDays:]
	}
	daily := make([]float64, len(series))
	for i, v := range series {
		daily[i] = v.InexactFloat64()
	}

	metrics := schema.PortfolioMetrics{
		VaR:         roundMetric(valueAtRisk(daily, params.Confidence)),
		Sharpe:      roundMetric(sharpe(daily)),
		MaxDrawdown: roundMetric(maxDrawdown(daily)),
		WinRate:     winRate(wins, completed),
	}
	return metrics
}

// valueAtRisk returns the historical-simulation VaR as a positive loss bound.
func valueAtRisk(daily []float64, confidence float64) float64 {
	if len(daily) == 0 {
		return 0
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	sorted := append([]float64(nil), daily...)
	sort.Float64s(sorted)
	rank := (1 - confidence) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	quantile := sorted[lo]
	if hi != lo {
		frac := rank - float64(lo)
		quantile = sorted[lo]*(1-frac) + sorted[hi]*frac
	}
	if quantile >= 0 {
		return 0
	}
	return -quantile
}

// sharpe returns the annualized mean/stddev ratio of the daily series.
func sharpe(daily []float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range daily {
		mean += v
	}
	mean /= float64(len(daily))

	variance := 0.0
	for _, v := range daily {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(daily) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the largest peak-to-trough decline of the cumulative
// P&L series as a positive number.
func maxDrawdown(daily []float64) float64 {
	peak := 0.0
	cumulative := 0.0
	worst := 0.0
	for _, v := range daily {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > worst {
			worst = dd
		}
	}
	return worst
}

func winRate(wins, completed int) decimal.Decimal {
	if completed <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(wins)).
		Div(decimal.NewFromInt(int64(completed))).
		Round(4)
}

func roundMetric(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(4)
}
