package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tickCounter        metric.Int64Counter
	revaluationCounter metric.Int64Counter
	metricsOnce        sync.Once
)

func initMetrics() {
	meter := otel.Meter("engine")
	if c, err := meter.Int64Counter("riskcore_ticks_total",
		metric.WithDescription("Market ticks received, by outcome"),
		metric.WithUnit("{tick}")); err == nil {
		tickCounter = c
	}
	if c, err := meter.Int64Counter("riskcore_revaluations_total",
		metric.WithDescription("Strategy revaluations triggered by ticks"),
		metric.WithUnit("{revaluation}")); err == nil {
		revaluationCounter = c
	}
}

func recordTick(applied bool) {
	metricsOnce.Do(initMetrics)
	if tickCounter == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "dropped"
	}
	tickCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("result", result)))
}

func recordRevaluation() {
	metricsOnce.Do(initMetrics)
	if revaluationCounter != nil {
		revaluationCounter.Add(context.Background(), 1)
	}
}
