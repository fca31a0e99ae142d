package finlife

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const meterName = "github.com/finmate/finmate/internal/finlife"

// syncInstruments mirror the Prometheus sync counters on the OTel meter
type syncInstruments struct {
	runs     metric.Int64Counter
	items    metric.Int64Counter
	duration metric.Float64Histogram
}

func newSyncInstruments(logger *zap.Logger) *syncInstruments {
	meter := otel.Meter(meterName)
	inst := &syncInstruments{}
	var err error

	if inst.runs, err = meter.Int64Counter("finmate.product_sync.runs",
		metric.WithDescription("Product sync runs by kind and result")); err != nil {
		logger.Warn("Failed to create sync run counter", zap.Error(err))
		inst.runs = noop.Int64Counter{}
	}
	if inst.items, err = meter.Int64Counter("finmate.product_sync.items",
		metric.WithDescription("Rows upserted by product sync")); err != nil {
		logger.Warn("Failed to create sync item counter", zap.Error(err))
		inst.items = noop.Int64Counter{}
	}
	if inst.duration, err = meter.Float64Histogram("finmate.product_sync.duration",
		metric.WithDescription("Product sync duration"), metric.WithUnit("s")); err != nil {
		logger.Warn("Failed to create sync duration histogram", zap.Error(err))
		inst.duration = noop.Float64Histogram{}
	}
	return inst
}

func (i *syncInstruments) record(ctx context.Context, report *Report, result string) {
	kind := attribute.String("kind", report.Kind)
	i.runs.Add(ctx, 1, metric.WithAttributes(kind, attribute.String("result", result)))
	i.duration.Record(ctx, report.Duration.Seconds(), metric.WithAttributes(kind))
	if result == "success" {
		i.items.Add(ctx, int64(report.Products), metric.WithAttributes(kind, attribute.String("entity", "product")))
		i.items.Add(ctx, int64(report.Options), metric.WithAttributes(kind, attribute.String("entity", "option")))
	}
}
