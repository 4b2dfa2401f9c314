package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Page results.
const (
	PageOK     = "ok"
	PageFailed = "failed"
)

// SyncMetrics holds the sync run instruments. A nil *SyncMetrics records
// nothing.
type SyncMetrics struct {
	pages    metric.Int64Counter
	products metric.Int64Counter
	duration metric.Float64Histogram
}

// NewSyncMetrics creates the instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	m.pages, err = meter.Int64Counter("systemet_pages_total",
		metric.WithDescription("Catalog pages fetched, by result"),
		metric.WithUnit("{page}"))
	if err != nil {
		return nil, err
	}
	m.products, err = meter.Int64Counter("systemet_products_total",
		metric.WithDescription("Products reconciled, by outcome"),
		metric.WithUnit("{product}"))
	if err != nil {
		return nil, err
	}
	m.duration, err = meter.Float64Histogram("systemet_sync_duration_seconds",
		metric.WithDescription("Sync run duration, by final state"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPage counts one page fetch with result PageOK or PageFailed.
func (m *SyncMetrics) RecordPage(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.pages.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordProducts adds n products with the given outcome. Zero is dropped.
func (m *SyncMetrics) RecordProducts(ctx context.Context, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.products.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRun observes a finished run's duration.
func (m *SyncMetrics) RecordRun(ctx context.Context, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("state", state)))
}
