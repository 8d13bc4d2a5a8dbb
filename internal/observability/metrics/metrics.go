package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	usageRecorded    metric.Int64Counter
	rollupRuns       metric.Int64Counter
	rollupRows       metric.Int64Counter
	rollupDuration   metric.Float64Histogram
	reportQueries    metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "telcousage"
	}
	meter := provider.Meter(name)

	var (
		m   Metrics
		err error
	)
	if m.usageRecorded, err = meter.Int64Counter("telcousage_usage_recorded_total"); err != nil {
		return nil, err
	}
	if m.rollupRuns, err = meter.Int64Counter("telcousage_rollup_runs_total"); err != nil {
		return nil, err
	}
	if m.rollupRows, err = meter.Int64Counter("telcousage_rollup_rows_total"); err != nil {
		return nil, err
	}
	if m.rollupDuration, err = meter.Float64Histogram("telcousage_rollup_duration_seconds", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.reportQueries, err = meter.Int64Counter("telcousage_report_queries_total"); err != nil {
		return nil, err
	}
	if m.rateLimitAllowed, err = meter.Int64Counter("telcousage_rate_limit_allowed_total"); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("telcousage_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewNoop returns instruments backed by a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordUsage(ctx context.Context, kind, carrier string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("usage_kind", kind),
		attribute.String("carrier", carrier),
	)
	m.usageRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Rollup outcomes.
const (
	RollupSuccess = "success"
	RollupFailed  = "failed"
	RollupLocked  = "locked"
)

// RecordRollup records one populate run; outcome is one of RollupSuccess,
// RollupFailed or RollupLocked.
func (m *Metrics) RecordRollup(ctx context.Context, kind, outcome string, created, updated, deleted int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("usage_kind", kind),
		attribute.String("outcome", outcome),
	)
	m.rollupRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.rollupDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))

	for stage, n := range map[string]int64{"created": created, "updated": updated, "deleted": deleted} {
		if n == 0 {
			continue
		}
		m.rollupRows.Add(ctx, n, metric.WithAttributes(FilterAttributes(
			attribute.String("usage_kind", kind),
			attribute.String("stage", stage),
		)...))
	}
}

func (m *Metrics) RecordReportQuery(ctx context.Context, report string) {
	if m == nil {
		return
	}
	m.reportQueries.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("report", report))...))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("endpoint", endpoint))...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"usage_kind":  {},
	"carrier":     {},
	"outcome":     {},
	"stage":       {},
	"report":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Subscription ids and phone numbers never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
