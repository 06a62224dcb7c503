package app

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "pop-devnet"
	serviceVersion = "0.1.0"
)

// TelemetryConfig holds the configuration for telemetry
type TelemetryConfig struct {
	Enabled           bool
	OTLPEndpoint      string
	PrometheusEnabled bool
	SampleRate        float64
	ChainID           string
}

// Telemetry manages OpenTelemetry tracing and metrics
type Telemetry struct {
	tracer *trace.TracerProvider
	meters *metricsdk.MeterProvider
	meter  metric.Meter
	config TelemetryConfig
}

// InitTelemetry initializes OpenTelemetry tracing and metrics. With
// telemetry disabled the global no-op providers stay in place.
func InitTelemetry(cfg TelemetryConfig) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{config: cfg}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("chain.id", cfg.ChainID),
		),
	)
	if err != nil {
		return nil, err
	}

	tel := &Telemetry{config: cfg}

	if cfg.OTLPEndpoint != "" {
		if err := tel.initTracing(res); err != nil {
			return nil, err
		}
	}

	if err := tel.initMetrics(res); err != nil {
		return nil, err
	}

	return tel, nil
}

// initTracing sets up OTLP/HTTP tracing
func (t *Telemetry) initTracing(res *resource.Resource) error {
	if _, err := url.Parse(t.config.OTLPEndpoint); err != nil {
		return err
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(t.config.OTLPEndpoint, "http://"), "https://")
	exp, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(
			trace.TraceIDRatioBased(t.config.SampleRate),
		)),
	)

	otel.SetTracerProvider(tp)
	t.tracer = tp
	return nil
}

// initMetrics bridges OTel instruments into the Prometheus default registry
func (t *Telemetry) initMetrics(res *resource.Resource) error {
	if !t.config.PrometheusEnabled {
		return nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return err
	}

	provider := metricsdk.NewMeterProvider(
		metricsdk.WithResource(res),
		metricsdk.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)
	t.meters = provider
	t.meter = provider.Meter(serviceName)
	return nil
}

// Shutdown flushes and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracer != nil {
		errs = append(errs, t.tracer.Shutdown(ctx))
	}
	if t.meters != nil {
		errs = append(errs, t.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// LedgerMetrics records ledger operations through the global meter
type LedgerMetrics struct {
	opCounter   metric.Int64Counter
	opDuration  metric.Float64Histogram
	blockHeight metric.Int64Gauge
	expirations metric.Int64Counter
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	opCounter, err := meter.Int64Counter(
		"pop.ledger.operations",
		metric.WithDescription("Ledger operations by name and status"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	opDuration, err := meter.Float64Histogram(
		"pop.ledger.operation_time",
		metric.WithDescription("Time spent applying an operation"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	blockHeight, err := meter.Int64Gauge(
		"pop.ledger.block_height",
		metric.WithDescription("Current block height"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, err
	}

	expirations, err := meter.Int64Counter(
		"pop.ledger.pending_expired",
		metric.WithDescription("Pending jobs cleared at end of block"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return &LedgerMetrics{
		opCounter:   opCounter,
		opDuration:  opDuration,
		blockHeight: blockHeight,
		expirations: expirations,
	}, nil
}

// RecordOperation records one applied or rejected operation
func (m *LedgerMetrics) RecordOperation(ctx context.Context, op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("op.name", op),
		attribute.String("op.status", status),
	)
	m.opCounter.Add(ctx, 1, attrs)
	m.opDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordBlock records a produced block
func (m *LedgerMetrics) RecordBlock(ctx context.Context, height int64, expired int) {
	m.blockHeight.Record(ctx, height)
	if expired > 0 {
		m.expirations.Add(ctx, int64(expired))
	}
}

// TraceOperation starts a span for a ledger operation
func TraceOperation(ctx context.Context, op string, height int64) (context.Context, oteltrace.Span) {
	return otel.Tracer(serviceName).Start(ctx, "ledger."+op,
		oteltrace.WithAttributes(attribute.Int64("block.height", height)),
	)
}
