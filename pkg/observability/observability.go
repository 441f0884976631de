// Package observability traces correlator cycles, harvests, seals and
// simulation runs over OTLP and keeps Prometheus counters for the receipt
// stream.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

const scope = "github.com/northstaraokeystone/trumpproof"

// Operation outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeStopRule  = "stoprule"
	OutcomeSinkWrite = "sink_write"
	OutcomeError     = "error"
)

// Config selects where telemetry goes. Nothing is exported unless Enabled.
type Config struct {
	Enabled        bool
	Endpoint       string // OTLP gRPC collector, host:port
	ServiceVersion string
	Tenant         string
}

// FromConfig derives the telemetry settings from runtime configuration.
func FromConfig(cfg *config.Config, version string) *Config {
	return &Config{
		Enabled:        cfg.OTelEnabled,
		Endpoint:       cfg.OTelEndpoint,
		ServiceVersion: version,
		Tenant:         cfg.TenantID,
	}
}

// Provider traces operations and counts them by outcome. A disabled
// provider runs on no-op tracer and meter providers.
type Provider struct {
	tracer    trace.Tracer
	ops       metric.Int64Counter
	durations metric.Float64Histogram
	shutdown  []func(context.Context) error
}

// New creates a provider. With telemetry enabled it dials the collector
// for both traces and metrics.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := slog.Default().With("component", "observability")

	p := &Provider{tracer: tracenoop.NewTracerProvider().Tracer(scope)}
	var meter metric.Meter = metricnoop.NewMeterProvider().Meter(scope)

	if cfg.Enabled {
		tp, mp, err := exporters(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.tracer = tp.Tracer(scope, trace.WithInstrumentationVersion(cfg.ServiceVersion))
		meter = mp.Meter(scope, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		p.shutdown = []func(context.Context) error{tp.Shutdown, mp.Shutdown}
		logger.InfoContext(ctx, "telemetry enabled", "endpoint", cfg.Endpoint, "tenant", cfg.Tenant)
	}

	var err error
	p.ops, err = meter.Int64Counter("trumpproof.operations",
		metric.WithDescription("Correlator, anchor and simulation operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("operations counter: %w", err)
	}
	p.durations, err = meter.Float64Histogram("trumpproof.operation.duration",
		metric.WithDescription("Operation wall time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("duration histogram: %w", err)
	}
	return p, nil
}

func exporters(ctx context.Context, cfg *Config) (*sdktrace.TracerProvider, *sdkmetric.MeterProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("trumpproof"),
		semconv.ServiceVersion(cfg.ServiceVersion),
		AttrTenant.String(cfg.Tenant),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry resource: %w", err)
	}

	spans, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spans),
	)

	points, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, fmt.Errorf("metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(points, sdkmetric.WithInterval(15*time.Second))),
	)
	return tp, mp, nil
}

// Shutdown flushes pending spans and metric points.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// TrackOperation opens a span for name carrying attrs. The returned func
// ends it: a StopRule becomes a span event naming its metric, any other
// error is recorded on the span. The operation is counted and timed under
// its name and outcome only; attrs stay on the span.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		result := Outcome(err)
		set := metric.WithAttributes(AttrOperation.String(name), AttrOutcome.String(result))
		p.ops.Add(ctx, 1, set)
		p.durations.Record(ctx, time.Since(start).Seconds(), set)

		var stop *receipts.StopRuleError
		switch {
		case err == nil:
		case result == OutcomeStopRule && errors.As(err, &stop):
			span.AddEvent("stoprule", trace.WithAttributes(AttrStopRule.String(stop.Metric)))
			span.SetStatus(codes.Error, stop.Message)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Outcome classifies an operation result. A StopRule whose anomaly could
// not be written counts as a sink failure.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, receipts.ErrSinkWrite):
		return OutcomeSinkWrite
	case receipts.IsStopRule(err):
		return OutcomeStopRule
	default:
		return OutcomeError
	}
}
