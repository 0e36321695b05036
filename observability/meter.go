package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/injectkit/config"
	"github.com/kbukum/injectkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// MeterConfigFrom derives the meter settings from an application config.
func MeterConfigFrom(cfg *config.Config, version string) *MeterConfig {
	mc := DefaultMeterConfig(cfg.Name)
	mc.ServiceVersion = version
	mc.Environment = cfg.Environment
	mc.Endpoint = cfg.Tracing.Endpoint
	mc.Insecure = cfg.Tracing.Insecure
	return &mc
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded for provisioning and intercepted calls.
type Metrics struct {
	provisionTotal     metric.Int64Counter
	provisionDuration  metric.Float64Histogram
	provisionActive    metric.Int64UpDownCounter
	invocationTotal    metric.Int64Counter
	invocationDuration metric.Float64Histogram
	errorTotal         metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	provisionTotal, err := meter.Int64Counter("provision.total",
		metric.WithDescription("Total number of top-level provisionings"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating provision.total counter: %w", err)
	}

	provisionDuration, err := meter.Float64Histogram("provision.duration",
		metric.WithDescription("Duration of provisionings in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating provision.duration histogram: %w", err)
	}

	provisionActive, err := meter.Int64UpDownCounter("provision.active",
		metric.WithDescription("Number of provisionings in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating provision.active gauge: %w", err)
	}

	invocationTotal, err := meter.Int64Counter("invocation.total",
		metric.WithDescription("Total number of intercepted method calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocation.total counter: %w", err)
	}

	invocationDuration, err := meter.Float64Histogram("invocation.duration",
		metric.WithDescription("Duration of intercepted method calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocation.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by code and source"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		provisionTotal:     provisionTotal,
		provisionDuration:  provisionDuration,
		provisionActive:    provisionActive,
		invocationTotal:    invocationTotal,
		invocationDuration: invocationDuration,
		errorTotal:         errorTotal,
	}, nil
}

// RecordProvisionStart increments the in-progress provisioning count.
func (m *Metrics) RecordProvisionStart(ctx context.Context) {
	m.provisionActive.Add(ctx, 1)
}

// RecordProvisionEnd decrements in-progress provisionings and records the
// completed one.
func (m *Metrics) RecordProvisionEnd(ctx context.Context, key, status string, duration time.Duration) {
	m.provisionActive.Add(ctx, -1)
	m.provisionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
		attribute.String("status", status),
	))
	m.provisionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("key", key),
	))
}

// RecordInvocation records an intercepted method call.
func (m *Metrics) RecordInvocation(ctx context.Context, iface, method, status string, duration time.Duration) {
	m.invocationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("interface", iface),
		attribute.String("method", method),
		attribute.String("status", status),
	))
	m.invocationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("interface", iface),
		attribute.String("method", method),
	))
}

// RecordError records an error by code and source.
func (m *Metrics) RecordError(ctx context.Context, code, source string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("source", source),
	))
}
