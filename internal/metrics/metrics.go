package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	SweepDuration     metric.Float64Histogram
	EventsCreated     metric.Int64Counter
	EventsPublished   metric.Int64Counter
	Failures          metric.Int64Counter
	ActiveConnections metric.Int64UpDownCounter

	provider *sdkmetric.MeterProvider
}

// Setup builds a meter provider backed by a dedicated Prometheus registry
// and returns the handler that serves it.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	m := &Metrics{provider: provider}

	m.HTTPRequests, err = meter.Int64Counter(
		"cp_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"cp_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepDuration, err = meter.Float64Histogram(
		"cp_sweep_duration_seconds",
		metric.WithDescription("Duration of scheduler and poster sweeps"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.EventsCreated, err = meter.Int64Counter(
		"cp_events_created_total",
		metric.WithDescription("Special-date events created by the scheduler"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.EventsPublished, err = meter.Int64Counter(
		"cp_events_published_total",
		metric.WithDescription("Events published by the auto-poster"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Failures, err = meter.Int64Counter(
		"cp_failures_total",
		metric.WithDescription("Per-item failures during sweeps"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"cp_stream_connections",
		metric.WithDescription("Number of active activity stream connections"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordSweep(ctx context.Context, component string, d time.Duration) {
	m.SweepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("component", component)))
}

func (m *Metrics) RecordEventsCreated(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.EventsCreated.Add(ctx, int64(n))
}

func (m *Metrics) RecordEventPublished(ctx context.Context, platform string) {
	m.EventsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
}

func (m *Metrics) RecordFailure(ctx context.Context, component, kind string) {
	m.Failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	m.ActiveConnections.Add(ctx, -1)
}

// Shutdown flushes and releases the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
