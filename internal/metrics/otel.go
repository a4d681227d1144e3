package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	defaultServiceName = "seller-notification-service"
	metricPrefix       = "seller_notifications_"
	otlpPushInterval   = 15 * time.Second
)

var (
	promReaderFactory = prometheusComponents
	otlpReaderFactory = buildOTLPReader
	instrumentFactory = newOtelInstruments
)

// TelemetryConfig controls how metrics are exported.
type TelemetryConfig struct {
	Enabled      bool
	Port         string
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

func noopShutdown(context.Context) error { return nil }

// Setup builds a MeterProvider that always exposes a Prometheus scrape handler and,
// when an endpoint is configured, also pushes over OTLP/HTTP. Disabled telemetry
// yields an in-memory Recorder and no handler.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Recorder, http.Handler, func(context.Context) error, error) {
	if !cfg.Enabled {
		return NewRecorder(), nil, noopShutdown, nil
	}

	readers, handler, err := buildReaders(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, nil, err
	}

	opts := make([]sdkmetric.Option, 0, len(readers)+1)
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	opts = append(opts, sdkmetric.WithResource(res))
	provider := sdkmetric.NewMeterProvider(opts...)

	inst, err := instrumentFactory(provider)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, nil, err
	}
	return newRecorder(inst), handler, provider.Shutdown, nil
}

func buildReaders(ctx context.Context, cfg TelemetryConfig) ([]sdkmetric.Reader, http.Handler, error) {
	promReader, handler, err := promReaderFactory()
	if err != nil {
		return nil, nil, err
	}
	readers := []sdkmetric.Reader{promReader}
	if cfg.OtlpEndpoint != "" {
		otlpReader, err := otlpReaderFactory(ctx, cfg.OtlpEndpoint, cfg.OtlpInsecure)
		if err != nil {
			return nil, nil, err
		}
		readers = append(readers, otlpReader)
	}
	return readers, handler, nil
}

func buildOTLPReader(ctx context.Context, endpoint string, insecure bool) (sdkmetric.Reader, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(otlpPushInterval)), nil
}

// prometheusComponents uses a private registry so only this service's instruments are scraped.
func prometheusComponents() (sdkmetric.Reader, http.Handler, error) {
	reg := prometheus.NewRegistry()
	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	return exp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

type otelInstruments struct {
	ctx context.Context

	httpRequests metric.Int64Counter
	httpLatency  metric.Float64Histogram

	providerCalls   metric.Int64Counter
	providerErrors  metric.Int64Counter
	providerLatency metric.Float64Histogram
	rateLimited     metric.Int64Counter
	retryAfter      metric.Float64Histogram

	cycles       metric.Int64Counter
	cycleErrors  metric.Int64Counter
	cycleLatency metric.Float64Histogram
	skips        metric.Int64Counter

	// Read by observable gauge callbacks at collection time.
	unread atomic.Int64
	active atomic.Int64
}

// instrumentBuilder collects registration errors so construction reads as a list.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(metricPrefix+name, metric.WithDescription(desc))
	b.err = errors.Join(b.err, err)
	return c
}

func (b *instrumentBuilder) millis(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(metricPrefix+name, metric.WithDescription(desc))
	b.err = errors.Join(b.err, err)
	return h
}

func (b *instrumentBuilder) gauge(name, desc string, v *atomic.Int64) {
	_, err := b.meter.Int64ObservableGauge(metricPrefix+name,
		metric.WithDescription(desc),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(v.Load())
			return nil
		}),
	)
	b.err = errors.Join(b.err, err)
}

func newOtelInstruments(provider metric.MeterProvider) (*otelInstruments, error) {
	b := &instrumentBuilder{meter: provider.Meter(defaultServiceName)}
	o := &otelInstruments{ctx: context.Background()}

	o.httpRequests = b.counter("http_requests_total", "HTTP requests served, by method, path and status.")
	o.httpLatency = b.millis("http_request_duration_ms", "HTTP request latency.")

	o.providerCalls = b.counter("provider_calls_total", "Calls made to the notification provider.")
	o.providerErrors = b.counter("provider_errors_total", "Provider calls that returned an error.")
	o.providerLatency = b.millis("provider_call_duration_ms", "Provider call latency, excluding rate-limit wait.")
	o.rateLimited = b.counter("provider_rate_limited_total", "Provider responses that signalled rate limiting.")
	o.retryAfter = b.millis("provider_retry_after_ms", "Retry-After advertised by rate-limited responses.")

	o.cycles = b.counter("poller_cycles_total", "Fetch cycles that reached the provider, by outcome.")
	o.cycleErrors = b.counter("poller_cycle_errors_total", "Fetch cycles that ended with an error.")
	o.cycleLatency = b.millis("poller_cycle_duration_ms", "Fetch cycle latency, by outcome.")
	o.skips = b.counter("poller_skipped_total", "Ticks skipped because a fetch was already in flight.")

	b.gauge("unread", "Unread notifications in the last delivered snapshot.", &o.unread)
	b.gauge("poller_active", "1 while a polling session is running.", &o.active)

	if b.err != nil {
		return nil, b.err
	}
	return o, nil
}

func (o *otelInstruments) recordHTTPRequest(method, path string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrMethod, method),
		attribute.String(AttrPath, path),
		attribute.Int(AttrStatus, status),
	)
	o.httpRequests.Add(o.ctx, 1, attrs)
	o.httpLatency.Record(o.ctx, millis(duration), attrs)
}

func (o *otelInstruments) recordProviderAttempt(provider string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrProvider, provider))
	o.providerCalls.Add(o.ctx, 1, attrs)
	o.providerLatency.Record(o.ctx, millis(duration), attrs)
	if err != nil {
		o.providerErrors.Add(o.ctx, 1, attrs)
	}
}

func (o *otelInstruments) recordRateLimit(provider string, retryAfter time.Duration) {
	if o == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrProvider, provider))
	o.rateLimited.Add(o.ctx, 1, attrs)
	if retryAfter > 0 {
		o.retryAfter.Record(o.ctx, millis(retryAfter), attrs)
	}
}

func (o *otelInstruments) recordPoller(outcome string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	if outcome == OutcomeSkipped {
		o.skips.Add(o.ctx, 1)
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, outcome))
	o.cycles.Add(o.ctx, 1, attrs)
	o.cycleLatency.Record(o.ctx, millis(duration), attrs)
	if err != nil {
		o.cycleErrors.Add(o.ctx, 1, attrs)
	}
}

func (o *otelInstruments) setUnread(n int) {
	if o != nil {
		o.unread.Store(int64(n))
	}
}

func (o *otelInstruments) setActive(active bool) {
	if o == nil {
		return
	}
	var v int64
	if active {
		v = 1
	}
	o.active.Store(v)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
