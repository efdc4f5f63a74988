package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ntugo/ntugo/internal/provider/resilience"
)

const meterName = "github.com/ntugo/ntugo/internal/api/middleware"

// Outcomes recorded on upstream calls.
const (
	OutcomeOK          = "ok"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeServerError = "server_error"
	OutcomeError       = "error"
)

// MetricsOption configures where instruments are registered.
type MetricsOption func(*metricsOptions)

type metricsOptions struct {
	provider metric.MeterProvider
}

// WithMeterProvider registers instruments on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) MetricsOption {
	return func(o *metricsOptions) { o.provider = mp }
}

func newMeter(opts []MetricsOption) metric.Meter {
	o := metricsOptions{provider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	return o.provider.Meter(meterName)
}

// Metrics holds the HTTP server instruments.
type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
	responseSize     metric.Int64Histogram
}

// NewMetrics creates the HTTP server instruments.
func NewMetrics(opts ...MetricsOption) (*Metrics, error) {
	meter := newMeter(opts)
	var (
		m   Metrics
		err error
	)

	if m.requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.requestTotal, err = meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("HTTP server requests by route and status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.requestsInFlight, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.responseSize, err = meter.Int64Histogram(
		"http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware records one observation per request, labelled by the chi route
// pattern so room ids and station names stay out of metric cardinality.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.requestsInFlight.Add(ctx, 1, method)
			defer m.requestsInFlight.Add(ctx, -1, method)

			rec := recordStatus(w)
			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.String("http.response.status_code", strconv.Itoa(rec.status)),
				attribute.Bool("error", rec.status >= http.StatusBadRequest),
			)
			m.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requestTotal.Add(ctx, 1, attrs)
			m.responseSize.Record(ctx, rec.written, attrs)
		})
	}
}

// ProviderMetrics records upstream calls and cache lookups. It satisfies
// resilience.RequestObserver and cache.Observer.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates the upstream and cache instruments.
func NewProviderMetrics(opts ...MetricsOption) (*ProviderMetrics, error) {
	meter := newMeter(opts)
	var (
		m   ProviderMetrics
		err error
	)

	if m.requestDuration, err = meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of upstream requests including retries"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.requestTotal, err = meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Upstream requests by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Cache lookups served from memory"),
		metric.WithUnit("{hit}"),
	); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Cache lookups that went upstream"),
		metric.WithUnit("{miss}"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// Outcome classifies an upstream call result.
func Outcome(err error) string {
	var serverErr *resilience.ServerError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, resilience.ErrCircuitOpen):
		return OutcomeCircuitOpen
	case errors.As(err, &serverErr):
		return OutcomeServerError
	default:
		return OutcomeError
	}
}

// RecordRequest records one upstream call. Calls outlive request contexts
// in the refresh path, so instruments are fed a background context.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
		attribute.String("provider.outcome", Outcome(err)),
	)
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestTotal.Add(ctx, 1, attrs)
}

// RecordCacheHit records a cache hit.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.cacheHits.Add(context.Background(), 1, cacheAttrs(provider, operation))
}

// RecordCacheMiss records a cache miss.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.cacheMisses.Add(context.Background(), 1, cacheAttrs(provider, operation))
}

func cacheAttrs(provider, cacheName string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("cache.name", cacheName),
	)
}
