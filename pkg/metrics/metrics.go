// Package metrics collects the relay's Prometheus metrics and bridges
// OpenTelemetry instruments into the same registry.
package metrics

import (
	"chatrelay/pkg/domain"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// Socket connection events.
const (
	SocketConnect    = "connect"
	SocketDisconnect = "disconnect"
)

// Collector owns a Prometheus registry with the relay's metrics. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry      *prometheus.Registry
	meterProvider *sdkmetric.MeterProvider

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	socketConnections *prometheus.CounterVec
	activeClients     prometheus.Gauge
	chatMessages      *prometheus.CounterVec
	errors            *prometheus.CounterVec

	messageSize metric.Int64Histogram
}

// New creates a Collector backed by a fresh registry that also exposes Go
// runtime and process metrics, and OpenTelemetry instruments created from
// MeterProvider.
func New() (*Collector, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exp, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("could not create otel exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))

	c := &Collector{
		registry:      registry,
		meterProvider: mp,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: DefaultBuckets,
		}, []string{"method", "route", "status_code"}),
		socketConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_connections_total",
			Help: "Total number of WebSocket connection events",
		}, []string{"event"}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "socket_active_connections",
			Help: "Number of currently connected WebSocket clients",
		}),
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages by classification",
		}, []string{"kind", "validated"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		}, []string{"type", "endpoint"}),
	}
	registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.socketConnections,
		c.activeClients,
		c.chatMessages,
		c.errors,
	)

	c.messageSize, err = mp.Meter("chatrelay").Int64Histogram("chat.message.size",
		metric.WithDescription("Size of inbound chat payloads"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(64, 256, 1024, 4096, 16384, 65536),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create message size instrument: %w", err)
	}

	return c, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// MeterProvider returns the OpenTelemetry meter provider exporting into the registry.
func (c *Collector) MeterProvider() metric.MeterProvider {
	return c.meterProvider
}

// ObserveHTTP records a finished HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	code := strconv.Itoa(status)
	c.httpRequests.WithLabelValues(method, route, code).Inc()
	c.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}

// SocketEvent records a WebSocket connect or disconnect.
func (c *Collector) SocketEvent(event string) {
	if c == nil {
		return
	}
	c.socketConnections.WithLabelValues(event).Inc()
	switch event {
	case SocketConnect:
		c.activeClients.Inc()
	case SocketDisconnect:
		c.activeClients.Dec()
	}
}

// ChatMessage records a validated chat message of size bytes. Messages
// replaced by a fallback count as not validated.
func (c *Collector) ChatMessage(ctx context.Context, kind domain.ContentKind, size int) {
	if c == nil {
		return
	}
	validated := kind != domain.ContentKindRejected
	c.chatMessages.WithLabelValues(string(kind), strconv.FormatBool(validated)).Inc()
	c.messageSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String("kind", string(kind))))
}

// Error records an error of the given type raised while serving endpoint.
func (c *Collector) Error(errType, endpoint string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(errType, endpoint).Inc()
}

// Shutdown flushes and stops the OpenTelemetry meter provider.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not shut down meter provider: %w", err)
	}

	return nil
}
