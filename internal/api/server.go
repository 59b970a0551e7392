// Package api configures and exposes the HTTP server, routes,
// metrics, the chat page and related middleware for the chat relay.
package api

import (
	"chatrelay/internal/api/handler/v1handler"
	"chatrelay/internal/config"
	"chatrelay/pkg/alert"
	"chatrelay/pkg/controller"
	"chatrelay/pkg/metrics"
	_ "embed"
	"errors"
	"net/http"
	"strings"
	"time"
)

// indexPage is the browser chat client served at the root.
//
//go:embed web/index.html
var indexPage []byte

// Options holds configuration for the HTTP server and its dependencies.
// It is typically created from a config.Config via NewOptions.
// All durations are used to configure server timeouts, and zero values
// should be considered as using the defaults provided by net/http where applicable.
type Options struct {
	// Addr is the TCP address the server listens on, e.g. ":3000".
	Addr string
	// ReadTimeout is the maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration
	// ReadHeaderTimeout is the amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration
	// RequestTimeout is applied via http.TimeoutHandler to every route except
	// the WebSocket and profiling endpoints.
	RequestTimeout time.Duration
	// MaxHeaderBytes controls the maximum number of bytes the server
	// will read parsing the request header's keys and values, including the request line.
	MaxHeaderBytes int
	// MetricsPath is the HTTP path at which Prometheus metrics are served.
	MetricsPath string
	// AllowedOrigins lists the origins allowed by CORS.
	AllowedOrigins []string
}

// NewOptions constructs an Options value from the provided application configuration.
// It maps HTTP server-related settings from config.Config to the Options used by the API server.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Addr:              cfg.HTTP.Addr,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		RequestTimeout:    cfg.HTTP.RequestTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MetricsPath:       cfg.HTTP.MetricsPath,
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
	}
}

// Deps are the components the server routes to.
type Deps struct {
	v1handler.Deps

	// Relay upgrades and serves WebSocket connections.
	Relay http.Handler
	// Metrics records request metrics and serves the registry. It may be nil.
	Metrics *metrics.Collector
	// Alerts receives an alert for every server error. It may be nil.
	Alerts *alert.Dispatcher
}

// NewServer wires up and returns a configured *http.Server using the provided Options.
// It sets up:
// - the chat page and the WebSocket relay
// - health, metrics and simulated error endpoints
// - v1 API routes for message validation and the trusted domain list
// - pprof endpoints for profiling
// It also wraps the routes with CORS, alerting and logging middlewares and applies a request timeout.
func NewServer(deps Deps, opts Options) (*http.Server, error) {
	if deps.Relay == nil {
		return nil, errors.New("relay handler is required")
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	h := v1handler.New(deps.Deps)

	routes := http.NewServeMux()
	handle := func(method, route string, handler http.Handler) {
		label := strings.TrimSuffix(route, "{$}")
		routes.Handle(method+" "+route, controller.WithMetrics(deps.Metrics, label)(handler))
	}

	// chat page
	handle(http.MethodGet, "/{$}", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexPage)
	}))

	// monitoring
	handle(http.MethodGet, "/health", http.HandlerFunc(h.Health))
	handle(http.MethodGet, "/error", http.HandlerFunc(h.SimulateError))
	if deps.Metrics != nil {
		handle(http.MethodGet, opts.MetricsPath, deps.Metrics.Handler())
	}

	// v1 api
	handle(http.MethodPost, "/v1/messages/validate", http.HandlerFunc(h.ValidateMessage))
	handle(http.MethodGet, "/v1/domains", http.HandlerFunc(h.Domains))

	// long-lived connections bypass the request timeout
	mux := http.NewServeMux()
	mux.Handle("/ws", controller.WithMetrics(deps.Metrics, "/ws")(deps.Relay))
	mux.Handle(controller.PprofPrefix, controller.PprofMux())
	if opts.RequestTimeout > 0 {
		mux.Handle("/", http.TimeoutHandler(routes, opts.RequestTimeout, `{"error":"request timed out"}`))
	} else {
		mux.Handle("/", routes)
	}

	// cors
	handler := controller.WithCORS(opts.AllowedOrigins)(mux)

	// alerts
	handler = controller.WithAlerts(deps.Alerts)(handler)

	// logger
	handler = controller.WithLogger(handler)

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		MaxHeaderBytes:    opts.MaxHeaderBytes,
	}, nil
}
