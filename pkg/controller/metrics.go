package controller

import (
	"chatrelay/pkg/metrics"
	"net/http"
	"time"
)

// Error types recorded for failed requests.
const (
	ClientError = "client_error"
	ServerError = "server_error"
)

// WithMetrics returns a middleware recording every request to route in c.
// Responses with a 4xx or 5xx status are also counted as errors.
func WithMetrics(c *metrics.Collector, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			c.ObserveHTTP(r.Method, route, rec.status, time.Since(start))
			switch {
			case rec.status >= http.StatusInternalServerError:
				c.Error(ServerError, route)
			case rec.status >= http.StatusBadRequest:
				c.Error(ClientError, route)
			}
		})
	}
}
