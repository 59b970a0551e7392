package controller

import (
	"chatrelay/pkg/alert"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// WithAlerts returns a middleware that queues an error alert on d for every
// response with a 5xx status.
func WithAlerts(d *alert.Dispatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			if rec.status < http.StatusInternalServerError {
				return
			}
			d.Send(alert.New(alert.LevelError,
				fmt.Sprintf("Error %d en %s %s", rec.status, r.Method, r.URL.RequestURI()),
				alert.Field{Name: "Método", Value: r.Method},
				alert.Field{Name: "URL", Value: r.URL.RequestURI()},
				alert.Field{Name: "Status", Value: strconv.Itoa(rec.status)},
				alert.Field{Name: "Duración", Value: strconv.FormatInt(time.Since(start).Milliseconds(), 10) + "ms"},
				alert.Field{Name: "IP", Value: GetClientIP(r)},
			))
		})
	}
}
