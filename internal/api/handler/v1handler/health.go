package v1handler

import (
	"chatrelay/pkg/alert"
	"chatrelay/pkg/controller"
	"chatrelay/pkg/logger"
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

// TimestampLayout formats response timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var startedAt = time.Now() //nolint: gochecknoglobals

// Health reports that the process is serving, with its uptime in seconds.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("status")
		e.Str("ok")
		e.FieldStart("timestamp")
		e.Str(now.UTC().Format(TimestampLayout))
		e.FieldStart("uptime")
		e.Float64(now.Sub(startedAt).Seconds())
		e.FieldStart("environment")
		e.Str(h.deps.Environment)
		e.ObjEnd()
	})
}

// SimulateError answers with a server error and raises an alert, to check
// that monitoring is wired end to end.
func (h *Handler) SimulateError(w http.ResponseWriter, r *http.Request) {
	logger.Error(r.Context(), "simulated error endpoint invoked")
	h.deps.Alerts.Send(alert.New(alert.LevelError, "🧪 Test de error generado desde /error endpoint",
		alert.Field{Name: "Tipo", Value: "Test Manual"},
		alert.Field{Name: "Endpoint", Value: r.URL.Path},
		alert.Field{Name: "Usuario", Value: controller.GetClientIP(r)},
	))

	writeJSON(w, http.StatusInternalServerError, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("error")
		e.Str("Error simulado para testing de monitoreo")
		e.FieldStart("timestamp")
		e.Str(time.Now().UTC().Format(TimestampLayout))
		e.ObjEnd()
	})
}
