// Package alert delivers operational alerts to a chat webhook. Alerts are
// queued by a Dispatcher and posted by a Notifier in the background so that
// request handling never waits on the webhook.
package alert

import (
	"context"
	"strings"
	"time"
)

// Level is the severity of an alert.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Color returns the embed color used for the level. Unknown levels use the
// error color.
func (l Level) Color() int {
	switch l {
	case LevelInfo:
		return 3447003
	case LevelWarn:
		return 16776960
	case LevelCritical:
		return 10038562
	default:
		return 15158332
	}
}

// Title returns the embed title for the level.
func (l Level) Title() string {
	return "🚨 Alerta: " + strings.ToUpper(string(l))
}

// Field is a named value attached to an alert. Fields keep their order.
type Field struct {
	Name  string
	Value string
}

// Alert is a single notification.
type Alert struct {
	Message string
	Level   Level
	Fields  []Field
	Time    time.Time // Time defaults to the moment the alert is sent.
}

// New creates an alert stamped with the current time.
func New(level Level, message string, fields ...Field) Alert {
	return Alert{
		Message: message,
		Level:   level,
		Fields:  fields,
		Time:    time.Now(),
	}
}

// Notifier sends alerts to an external channel.
//
//go:generate mockgen -package mockalert -source=alert.go -destination=mock/mockalert.go *
type Notifier interface {
	// Notify delivers a, returning an error when the channel rejected it.
	Notify(ctx context.Context, a Alert) error
}
