package alert

import (
	"chatrelay/pkg/logger"
	"chatrelay/pkg/serrors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Footer is the footer text of every embed posted by Webhook.
const Footer = "chatrelay - Sistema de Monitoreo"

// maxErrorBody bounds how much of a rejected response is kept in the error.
const maxErrorBody = 512

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Webhook posts alerts as Discord-compatible embeds. It is safe for
// concurrent use.
type Webhook struct {
	httpClient  *http.Client // httpClient performs the webhook requests
	url         string       // url is the webhook endpoint; alerts are only logged when empty
	environment string       // environment is reported in every alert
}

// Ensure Webhook conforms to the Notifier interface at compile time.
var _ Notifier = (*Webhook)(nil)

// NewWebhook constructs a Webhook posting to url with httpClient. An empty url
// yields a Webhook that only logs the alerts it receives.
func NewWebhook(httpClient *http.Client, url, environment string) *Webhook {
	return &Webhook{
		httpClient:  httpClient,
		url:         url,
		environment: environment,
	}
}

// Enabled reports whether alerts leave the process.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

// Notify posts a to the webhook.
func (w *Webhook) Notify(ctx context.Context, a Alert) error {
	if !w.Enabled() {
		logger.Warn(ctx, "alert webhook not configured, alert not sent", zap.String("alert", a.Message))

		return nil
	}

	bodyBytes, err := json.Marshal(w.payload(a))
	if err != nil {
		return fmt.Errorf("could not marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, strings.NewReader(string(bodyBytes)))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return serrors.Wrap(serrors.ErrUnavailable, err, "could not send alert")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return fmt.Errorf("webhook rejected alert with status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	return nil
}

func (w *Webhook) payload(a Alert) webhookPayload {
	at := a.Time
	if at.IsZero() {
		at = time.Now()
	}

	fields := make([]embedField, 0, len(a.Fields)+2)
	fields = append(fields,
		embedField{Name: "🌐 Entorno", Value: w.environment, Inline: true},
		embedField{Name: "⏰ Timestamp", Value: at.UTC().Format("2006-01-02T15:04:05.000Z07:00"), Inline: true},
	)
	for _, f := range a.Fields {
		fields = append(fields, embedField{Name: f.Name, Value: f.Value, Inline: true})
	}

	level := a.Level
	if level == "" {
		level = LevelError
	}
	e := embed{
		Title:       level.Title(),
		Description: a.Message,
		Color:       level.Color(),
		Fields:      fields,
	}
	e.Footer.Text = Footer

	return webhookPayload{Embeds: []embed{e}}
}
