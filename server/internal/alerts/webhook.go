package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/server/internal/config"
	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
)

// WebhookSink posts events to Slack, Teams or generic HTTP endpoints.
// Delivery runs in its own goroutine; failures are logged and counted.
type WebhookSink struct {
	webhooks []config.WebhookConfig
	client   *http.Client

	// done, if set, is called after each asynchronous delivery.
	done func()
}

// NewWebhookSink creates a sink for the configured targets.
func NewWebhookSink(webhooks []config.WebhookConfig) *WebhookSink {
	return &WebhookSink{
		webhooks: webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Send schedules delivery of ev to every target and returns immediately.
func (s *WebhookSink) Send(ev Event) error {
	go s.deliver(ev)
	return nil
}

func (s *WebhookSink) deliver(ev Event) {
	if s.done != nil {
		defer s.done()
	}
	for _, wh := range s.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = s.sendSlack(url, ev)
		case "teams":
			err = s.sendTeams(url, ev)
		case "http":
			err = s.sendHTTP(url, ev)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			metrics.SinkErrors.WithLabelValues("webhook_" + wh.Type).Inc()
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"patient", ev.PatientID,
				"condition", ev.Condition,
				"err", err,
			)
		} else {
			slog.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"patient", ev.PatientID,
				"condition", ev.Condition,
			)
		}
	}
}

func (s *WebhookSink) sendSlack(url string, ev Event) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", severityLabel(ev.Condition), message(ev)),
	})
	return s.post(url, body)
}

func (s *WebhookSink) sendTeams(url string, ev Event) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(ev.Condition),
		"summary":    string(ev.Condition),
		"title":      fmt.Sprintf("CardioWatch Alert: %s", ev.Condition),
		"text":       message(ev),
	}
	body, _ := json.Marshal(payload)
	return s.post(url, body)
}

func (s *WebhookSink) sendHTTP(url string, ev Event) error {
	body, _ := json.Marshal(map[string]interface{}{"alert": ev})
	return s.post(url, body)
}

func (s *WebhookSink) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func message(ev Event) string {
	return fmt.Sprintf("%s for patient %s at %s", ev.Condition, ev.PatientID,
		time.UnixMilli(ev.Timestamp).UTC().Format(time.RFC3339))
}

// critical reports whether c describes an immediately dangerous reading
// rather than a trend.
func critical(c types.Condition) bool {
	switch c {
	case types.CriticalSystolic, types.CriticalDiastolic, types.RapidOxygenDrop,
		types.HypotensiveHypoxemia:
		return true
	}
	return false
}

func severityLabel(c types.Condition) string {
	if critical(c) {
		return "[CRITICAL]"
	}
	return "[WARNING]"
}

func severityColor(c types.Condition) string {
	if critical(c) {
		return "FF4F6A"
	}
	return "FFAB40"
}
