package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/utils"
)

// Notifier fans a batch of anomalies out to the configured alert channels.
// An unconfigured channel reports skipped, never failed.
type Notifier interface {
	Dispatch(ctx context.Context, anomalies []Anomaly) []AlertOutcome
}

type channel interface {
	name() string
	send(ctx context.Context, subject string, anomalies []Anomaly) error
	configured() bool
}

type multiNotifier struct {
	channels []channel
	logger   *logrus.Logger
}

// NewNotifier builds the default channel set: SMS and email gateways plus
// the ops pubsub topic. Channels read their configuration from env.
func NewNotifier(logger *logrus.Logger) Notifier {
	client := &http.Client{Timeout: 30 * time.Second}
	return &multiNotifier{
		logger: logger,
		channels: []channel{
			&smsChannel{http: client},
			&emailChannel{http: client},
			&pubsubChannel{},
		},
	}
}

func (n *multiNotifier) Dispatch(ctx context.Context, anomalies []Anomaly) []AlertOutcome {
	subject := alertSubject(anomalies)
	outcomes := make([]AlertOutcome, 0, len(n.channels))
	for _, ch := range n.channels {
		if !ch.configured() {
			outcomes = append(outcomes, AlertOutcome{Channel: ch.name(), Status: models.AlertStatusSkipped})
			continue
		}
		if err := ch.send(ctx, subject, anomalies); err != nil {
			config.LogError(n.logger, "jobs", "Dispatch", "alert channel failed", ch.name(), err)
			outcomes = append(outcomes, AlertOutcome{Channel: ch.name(), Status: models.AlertStatusFailed, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, AlertOutcome{Channel: ch.name(), Status: models.AlertStatusSent})
	}
	return outcomes
}

func alertSubject(anomalies []Anomaly) string {
	return fmt.Sprintf("[TMS sync] %d anomalies, %d critical", len(anomalies), countCritical(anomalies))
}

func alertLines(anomalies []Anomaly) []string {
	lines := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", a.Severity, a.Type, a.Message))
	}
	return lines
}

// smsChannel posts a compact text body to an SMS gateway webhook, with every
// recipient normalized to E.164.
type smsChannel struct {
	http *http.Client
}

func (s *smsChannel) name() string { return models.AlertChannelSms }

func (s *smsChannel) configured() bool {
	return strings.TrimSpace(os.Getenv("ALERT_SMS_GATEWAY_URL")) != "" &&
		strings.TrimSpace(os.Getenv("ALERT_SMS_RECIPIENTS")) != ""
}

func (s *smsChannel) send(ctx context.Context, subject string, anomalies []Anomaly) error {
	recipients := make([]string, 0)
	for _, raw := range strings.Split(os.Getenv("ALERT_SMS_RECIPIENTS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		formatted, err := utils.FormatPhoneE164(raw, "")
		if err != nil {
			return fmt.Errorf("recipient %q: %w", raw, err)
		}
		recipients = append(recipients, formatted)
	}
	recipients = utils.UniqueSlice(recipients)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid sms recipients")
	}

	body := subject
	if len(anomalies) > 0 {
		body = subject + " | " + alertLines(anomalies)[0]
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"to":      recipients,
		"message": body,
	})
	return postJSON(ctx, s.http, os.Getenv("ALERT_SMS_GATEWAY_URL"), payload)
}

// emailChannel posts subject plus a minimal HTML body to a mail gateway
// webhook.
type emailChannel struct {
	http *http.Client
}

func (e *emailChannel) name() string { return models.AlertChannelEmail }

func (e *emailChannel) configured() bool {
	return strings.TrimSpace(os.Getenv("ALERT_EMAIL_GATEWAY_URL")) != "" &&
		strings.TrimSpace(os.Getenv("ALERT_EMAIL_RECIPIENTS")) != ""
}

func (e *emailChannel) send(ctx context.Context, subject string, anomalies []Anomaly) error {
	var html bytes.Buffer
	html.WriteString("<h3>" + subject + "</h3><ul>")
	for _, line := range alertLines(anomalies) {
		html.WriteString("<li>" + line + "</li>")
	}
	html.WriteString("</ul>")

	recipients := make([]string, 0)
	for _, raw := range strings.Split(os.Getenv("ALERT_EMAIL_RECIPIENTS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !utils.IsValidEmail(raw) {
			continue
		}
		recipients = append(recipients, raw)
	}
	recipients = utils.UniqueSlice(recipients)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid email recipients")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"to":      recipients,
		"subject": subject,
		"html":    html.String(),
	})
	return postJSON(ctx, e.http, os.Getenv("ALERT_EMAIL_GATEWAY_URL"), payload)
}

// pubsubChannel publishes to the ops alert topic for downstream automation.
type pubsubChannel struct{}

func (p *pubsubChannel) name() string { return models.AlertChannelPush }

func (p *pubsubChannel) configured() bool {
	return strings.TrimSpace(os.Getenv("OPS_ALERT_TOPIC")) != ""
}

func (p *pubsubChannel) send(ctx context.Context, subject string, anomalies []Anomaly) error {
	anomaliesJSON, _ := json.Marshal(anomalies)
	severity := models.AnomalySeverityWarning
	if countCritical(anomalies) > 0 {
		severity = models.AnomalySeverityCritical
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	_, err := config.PublishOpsAlert(ctx, config.OpsAlertMessage{
		Severity:      severity,
		Subject:       subject,
		Body:          strings.Join(alertLines(anomalies), "\n"),
		Anomalies:     anomaliesJSON,
		DetectedAt:    time.Now(),
		CorrelationId: correlationId,
	})
	return err
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return nil
}
