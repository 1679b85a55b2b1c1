package jobs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/models"
)

func sampleAnomalies() []Anomaly {
	return []Anomaly{{
		Type:         models.AnomalyTypeNoSync,
		Severity:     models.AnomalySeverityCritical,
		ConnectionId: 1,
		Message:      "connection 1 has not synced for 11m0s",
		DetectedAt:   time.Now(),
	}}
}

func TestDispatchSkipsUnconfiguredChannels(t *testing.T) {
	t.Setenv("ALERT_SMS_GATEWAY_URL", "")
	t.Setenv("ALERT_EMAIL_GATEWAY_URL", "")
	t.Setenv("OPS_ALERT_TOPIC", "")

	n := NewNotifier(logrus.New())
	outcomes := n.Dispatch(context.Background(), sampleAnomalies())

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != models.AlertStatusSkipped {
			t.Errorf("channel %s: status = %s, want skipped", o.Channel, o.Status)
		}
	}
}

func TestSmsChannelNormalizesRecipients(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("ALERT_SMS_GATEWAY_URL", srv.URL)
	t.Setenv("ALERT_SMS_RECIPIENTS", "06 12 34 56 78")

	ch := &smsChannel{http: srv.Client()}
	if !ch.configured() {
		t.Fatal("channel should be configured")
	}
	if err := ch.send(context.Background(), "subject", sampleAnomalies()); err != nil {
		t.Fatalf("send: %v", err)
	}

	to, ok := got["to"].([]interface{})
	if !ok || len(to) != 1 {
		t.Fatalf("unexpected payload: %v", got)
	}
	if to[0] != "+33612345678" {
		t.Errorf("recipient not normalized to E.164: %v", to[0])
	}
}

func TestEmailChannelBuildsHTML(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("ALERT_EMAIL_GATEWAY_URL", srv.URL)
	t.Setenv("ALERT_EMAIL_RECIPIENTS", "ops@example.com")

	ch := &emailChannel{http: srv.Client()}
	if err := ch.send(context.Background(), "subject", sampleAnomalies()); err != nil {
		t.Fatalf("send: %v", err)
	}

	html, _ := got["html"].(string)
	if !strings.Contains(html, "NO_SYNC") || !strings.Contains(html, "<li>") {
		t.Errorf("unexpected html body: %q", html)
	}
}

func TestEmailChannelFiltersAndDedupesRecipients(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("ALERT_EMAIL_GATEWAY_URL", srv.URL)
	t.Setenv("ALERT_EMAIL_RECIPIENTS", "ops@example.com, not-an-email, ops@example.com , oncall@example.com")

	ch := &emailChannel{http: srv.Client()}
	if err := ch.send(context.Background(), "subject", sampleAnomalies()); err != nil {
		t.Fatalf("send: %v", err)
	}

	to, ok := got["to"].([]interface{})
	if !ok || len(to) != 2 {
		t.Fatalf("unexpected recipients: %v", got["to"])
	}
	if to[0] != "ops@example.com" || to[1] != "oncall@example.com" {
		t.Errorf("unexpected recipients: %v", to)
	}
}

func TestEmailChannelErrorsWithoutValidRecipients(t *testing.T) {
	t.Setenv("ALERT_EMAIL_GATEWAY_URL", "http://gateway.invalid")
	t.Setenv("ALERT_EMAIL_RECIPIENTS", "not-an-email, also not one")

	ch := &emailChannel{http: http.DefaultClient}
	if err := ch.send(context.Background(), "subject", sampleAnomalies()); err == nil {
		t.Fatal("expected an error when every recipient is invalid")
	}
}

func TestDispatchReportsGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	t.Setenv("ALERT_SMS_GATEWAY_URL", srv.URL)
	t.Setenv("ALERT_SMS_RECIPIENTS", "0612345678")
	t.Setenv("ALERT_EMAIL_GATEWAY_URL", "")
	t.Setenv("OPS_ALERT_TOPIC", "")

	n := NewNotifier(logrus.New())
	outcomes := n.Dispatch(context.Background(), sampleAnomalies())

	var sms *AlertOutcome
	for i := range outcomes {
		if outcomes[i].Channel == models.AlertChannelSms {
			sms = &outcomes[i]
		}
	}
	if sms == nil || sms.Status != models.AlertStatusFailed || sms.Error == "" {
		t.Fatalf("unexpected sms outcome: %+v", sms)
	}
}
