package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/models"
)

// Anomaly detection thresholds.
const (
	noSyncAfter   = 10 * time.Minute
	slowSyncAbove = 2 * time.Minute
)

// Anomaly is one detected sync-health problem on one connection.
type Anomaly struct {
	Type         string    `json:"type"`
	Severity     string    `json:"severity"`
	ConnectionId uint      `json:"connection_id"`
	Message      string    `json:"message"`
	DetectedAt   time.Time `json:"detected_at"`
}

// AlertOutcome records how one notification channel handled a dispatch.
type AlertOutcome struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// detectAnomalies inspects every auto-syncing connection. A connection that
// has not synced for over ten minutes is critical; a run slower than two
// minutes is a warning; a failed last run is an error.
func detectAnomalies(conns []models.TmsConnection, lastRuns map[uint]models.TmsSyncRun, now time.Time) []Anomaly {
	var anomalies []Anomaly
	for _, conn := range conns {
		if conn.Status != models.ConnectionStatusConnected {
			continue
		}
		if conn.AutoSync != nil && !*conn.AutoSync {
			continue
		}

		if conn.LastSyncAt == nil || now.Sub(*conn.LastSyncAt) > noSyncAfter {
			since := "never"
			if conn.LastSyncAt != nil {
				since = now.Sub(*conn.LastSyncAt).Round(time.Second).String()
			}
			anomalies = append(anomalies, Anomaly{
				Type:         models.AnomalyTypeNoSync,
				Severity:     models.AnomalySeverityCritical,
				ConnectionId: conn.ID,
				Message:      fmt.Sprintf("connection %d has not synced for %s", conn.ID, since),
				DetectedAt:   now,
			})
		}

		run, ok := lastRuns[conn.ID]
		if !ok {
			continue
		}
		if run.DurationMs > slowSyncAbove.Milliseconds() {
			anomalies = append(anomalies, Anomaly{
				Type:         models.AnomalyTypeSlowSync,
				Severity:     models.AnomalySeverityWarning,
				ConnectionId: conn.ID,
				Message:      fmt.Sprintf("last sync of connection %d took %dms", conn.ID, run.DurationMs),
				DetectedAt:   now,
			})
		}
		if run.Status == models.SyncRunStatusFailed {
			anomalies = append(anomalies, Anomaly{
				Type:         models.AnomalyTypeSyncError,
				Severity:     models.AnomalySeverityError,
				ConnectionId: conn.ID,
				Message:      fmt.Sprintf("last sync of connection %d failed: %s", conn.ID, run.ErrorMessage),
				DetectedAt:   now,
			})
		}
	}
	return anomalies
}

func countCritical(anomalies []Anomaly) int {
	n := 0
	for _, a := range anomalies {
		if a.Severity == models.AnomalySeverityCritical {
			n++
		}
	}
	return n
}

// monitoring is the watchdog tick: detect anomalies, persist the snapshot,
// and page on anything critical.
func (r *Runner) monitoring(ctx context.Context) error {
	ctx = jobContext(ctx)
	db := config.GetDB().WithContext(ctx)
	now := time.Now()

	var conns []models.TmsConnection
	if err := db.Find(&conns).Error; err != nil {
		return err
	}

	lastRuns := map[uint]models.TmsSyncRun{}
	for _, conn := range conns {
		var run models.TmsSyncRun
		err := db.Where("connection_id = ? AND status <> ?", conn.ID, models.SyncRunStatusRunning).
			Order("id desc").
			Take(&run).Error
		if err == nil {
			lastRuns[conn.ID] = run
		}
	}

	anomalies := detectAnomalies(conns, lastRuns, now)
	critical := countCritical(anomalies)

	var outcomes []AlertOutcome
	if critical > 0 && r.notifier != nil {
		outcomes = r.notifier.Dispatch(ctx, anomalies)
	}

	jobsJSON, _ := json.Marshal(r.Status())
	anomaliesJSON, _ := json.Marshal(anomalies)
	alertsJSON, _ := json.Marshal(outcomes)
	entry := models.MonitoringLogEntry{
		CheckedAt:     now,
		JobsJSON:      jobsJSON,
		AnomaliesJSON: anomaliesJSON,
		AnomalyCount:  len(anomalies),
		CriticalCount: critical,
		AlertsSent:    anySent(outcomes),
		AlertsJSON:    alertsJSON,
	}
	if err := db.Create(&entry).Error; err != nil {
		return err
	}

	if len(anomalies) > 0 {
		r.logger.WithFields(logrus.Fields{
			"anomalies": len(anomalies),
			"critical":  critical,
		}).Warn("sync anomalies detected")
	}
	return nil
}

func anySent(outcomes []AlertOutcome) bool {
	for _, o := range outcomes {
		if o.Status == models.AlertStatusSent {
			return true
		}
	}
	return false
}
