package jobs

import (
	"testing"
	"time"

	"github.com/symphonia/tms_backend/models"
)

func minutesAgo(now time.Time, m int) *time.Time {
	t := now.Add(-time.Duration(m) * time.Minute)
	return &t
}

func TestDetectAnomaliesNoSync(t *testing.T) {
	now := time.Now()
	conns := []models.TmsConnection{{
		ID:         1,
		Status:     models.ConnectionStatusConnected,
		LastSyncAt: minutesAgo(now, 11),
	}}

	anomalies := detectAnomalies(conns, nil, now)
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly one anomaly, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.Type != models.AnomalyTypeNoSync || a.Severity != models.AnomalySeverityCritical {
		t.Fatalf("unexpected anomaly: %+v", a)
	}
	if a.ConnectionId != 1 {
		t.Errorf("connection id = %d", a.ConnectionId)
	}
}

func TestDetectAnomaliesFreshSyncIsClean(t *testing.T) {
	now := time.Now()
	conns := []models.TmsConnection{{
		ID:         1,
		Status:     models.ConnectionStatusConnected,
		LastSyncAt: minutesAgo(now, 1),
	}}
	lastRuns := map[uint]models.TmsSyncRun{
		1: {ConnectionId: 1, Status: models.SyncRunStatusCompleted, DurationMs: 900},
	}

	if anomalies := detectAnomalies(conns, lastRuns, now); len(anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %+v", anomalies)
	}
}

func TestDetectAnomaliesSlowSync(t *testing.T) {
	now := time.Now()
	conns := []models.TmsConnection{{
		ID:         2,
		Status:     models.ConnectionStatusConnected,
		LastSyncAt: minutesAgo(now, 1),
	}}
	lastRuns := map[uint]models.TmsSyncRun{
		2: {ConnectionId: 2, Status: models.SyncRunStatusCompleted, DurationMs: (3 * time.Minute).Milliseconds()},
	}

	anomalies := detectAnomalies(conns, lastRuns, now)
	if len(anomalies) != 1 || anomalies[0].Type != models.AnomalyTypeSlowSync {
		t.Fatalf("expected one SLOW_SYNC, got %+v", anomalies)
	}
	if anomalies[0].Severity != models.AnomalySeverityWarning {
		t.Errorf("slow sync severity = %s", anomalies[0].Severity)
	}
}

func TestDetectAnomaliesFailedRun(t *testing.T) {
	now := time.Now()
	conns := []models.TmsConnection{{
		ID:         3,
		Status:     models.ConnectionStatusConnected,
		LastSyncAt: minutesAgo(now, 2),
	}}
	lastRuns := map[uint]models.TmsSyncRun{
		3: {ConnectionId: 3, Status: models.SyncRunStatusFailed, ErrorMessage: "boom", DurationMs: 500},
	}

	anomalies := detectAnomalies(conns, lastRuns, now)
	if len(anomalies) != 1 || anomalies[0].Type != models.AnomalyTypeSyncError {
		t.Fatalf("expected one SYNC_ERROR, got %+v", anomalies)
	}
}

func TestDetectAnomaliesSkipsDisabledAndInactive(t *testing.T) {
	now := time.Now()
	off := false
	conns := []models.TmsConnection{
		{ID: 4, Status: models.ConnectionStatusConnected, AutoSync: &off},
		{ID: 5, Status: models.ConnectionStatusDisconnected},
		{ID: 6, Status: models.ConnectionStatusError},
	}

	if anomalies := detectAnomalies(conns, nil, now); len(anomalies) != 0 {
		t.Fatalf("disabled or inactive connections must not alarm, got %+v", anomalies)
	}
}

func TestCountCritical(t *testing.T) {
	anomalies := []Anomaly{
		{Severity: models.AnomalySeverityCritical},
		{Severity: models.AnomalySeverityWarning},
		{Severity: models.AnomalySeverityCritical},
	}
	if got := countCritical(anomalies); got != 2 {
		t.Fatalf("countCritical = %d", got)
	}
}
