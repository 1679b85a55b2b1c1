package tmssync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/utils"
)

// An upstream outage must never garbage-collect the carrier mirror: a sweep
// that failed to fetch skips reconciliation, and the next healthy sweep
// removes what has really vanished.
func TestDirectorySweepSkipsReconcileOnFetchFailure(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	defer func() { _ = dockerRmForce(mysqlName) }()

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "tms_test")
	t.Setenv("DASHDOC_PAGE_DELAY_MS", "0")
	t.Setenv("DASHDOC_RATE_LIMIT_PER_MIN", "600000")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	db := config.GetDB()
	conn := models.TmsConnection{
		OrganizationId: "org-test",
		Name:           "Outage Account",
		TmsType:        models.TmsTypeDashdoc,
		ApiToken:       "test-token",
		ApiUrl:         failing.URL,
		Status:         models.ConnectionStatusConnected,
		AutoSync:       utils.NewTrue(),
	}
	if err := db.Create(&conn).Error; err != nil {
		t.Fatalf("create connection: %v", err)
	}

	stale := models.Carrier{
		ExternalSource: models.ExternalSourceDashdoc,
		ExternalId:     "carrier-old",
		OrganizationId: "org-test",
		ConnectionId:   conn.ID,
		Name:           "Vieux Fret",
		SyncedAt:       time.Now().Add(-time.Hour),
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("create carrier: %v", err)
	}

	ctx := utils.SetSkipOrgScopeInContext(context.Background(), true)
	orch := NewOrchestrator(cache.NewService(logrus.New()), logrus.New())

	result, err := orch.SyncCarrierDirectory(ctx)
	if err != nil {
		t.Fatalf("sweep during outage: %v", err)
	}
	if result.Errors == 0 {
		t.Fatal("sweep against a failing upstream must record errors")
	}
	if result.Removed != 0 {
		t.Fatalf("sweep with fetch failures removed %d carriers", result.Removed)
	}
	var count int64
	if err := db.Model(&models.Carrier{}).Count(&count).Error; err != nil {
		t.Fatalf("count carriers: %v", err)
	}
	if count != 1 {
		t.Fatalf("stale carrier must survive the failed sweep, got %d rows", count)
	}

	// Healthy upstream that no longer lists the carrier: now reconciliation
	// may remove it.
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":0,"results":[]}`))
	}))
	defer healthy.Close()
	if err := db.Model(&models.TmsConnection{}).Where("id = ?", conn.ID).
		Update("api_url", healthy.URL).Error; err != nil {
		t.Fatalf("repoint connection: %v", err)
	}

	result, err = orch.SyncCarrierDirectory(ctx)
	if err != nil {
		t.Fatalf("healthy sweep: %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("healthy sweep removed %d carriers, want 1", result.Removed)
	}
	if err := db.Model(&models.Carrier{}).Count(&count).Error; err != nil {
		t.Fatalf("count carriers: %v", err)
	}
	if count != 0 {
		t.Fatalf("vanished carrier must be reconciled away, got %d rows", count)
	}
}
