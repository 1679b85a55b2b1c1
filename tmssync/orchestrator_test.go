package tmssync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/utils"
)

func TestEnabledDefaults(t *testing.T) {
	if !enabled(nil, true) {
		t.Error("nil flag should follow the default")
	}
	if enabled(nil, false) {
		t.Error("nil flag should follow the default")
	}
	f := false
	if enabled(&f, true) {
		t.Error("explicit false must win over the default")
	}
}

func TestConnStatUpdatesFullRun(t *testing.T) {
	counts := entityCounts{transports: 5, companies: 3, contacts: 2, vehicles: 1, invoices: 4}
	updates := connStatUpdates(counts, models.SyncRunStatusCompleted, time.Now(), false)

	for key, want := range map[string]int{
		"last_transports_count": 5,
		"last_companies_count":  3,
		"last_contacts_count":   2,
		"last_vehicles_count":   1,
		"last_invoices_count":   4,
	} {
		if got, ok := updates[key]; !ok || got != want {
			t.Errorf("%s = %v, want %d", key, got, want)
		}
	}
	if _, ok := updates["successful_syncs"]; !ok {
		t.Error("completed run must bump successful_syncs")
	}
	if _, ok := updates["failed_syncs"]; ok {
		t.Error("completed run must not bump failed_syncs")
	}
}

func TestConnStatUpdatesTagScoped(t *testing.T) {
	updates := connStatUpdates(entityCounts{transports: 2}, models.SyncRunStatusCompleted, time.Now(), true)

	// A tag run only touches transports; the other entity counts keep the
	// values the last full run wrote.
	for _, key := range []string{
		"last_companies_count",
		"last_contacts_count",
		"last_vehicles_count",
		"last_invoices_count",
	} {
		if _, ok := updates[key]; ok {
			t.Errorf("tag run must leave %s untouched", key)
		}
	}
	if got := updates["last_transports_count"]; got != 2 {
		t.Errorf("last_transports_count = %v, want 2", got)
	}
	for _, key := range []string{"total_syncs", "last_sync_at", "last_sync_status", "successful_syncs"} {
		if _, ok := updates[key]; !ok {
			t.Errorf("tag run must still update %s", key)
		}
	}
}

func TestConnStatUpdatesFailedRun(t *testing.T) {
	updates := connStatUpdates(entityCounts{}, models.SyncRunStatusFailed, time.Now(), false)
	if _, ok := updates["failed_syncs"]; !ok {
		t.Error("failed run must bump failed_syncs")
	}
	if _, ok := updates["successful_syncs"]; ok {
		t.Error("failed run must not bump successful_syncs")
	}
}

func TestMapRunToResponse(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	run := models.TmsSyncRun{
		ID:              7,
		ConnectionId:    3,
		Status:          models.SyncRunStatusCompleted,
		TriggeredBy:     models.SyncTriggeredManual,
		TransportsCount: 12,
		ErrorCount:      1,
		StartedAt:       &started,
		DurationMs:      1500,
	}
	resp := mapRunToResponse(run)
	if resp.ID != 7 || resp.TransportsCount != 12 || resp.ErrorCount != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.StartedAt == nil || *resp.StartedAt != "2026-03-01T08:00:00Z" {
		t.Fatalf("started_at = %v", resp.StartedAt)
	}
	if resp.FinishedAt != nil {
		t.Fatal("finished_at should stay nil for a running run")
	}
}

// stubDashdoc serves a tiny fixed account: two transports, one carrier
// company, one customer company that must be filtered out, one contact, one
// vehicle and one trucker.
func stubDashdoc(t *testing.T) *httptest.Server {
	t.Helper()
	page := func(w http.ResponseWriter, items ...string) {
		results := make([]json.RawMessage, 0, len(items))
		for _, it := range items {
			results = append(results, json.RawMessage(it))
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   len(results),
			"results": results,
		})
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/counters"):
			_, _ = w.Write([]byte(`{"transports": 2}`))
		case strings.HasPrefix(r.URL.Path, "/transports"):
			page(w,
				`{"uid":"t-1","status":"done","carrier":{"pk":11,"name":"Nord Fret"},"total_price":900}`,
				`{"uid":"t-2","status":"confirmed","carrier":{"pk":11,"name":"Nord Fret"},"total_price":450}`,
			)
		case strings.HasPrefix(r.URL.Path, "/companies"):
			page(w,
				`{"pk":11,"name":"Nord Fret","siret":"12345678901234"}`,
				`{"pk":12,"name":"Acme Retail","remote_id":"CLIENT-042"}`,
			)
		case strings.HasPrefix(r.URL.Path, "/contacts"):
			page(w, `{"uid":"c-1","first_name":"Lea","last_name":"Marchand"}`)
		case strings.HasPrefix(r.URL.Path, "/vehicles"):
			page(w, `{"pk":31,"license_plate":"aa-111-aa"}`)
		case strings.HasPrefix(r.URL.Path, "/trailers"):
			page(w)
		case strings.HasPrefix(r.URL.Path, "/manager-truckers"):
			page(w, `{"pk":41,"user":{"first_name":"Paul","last_name":"Girard"},"phone_number":"0612345678"}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestExecuteSyncIdempotent(t *testing.T) {
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

	srv := stubDashdoc(t)
	defer srv.Close()

	db := config.GetDB()
	conn := models.TmsConnection{
		OrganizationId: "org-test",
		Name:           "Test Account",
		TmsType:        models.TmsTypeDashdoc,
		ApiToken:       "test-token",
		ApiUrl:         srv.URL,
		Status:         models.ConnectionStatusConnected,
		SyncInvoices:   utils.NewFalse(),
	}
	if err := db.Create(&conn).Error; err != nil {
		t.Fatalf("create connection: %v", err)
	}

	ctx := utils.SetOrganizationIdInContext(context.Background(), "org-test")
	ctx = utils.SetSkipOrgScopeInContext(ctx, true)
	orch := NewOrchestrator(cache.NewService(logrus.New()), logrus.New())

	run1, err := orch.ExecuteSync(ctx, conn.ID, SyncOptions{TriggeredBy: models.SyncTriggeredManual})
	if err != nil {
		t.Fatalf("first ExecuteSync: %v", err)
	}
	if run1.Status != models.SyncRunStatusCompleted {
		t.Fatalf("run status = %s (%s)", run1.Status, run1.ErrorMessage)
	}
	if run1.TransportsCount != 2 {
		t.Errorf("transports count = %d", run1.TransportsCount)
	}
	if run1.CompaniesCount != 1 {
		t.Errorf("companies count = %d (customer company must be excluded)", run1.CompaniesCount)
	}

	run2, err := orch.ExecuteSync(ctx, conn.ID, SyncOptions{TriggeredBy: models.SyncTriggeredSystem})
	if err != nil {
		t.Fatalf("second ExecuteSync: %v", err)
	}
	if run2.Status != models.SyncRunStatusCompleted {
		t.Fatalf("second run status = %s", run2.Status)
	}

	// Re-syncing the same upstream records must update in place, not
	// duplicate.
	var orderCount, carrierCount int64
	if err := db.Model(&models.TransportOrder{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if err := db.Model(&models.Carrier{}).Count(&carrierCount).Error; err != nil {
		t.Fatalf("count carriers: %v", err)
	}
	if orderCount != 2 {
		t.Errorf("expected 2 orders after two runs, got %d", orderCount)
	}
	if carrierCount != 1 {
		t.Errorf("expected 1 carrier after two runs, got %d", carrierCount)
	}

	var updated models.TmsConnection
	if err := db.Where("id = ?", conn.ID).Take(&updated).Error; err != nil {
		t.Fatalf("reload connection: %v", err)
	}
	if updated.TotalSyncs != 2 || updated.SuccessfulSyncs != 2 {
		t.Errorf("connection stats = %d/%d", updated.TotalSyncs, updated.SuccessfulSyncs)
	}
	if updated.LastSyncAt == nil || updated.LastSyncStatus != models.SyncRunStatusCompleted {
		t.Errorf("last sync fields not updated: %+v", updated)
	}
}

func TestExecuteSyncRejectsInactiveConnection(t *testing.T) {
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

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	conn := models.TmsConnection{
		OrganizationId: "org-test",
		Name:           "Broken Account",
		TmsType:        models.TmsTypeDashdoc,
		ApiToken:       "bad",
		Status:         models.ConnectionStatusError,
	}
	if err := db.Create(&conn).Error; err != nil {
		t.Fatalf("create connection: %v", err)
	}

	ctx := utils.SetSkipOrgScopeInContext(context.Background(), true)
	orch := NewOrchestrator(cache.NewService(logrus.New()), logrus.New())

	if _, err := orch.ExecuteSync(ctx, conn.ID, SyncOptions{}); err != ErrConnectionNotActive {
		t.Fatalf("expected ErrConnectionNotActive, got %v", err)
	}

	var runs int64
	if err := db.Model(&models.TmsSyncRun{}).Where("connection_id = ?", conn.ID).Count(&runs).Error; err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 0 {
		t.Errorf("no run row may exist for a rejected sync, got %d", runs)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("tms-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=tms_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
