package tmssync

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/dashdoc"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/utils"
	"gorm.io/gorm"
)

// ErrConnectionNotActive rejects a sync against a connection that is not in
// the connected state.
var ErrConnectionNotActive = errors.New("connection is not active")

var validate = validator.New()

// Orchestrator coordinates connection lifecycle and sync execution against
// one external TMS.
type Orchestrator struct {
	cache  *cache.Service
	logger *logrus.Logger
}

func NewOrchestrator(cacheService *cache.Service, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{cache: cacheService, logger: logger}
}

// GetConnection returns (nil, nil) when the connection does not exist.
func (o *Orchestrator) GetConnection(ctx context.Context, id uint) (*models.TmsConnection, error) {
	var conn models.TmsConnection
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

// CreateConnection validates and persists a connection, then probes it
// immediately so the caller learns right away whether the credentials work.
func (o *Orchestrator) CreateConnection(ctx context.Context, input *NewConnectionInput) (*models.TmsConnection, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization_id is required")
	}

	conn := models.TmsConnection{
		OrganizationId:      organizationId,
		Name:                input.Name,
		TmsType:             input.TmsType,
		ApiToken:            input.ApiToken,
		ApiUrl:              input.ApiUrl,
		Status:              models.ConnectionStatusPending,
		AutoSync:            input.AutoSync,
		SyncIntervalMinutes: input.SyncIntervalMinutes,
		SyncTransports:      input.SyncTransports,
		SyncCompanies:       input.SyncCompanies,
		SyncContacts:        input.SyncContacts,
		SyncVehicles:        input.SyncVehicles,
		SyncInvoices:        input.SyncInvoices,
		TransportLimit:      input.TransportLimit,
		DaysToSync:          input.DaysToSync,
	}
	db := config.GetDB().WithContext(ctx)
	if err := db.Create(&conn).Error; err != nil {
		return nil, err
	}

	if _, err := o.TestConnection(ctx, conn.ID); err != nil {
		config.LogError(o.logger, "tmssync", "CreateConnection", "initial probe failed", conn.ID, err)
	}

	if err := db.Where("id = ?", conn.ID).Take(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

// TestConnection probes the upstream account and records the outcome on the
// connection row.
func (o *Orchestrator) TestConnection(ctx context.Context, id uint) (*TestResult, error) {
	db := config.GetDB().WithContext(ctx)

	var conn models.TmsConnection
	if err := db.Where("id = ?", id).Take(&conn).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	result := &TestResult{TestedAt: now}

	client, err := dashdoc.NewClient(conn.ApiUrl, conn.ApiToken)
	if err != nil {
		result.Message = err.Error()
	} else {
		result.Success, result.Message = client.TestConnection(ctx)
	}

	status := models.ConnectionStatusError
	errorMessage := result.Message
	if result.Success {
		status = models.ConnectionStatusConnected
		errorMessage = ""
	}
	if err := db.Model(&conn).Updates(map[string]interface{}{
		"status":               status,
		"error_message":        errorMessage,
		"last_connection_test": now,
	}).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteSync runs one full sync for a connected connection. Per-record
// failures are recorded as TmsSyncError rows and never abort the run; a fetch
// failure aborts its entity segment only, segments already committed stay.
func (o *Orchestrator) ExecuteSync(ctx context.Context, id uint, opts SyncOptions) (*models.TmsSyncRun, error) {
	db := config.GetDB().WithContext(ctx)

	var conn models.TmsConnection
	if err := db.Where("id = ?", id).Take(&conn).Error; err != nil {
		return nil, err
	}
	if conn.Status != models.ConnectionStatusConnected {
		return nil, ErrConnectionNotActive
	}

	triggeredBy := opts.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = models.SyncTriggeredManual
	}

	startedAt := time.Now()
	run := models.TmsSyncRun{
		ConnectionId:   conn.ID,
		OrganizationId: conn.OrganizationId,
		TmsType:        conn.TmsType,
		Status:         models.SyncRunStatusRunning,
		TriggeredBy:    triggeredBy,
		StartedAt:      &startedAt,
	}
	if err := db.Create(&run).Error; err != nil {
		return nil, err
	}
	o.publishStatus(conn.ID, "running", run.ID, conn.LastSyncAt, 0)

	tagged := opts.Tag != ""

	client, err := dashdoc.NewClient(conn.ApiUrl, conn.ApiToken)
	if err != nil {
		return o.finalizeRun(ctx, &conn, &run, startedAt, entityCounts{}, 1, err.Error(), tagged)
	}

	rec := &runRecorder{db: db, runID: run.ID, organizationId: conn.OrganizationId}
	counts := entityCounts{}

	if tagged {
		counts.transports = o.syncTransports(ctx, db, client, &conn, rec, opts.Tag)
	} else {
		if enabled(conn.SyncTransports, true) {
			counts.transports = o.syncTransports(ctx, db, client, &conn, rec, "")
		}
		if enabled(conn.SyncCompanies, true) {
			counts.companies = o.syncCompanies(ctx, db, client, &conn, rec)
		}
		if enabled(conn.SyncContacts, true) {
			counts.contacts = o.syncContacts(ctx, db, client, &conn, rec)
		}
		if enabled(conn.SyncVehicles, true) {
			counts.vehicles = o.syncVehicles(ctx, db, client, &conn, rec)
		}
		if enabled(conn.SyncInvoices, false) {
			counts.invoices = o.syncInvoices(ctx, db, client, &conn, rec)
		}
	}

	return o.finalizeRun(ctx, &conn, &run, startedAt, counts, rec.errorCount, rec.firstMessage, tagged)
}

type entityCounts struct {
	transports int
	companies  int
	contacts   int
	vehicles   int
	invoices   int
}

func (c entityCounts) total() int {
	return c.transports + c.companies + c.contacts + c.vehicles + c.invoices
}

func enabled(flag *bool, def bool) bool {
	return utils.DereferencePtr(flag, def)
}

// connStatUpdates builds the rolling-stat columns for one finished run. A
// tag-scoped run only syncs the tagged transports, so it must not overwrite
// the per-entity counts the last full run left behind.
func connStatUpdates(counts entityCounts, status string, finishedAt time.Time, tagged bool) map[string]interface{} {
	updates := map[string]interface{}{
		"total_syncs":           gorm.Expr("total_syncs + 1"),
		"last_transports_count": counts.transports,
		"last_sync_at":          finishedAt,
		"last_sync_status":      status,
	}
	if !tagged {
		updates["last_companies_count"] = counts.companies
		updates["last_contacts_count"] = counts.contacts
		updates["last_vehicles_count"] = counts.vehicles
		updates["last_invoices_count"] = counts.invoices
	}
	if status == models.SyncRunStatusCompleted {
		updates["successful_syncs"] = gorm.Expr("successful_syncs + 1")
	} else {
		updates["failed_syncs"] = gorm.Expr("failed_syncs + 1")
	}
	return updates
}

func (o *Orchestrator) finalizeRun(ctx context.Context, conn *models.TmsConnection, run *models.TmsSyncRun, startedAt time.Time, counts entityCounts, errorCount int, errorMessage string, tagged bool) (*models.TmsSyncRun, error) {
	db := config.GetDB().WithContext(ctx)

	finishedAt := time.Now()
	durationMs := finishedAt.Sub(startedAt).Milliseconds()
	status := models.SyncRunStatusCompleted
	if errorCount > 0 && counts.total() == 0 {
		status = models.SyncRunStatusFailed
	}
	if status == models.SyncRunStatusCompleted {
		errorMessage = ""
	}

	if err := db.Model(run).Updates(map[string]interface{}{
		"status":           status,
		"finished_at":      finishedAt,
		"duration_ms":      durationMs,
		"transports_count": counts.transports,
		"companies_count":  counts.companies,
		"contacts_count":   counts.contacts,
		"vehicles_count":   counts.vehicles,
		"invoices_count":   counts.invoices,
		"error_count":      errorCount,
		"error_message":    errorMessage,
	}).Error; err != nil {
		return nil, err
	}

	connUpdates := connStatUpdates(counts, status, finishedAt, tagged)
	if err := db.Model(&models.TmsConnection{}).Where("id = ?", conn.ID).Updates(connUpdates).Error; err != nil {
		return nil, err
	}

	// Drop stale cached views so the next read reflects this run.
	o.cache.Delete(cache.CountersKey(conn.ID))
	o.cache.Invalidate(cache.OrdersPattern)
	if counts.companies > 0 {
		o.cache.Invalidate(cache.CarriersPattern)
	}
	o.publishStatus(conn.ID, status, run.ID, &finishedAt, errorCount)

	if err := db.Where("id = ?", run.ID).Take(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (o *Orchestrator) publishStatus(connectionID uint, state string, runID uint, lastSyncAt *time.Time, errorCount int) {
	o.cache.Set(cache.SyncStatusKey(connectionID), SyncStatus{
		ConnectionId: connectionID,
		State:        state,
		RunId:        runID,
		LastSyncAt:   lastSyncAt,
		ErrorCount:   errorCount,
		UpdatedAt:    time.Now(),
	}, cache.TTLStatus)
}

// runRecorder counts and persists per-record and per-segment failures for
// one run.
type runRecorder struct {
	db             *gorm.DB
	runID          uint
	organizationId string
	errorCount     int
	firstMessage   string
}

func (r *runRecorder) record(ctx context.Context, entityType string, externalId string, code string, message string, payload []byte, retryable bool) {
	r.errorCount++
	if r.firstMessage == "" {
		r.firstMessage = message
	}
	errRec := models.TmsSyncError{
		SyncRunId:      r.runID,
		OrganizationId: r.organizationId,
		EntityType:     entityType,
		ExternalId:     externalId,
		ErrorCode:      code,
		Message:        message,
		PayloadJSON:    payload,
		Retryable:      retryable,
	}
	_ = r.db.WithContext(ctx).Create(&errRec).Error
}

func (o *Orchestrator) syncTransports(ctx context.Context, db *gorm.DB, client *dashdoc.Client, conn *models.TmsConnection, rec *runRecorder, tag string) int {
	raws, _, fetchErr := client.FetchAll(ctx, dashdoc.EntityTransports, dashdoc.FetchOptions{
		Limit:      conn.TransportLimit,
		DaysToSync: conn.DaysToSync,
		Tag:        tag,
	})
	count := 0
	for _, raw := range raws {
		order, err := dashdoc.MapTransport(raw)
		if err != nil {
			rec.record(ctx, "transport", "", "invalid_payload", err.Error(), raw, false)
			continue
		}
		if err := upsertOrder(ctx, db, conn, order); err != nil {
			rec.record(ctx, "transport", order.ExternalId, "upsert_failed", err.Error(), raw, true)
			continue
		}
		count++
	}
	if fetchErr != nil {
		rec.record(ctx, "transport", "", "fetch_failed", fetchErr.Error(), nil, true)
	}
	return count
}

func (o *Orchestrator) syncCompanies(ctx context.Context, db *gorm.DB, client *dashdoc.Client, conn *models.TmsConnection, rec *runRecorder) int {
	raws, _, fetchErr := client.FetchAll(ctx, dashdoc.EntityCompanies, dashdoc.FetchOptions{CarriersOnly: true})
	count := 0
	for _, raw := range raws {
		// The upstream carrier filter is advisory; the naming convention on
		// the remote id is the authoritative exclusion.
		if dashdoc.IsCustomerCompany(dashdoc.CompanyRemoteID(raw)) {
			continue
		}
		carrier, err := dashdoc.MapCompany(raw)
		if err != nil {
			rec.record(ctx, "company", "", "invalid_payload", err.Error(), raw, false)
			continue
		}
		if err := upsertCarrier(ctx, db, conn, carrier); err != nil {
			rec.record(ctx, "company", carrier.ExternalId, "upsert_failed", err.Error(), raw, true)
			continue
		}
		count++
	}
	if fetchErr != nil {
		rec.record(ctx, "company", "", "fetch_failed", fetchErr.Error(), nil, true)
	}
	return count
}

func (o *Orchestrator) syncContacts(ctx context.Context, db *gorm.DB, client *dashdoc.Client, conn *models.TmsConnection, rec *runRecorder) int {
	raws, _, fetchErr := client.FetchAll(ctx, dashdoc.EntityContacts, dashdoc.FetchOptions{})
	count := 0
	for _, raw := range raws {
		contact, err := dashdoc.MapContact(raw)
		if err != nil {
			rec.record(ctx, "contact", "", "invalid_payload", err.Error(), raw, false)
			continue
		}
		if err := upsertContact(ctx, db, conn, contact); err != nil {
			rec.record(ctx, "contact", contact.ExternalId, "upsert_failed", err.Error(), raw, true)
			continue
		}
		count++
	}
	if fetchErr != nil {
		rec.record(ctx, "contact", "", "fetch_failed", fetchErr.Error(), nil, true)
	}
	return count
}

func (o *Orchestrator) syncVehicles(ctx context.Context, db *gorm.DB, client *dashdoc.Client, conn *models.TmsConnection, rec *runRecorder) int {
	count := 0
	for _, spec := range []struct {
		entity string
		kind   string
	}{
		{dashdoc.EntityVehicles, models.FleetKindVehicle},
		{dashdoc.EntityTrailers, models.FleetKindTrailer},
	} {
		raws, _, fetchErr := client.FetchAll(ctx, spec.entity, dashdoc.FetchOptions{})
		for _, raw := range raws {
			vehicle, err := dashdoc.MapVehicle(raw, spec.kind)
			if err != nil {
				rec.record(ctx, "vehicle", "", "invalid_payload", err.Error(), raw, false)
				continue
			}
			if err := upsertVehicle(ctx, db, conn, vehicle); err != nil {
				rec.record(ctx, "vehicle", vehicle.ExternalId, "upsert_failed", err.Error(), raw, true)
				continue
			}
			count++
		}
		if fetchErr != nil {
			rec.record(ctx, "vehicle", "", "fetch_failed", fetchErr.Error(), nil, true)
		}
	}
	count += o.syncDrivers(ctx, db, client, conn, rec)
	return count
}

// syncDrivers pulls the trucker roster. Drivers ride on the fleet toggle and
// count because upstream exposes them alongside vehicles and trailers.
func (o *Orchestrator) syncDrivers(ctx context.Context, db *gorm.DB, client *dashdoc.Client, conn *models.TmsConnection, rec *runRecorder) int {
	raws, _, fetchErr := client.FetchAll(ctx, dashdoc.EntityTruckers, dashdoc.FetchOptions{})
	count := 0
	for _, raw := range raws {
		driver, err := dashdoc.MapTrucker(raw)
		if err != nil {
			rec.record(ctx, "driver", "", "invalid_payload", err.Error(), raw, false)
			continue
		}
		if err := upsertDriver(ctx, db, conn, driver); err != nil {
			rec.record(ctx, "driver", driver.ExternalId, "upsert_failed", err.Error(), raw, true)
			continue
		}
		count++
	}
	if fetchErr != nil {
		rec.record(ctx, "driver", "", "fetch_failed", fetchErr.Error(), nil, true)
	}
	return count
}

func (o *Orchestrator) syncInvoices(ctx context.Context, db *gorm.DB, client *dashdoc.Client, conn *models.TmsConnection, rec *runRecorder) int {
	raws, _, fetchErr := client.FetchAll(ctx, dashdoc.EntityInvoices, dashdoc.FetchOptions{})
	count := 0
	for _, raw := range raws {
		invoice, err := dashdoc.MapInvoice(raw)
		if err != nil {
			rec.record(ctx, "invoice", "", "invalid_payload", err.Error(), raw, false)
			continue
		}
		if err := upsertInvoice(ctx, db, conn, invoice); err != nil {
			rec.record(ctx, "invoice", invoice.ExternalId, "upsert_failed", err.Error(), raw, true)
			continue
		}
		count++
	}
	if fetchErr != nil {
		rec.record(ctx, "invoice", "", "fetch_failed", fetchErr.Error(), nil, true)
	}
	return count
}

// GetSyncRuns returns the most recent runs, optionally scoped to one
// connection.
func (o *Orchestrator) GetSyncRuns(ctx context.Context, connectionID uint, limit int) ([]models.TmsSyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	db := config.GetDB().WithContext(ctx).Order("id desc").Limit(limit)
	if connectionID > 0 {
		db = db.Where("connection_id = ?", connectionID)
	}
	var runs []models.TmsSyncRun
	if err := db.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetSyncRunDetail returns one run with its recorded errors; (nil, nil) when
// the run does not exist.
func (o *Orchestrator) GetSyncRunDetail(ctx context.Context, runID uint) (*SyncRunDetailResponse, error) {
	db := config.GetDB().WithContext(ctx)

	var run models.TmsSyncRun
	if err := db.Where("id = ?", runID).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var errs []models.TmsSyncError
	if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
		return nil, err
	}

	return &SyncRunDetailResponse{
		SyncRunResponse: mapRunToResponse(run),
		Errors:          mapErrors(errs),
	}, nil
}

// GetSyncStatus serves the short-lived cached status view, recomputing it
// from the connection row on a miss.
func (o *Orchestrator) GetSyncStatus(ctx context.Context, connectionID uint) (*SyncStatus, error) {
	var status SyncStatus
	if o.cache.Get(cache.SyncStatusKey(connectionID), &status) {
		return &status, nil
	}

	conn, err := o.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, nil
	}
	status = SyncStatus{
		ConnectionId: conn.ID,
		State:        conn.LastSyncStatus,
		LastSyncAt:   conn.LastSyncAt,
		UpdatedAt:    time.Now(),
	}
	if status.State == "" {
		status.State = "never"
	}
	o.cache.Set(cache.SyncStatusKey(connectionID), status, cache.TTLStatus)
	return &status, nil
}
