package jobs

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/tmssync"
	"github.com/symphonia/tms_backend/utils"
	"github.com/symphonia/tms_backend/vigilance"
)

// jobContext widens the request-scoped org guard: background jobs operate
// across every organization.
func jobContext(ctx context.Context) context.Context {
	return utils.SetSkipOrgScopeInContext(ctx, true)
}

// debounceWindow keeps the 30-second auto-sync tick from re-syncing a
// connection that just finished. Slightly under the tick interval so a
// healthy connection still syncs on every tick.
func debounceWindow() time.Duration {
	return secondsFromEnv("AUTO_SYNC_DEBOUNCE_SECONDS", 25)
}

// shouldAutoSync gates one connection on one auto-sync tick: auto-sync must
// be on and the last completed sync must be outside the debounce window.
func shouldAutoSync(conn models.TmsConnection, now time.Time, debounce time.Duration) bool {
	if conn.AutoSync != nil && !*conn.AutoSync {
		return false
	}
	if conn.LastSyncAt != nil && now.Sub(*conn.LastSyncAt) < debounce {
		return false
	}
	return true
}

// autoSync syncs every connected connection with auto-sync enabled, skipping
// connections inside the debounce window.
func (r *Runner) autoSync(ctx context.Context) error {
	ctx = jobContext(ctx)
	db := config.GetDB().WithContext(ctx)

	var conns []models.TmsConnection
	if err := db.Where("status = ?", models.ConnectionStatusConnected).Find(&conns).Error; err != nil {
		return err
	}

	debounce := debounceWindow()
	now := time.Now()
	var firstErr error
	for _, conn := range conns {
		if !shouldAutoSync(conn, now, debounce) {
			continue
		}
		run, err := r.orchestrator.ExecuteSync(ctx, conn.ID, tmssync.SyncOptions{TriggeredBy: models.SyncTriggeredSystem})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			config.LogError(r.logger, "jobs", "autoSync", "sync failed", conn.ID, err)
			continue
		}
		r.logger.WithFields(logrus.Fields{
			"connection_id": conn.ID,
			"run_id":        run.ID,
			"status":        run.Status,
			"transports":    run.TransportsCount,
		}).Info("auto-sync completed")
	}
	return firstErr
}

func syncTag() string {
	tag := strings.TrimSpace(os.Getenv("TAG_SYNC_TAG"))
	if tag == "" {
		tag = "Symphonia"
	}
	return tag
}

// tagSync refreshes only the tagged transports, a cheap high-frequency pass
// for the orders the dashboard watches closely.
func (r *Runner) tagSync(ctx context.Context) error {
	ctx = jobContext(ctx)
	db := config.GetDB().WithContext(ctx)

	var conns []models.TmsConnection
	if err := db.Where("status = ?", models.ConnectionStatusConnected).Find(&conns).Error; err != nil {
		return err
	}

	tag := syncTag()
	var firstErr error
	for _, conn := range conns {
		_, err := r.orchestrator.ExecuteSync(ctx, conn.ID, tmssync.SyncOptions{
			TriggeredBy: models.SyncTriggeredTag,
			Tag:         tag,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			config.LogError(r.logger, "jobs", "tagSync", "tag sync failed", conn.ID, err)
		}
	}
	return firstErr
}

// carrierDirectory runs the directory sweep under a distributed lock so only
// one instance fetches the full carrier listing at a time.
func (r *Runner) carrierDirectory(ctx context.Context) error {
	ctx = jobContext(ctx)

	lock, err := utils.ObtainJobLock(ctx, JobCarrierDirectory, 4*time.Minute, "jobs", "carrierDirectory")
	if err != nil {
		// Another instance holds the sweep; not a failure.
		return nil
	}
	if lock != nil {
		defer func() { _ = lock.Release(ctx) }()
	}

	result, err := r.orchestrator.SyncCarrierDirectory(ctx)
	if err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{
		"synced":   result.Synced,
		"enriched": result.Enriched,
		"removed":  result.Removed,
		"errors":   result.Errors,
	}).Info("carrier directory sweep completed")
	return nil
}

func (r *Runner) vigilanceSweep(ctx context.Context) error {
	ctx = jobContext(ctx)
	updated, failed, errs := vigilance.UpdateAll(ctx)
	r.logger.WithFields(logrus.Fields{
		"updated": updated,
		"failed":  failed,
	}).Info("vigilance sweep completed")
	if len(errs) > 0 {
		return fmt.Errorf("vigilance sweep: %d carriers failed, first: %w", failed, errs[0])
	}
	return nil
}

// healthCheck re-probes every non-disconnected connection, moving errored
// connections back to connected once their upstream recovers, and probes the
// cache backend.
func (r *Runner) healthCheck(ctx context.Context) error {
	ctx = jobContext(ctx)
	db := config.GetDB().WithContext(ctx)

	if !r.cache.HealthCheck(ctx) {
		r.logger.Warn("cache backend failed health probe; reads degrade to source queries")
	}

	var conns []models.TmsConnection
	if err := db.Where("status IN ?", []string{models.ConnectionStatusConnected, models.ConnectionStatusError}).
		Find(&conns).Error; err != nil {
		return err
	}

	var firstErr error
	for _, conn := range conns {
		result, err := r.orchestrator.TestConnection(ctx, conn.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			config.LogError(r.logger, "jobs", "healthCheck", "probe failed", conn.ID, err)
			continue
		}
		if !result.Success && conn.Status == models.ConnectionStatusConnected {
			r.logger.WithFields(logrus.Fields{
				"connection_id": conn.ID,
				"message":       result.Message,
			}).Warn("connection went unhealthy")
		}
	}
	return firstErr
}

func retentionDays() int {
	v := strings.TrimSpace(os.Getenv("LOG_RETENTION_DAYS"))
	if v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 30
}

// logCleanup trims the audit tables to the retention window.
func (r *Runner) logCleanup(ctx context.Context) error {
	ctx = jobContext(ctx)
	db := config.GetDB().WithContext(ctx)
	cutoff := time.Now().AddDate(0, 0, -retentionDays())

	removed := map[string]int64{}

	res := db.Where("created_at < ?", cutoff).Delete(&models.TmsSyncError{})
	if res.Error != nil {
		return res.Error
	}
	removed["sync_errors"] = res.RowsAffected

	res = db.Where("created_at < ?", cutoff).Delete(&models.TmsSyncRun{})
	if res.Error != nil {
		return res.Error
	}
	removed["sync_runs"] = res.RowsAffected

	res = db.Where("created_at < ?", cutoff).Delete(&models.MonitoringLogEntry{})
	if res.Error != nil {
		return res.Error
	}
	removed["monitoring_logs"] = res.RowsAffected

	r.logger.WithFields(logrus.Fields{
		"cutoff":          cutoff.Format(time.RFC3339),
		"sync_runs":       removed["sync_runs"],
		"sync_errors":     removed["sync_errors"],
		"monitoring_logs": removed["monitoring_logs"],
	}).Info("log cleanup completed")
	return nil
}
