package tmssync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/dashdoc"
	"github.com/symphonia/tms_backend/models"
)

// ReconcileAfter is how long a carrier row may go untouched by the directory
// sweep before it is considered gone upstream and removed.
const ReconcileAfter = 10 * time.Minute

// DirectoryResult summarizes one carrier-directory sweep.
type DirectoryResult struct {
	Synced   int   `json:"synced"`
	Enriched int   `json:"enriched"`
	Removed  int64 `json:"removed"`
	Errors   int   `json:"errors"`
}

// SyncCarrierDirectory refreshes the carrier mirror for every connected
// connection, recomputes the order-history aggregates and finally removes
// carriers the upstream no longer returns. The removal cutoff is taken
// before fetching, so a slow sweep can never delete rows it just touched.
func (o *Orchestrator) SyncCarrierDirectory(ctx context.Context) (DirectoryResult, error) {
	db := config.GetDB().WithContext(ctx)
	result := DirectoryResult{}
	sweepStart := time.Now()

	var conns []models.TmsConnection
	if err := db.Where("status = ?", models.ConnectionStatusConnected).Find(&conns).Error; err != nil {
		return result, err
	}

	fetchFailed := false
	for _, conn := range conns {
		if !enabled(conn.SyncCompanies, true) {
			continue
		}
		client, err := dashdoc.NewClient(conn.ApiUrl, conn.ApiToken)
		if err != nil {
			result.Errors++
			fetchFailed = true
			config.LogError(o.logger, "tmssync", "SyncCarrierDirectory", "client init failed", conn.ID, err)
			continue
		}

		raws, _, fetchErr := client.FetchAll(ctx, dashdoc.EntityCompanies, dashdoc.FetchOptions{CarriersOnly: true})
		for _, raw := range raws {
			if dashdoc.IsCustomerCompany(dashdoc.CompanyRemoteID(raw)) {
				continue
			}
			carrier, err := dashdoc.MapCompany(raw)
			if err != nil {
				result.Errors++
				continue
			}
			if err := upsertCarrier(ctx, db, &conn, carrier); err != nil {
				result.Errors++
				config.LogError(o.logger, "tmssync", "SyncCarrierDirectory", "carrier upsert failed", carrier.ExternalId, err)
				continue
			}
			result.Synced++
		}
		if fetchErr != nil {
			result.Errors++
			fetchFailed = true
			config.LogError(o.logger, "tmssync", "SyncCarrierDirectory", "carrier fetch failed", conn.ID, fetchErr)
		}
	}

	enriched, err := o.EnrichCarriers(ctx)
	if err != nil {
		result.Errors++
		config.LogError(o.logger, "tmssync", "SyncCarrierDirectory", "enrichment failed", nil, err)
	}
	result.Enriched = enriched

	// Reconciliation: rows this sweep did not touch have vanished upstream.
	// A sweep with fetch failures left rows untouched for the wrong reason,
	// so it must not delete anything.
	if fetchFailed {
		o.logger.Warn("carrier fetch failed, skipping directory reconciliation")
	} else {
		cutoff := sweepStart.Add(-ReconcileAfter)
		del := db.Where("external_source = ? AND synced_at < ?", models.ExternalSourceDashdoc, cutoff).
			Delete(&models.Carrier{})
		if del.Error != nil {
			result.Errors++
			config.LogError(o.logger, "tmssync", "SyncCarrierDirectory", "reconciliation delete failed", nil, del.Error)
		} else {
			result.Removed = del.RowsAffected
		}
	}

	o.cache.Invalidate(cache.CarriersPattern)
	return result, nil
}

type carrierAggregate struct {
	CarrierId   string
	Total       int
	Completed   int
	Revenue     decimal.Decimal
	LastOrderAt *time.Time
	OnTime      int
	Windowed    int
}

// EnrichCarriers recomputes each carrier's order-history aggregates from the
// transport mirror. On-time rate only counts completed orders that carry a
// delivery window.
func (o *Orchestrator) EnrichCarriers(ctx context.Context) (int, error) {
	db := config.GetDB().WithContext(ctx)

	var aggs []carrierAggregate
	err := db.Raw(`
		SELECT
			carrier_id,
			COUNT(*) AS total,
			SUM(status = ?) AS completed,
			SUM(CASE WHEN status = ? THEN price ELSE 0 END) AS revenue,
			MAX(COALESCE(pickup_at, external_created_at)) AS last_order_at,
			SUM(status = ? AND delivery_at IS NOT NULL AND external_updated_at IS NOT NULL AND external_updated_at <= delivery_at) AS on_time,
			SUM(status = ? AND delivery_at IS NOT NULL AND external_updated_at IS NOT NULL) AS windowed
		FROM transport_orders
		WHERE carrier_id <> ''
		GROUP BY carrier_id`,
		models.OrderStatusCompleted, models.OrderStatusCompleted,
		models.OrderStatusCompleted, models.OrderStatusCompleted,
	).Scan(&aggs).Error
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, agg := range aggs {
		updates := map[string]interface{}{
			"total_orders":     agg.Total,
			"completed_orders": agg.Completed,
			"total_revenue":    agg.Revenue,
			"last_order_at":    agg.LastOrderAt,
		}
		if agg.Windowed > 0 {
			updates["on_time_rate"] = float64(agg.OnTime) / float64(agg.Windowed) * 100
		}
		res := db.Model(&models.Carrier{}).
			Where("external_source = ? AND external_id = ?", models.ExternalSourceDashdoc, agg.CarrierId).
			Updates(updates)
		if res.Error != nil {
			config.LogError(o.logger, "tmssync", "EnrichCarriers", "aggregate update failed", agg.CarrierId, res.Error)
			continue
		}
		updated += int(res.RowsAffected)
	}
	return updated, nil
}
