package tmssync

import (
	"context"
	"errors"

	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/dashdoc"
	"github.com/symphonia/tms_backend/models"
)

// GetRealtimeCounters serves entity counts for one connection. The persisted
// mirror is preferred once a sync has landed; before that, the upstream
// counters endpoint answers live. Results sit in cache for the short TTL.
func (o *Orchestrator) GetRealtimeCounters(ctx context.Context, connectionID uint) (*CountersResponse, error) {
	key := cache.CountersKey(connectionID)
	var cached CountersResponse
	if o.cache.Get(key, &cached) {
		return &cached, nil
	}

	conn, err := o.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, errors.New("connection not found")
	}

	var resp *CountersResponse
	if conn.LastSyncAt != nil {
		resp, err = mirrorCounters(ctx, conn)
	} else {
		resp, err = o.liveCounters(ctx, conn)
	}
	if err != nil {
		return nil, err
	}

	o.cache.Set(key, resp, cache.TTLStatus)
	return resp, nil
}

func mirrorCounters(ctx context.Context, conn *models.TmsConnection) (*CountersResponse, error) {
	db := config.GetDB().WithContext(ctx)
	counters := map[string]int{}

	for name, model := range map[string]interface{}{
		"transports": &models.TransportOrder{},
		"companies":  &models.Carrier{},
		"contacts":   &models.Contact{},
		"vehicles":   &models.FleetVehicle{},
		"drivers":    &models.Driver{},
		"invoices":   &models.Invoice{},
	} {
		var count int64
		if err := db.Model(model).Where("connection_id = ?", conn.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		counters[name] = int(count)
	}

	return &CountersResponse{Source: "datalake", Counters: counters}, nil
}

func (o *Orchestrator) liveCounters(ctx context.Context, conn *models.TmsConnection) (*CountersResponse, error) {
	client, err := dashdoc.NewClient(conn.ApiUrl, conn.ApiToken)
	if err != nil {
		return nil, err
	}
	counters, err := client.GetCounters(ctx)
	if err != nil {
		return nil, err
	}
	return &CountersResponse{Source: "api", Counters: counters}, nil
}
