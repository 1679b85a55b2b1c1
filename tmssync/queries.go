package tmssync

import (
	"context"
	"errors"
	"strconv"

	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/models"
	"gorm.io/gorm"
)

// OrderFilters is the supported filter surface of the orders listing. The
// filter hash keys the cached result, so equivalent queries share one entry.
type OrderFilters struct {
	Status    string
	CarrierId string
	Tag       string
	Limit     int
	Offset    int
}

func (f OrderFilters) toMap() map[string]string {
	m := map[string]string{}
	if f.Status != "" {
		m["status"] = f.Status
	}
	if f.CarrierId != "" {
		m["carrier_id"] = f.CarrierId
	}
	if f.Tag != "" {
		m["tag"] = f.Tag
	}
	if f.Limit > 0 {
		m["limit"] = strconv.Itoa(f.Limit)
	}
	if f.Offset > 0 {
		m["offset"] = strconv.Itoa(f.Offset)
	}
	return m
}

type OrderListResponse struct {
	Items []models.TransportOrder `json:"items"`
	Total int64                   `json:"total"`
}

// GetOrders serves the filtered listing through the query-TTL cache.
func (o *Orchestrator) GetOrders(ctx context.Context, organizationId string, filters OrderFilters) (*OrderListResponse, error) {
	filterMap := filters.toMap()
	filterMap["organization_id"] = organizationId
	key := cache.FilteredOrdersKey(cache.HashFilters(filterMap))

	var cached OrderListResponse
	if o.cache.Get(key, &cached) {
		return &cached, nil
	}

	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	db := config.GetDB().WithContext(ctx).
		Model(&models.TransportOrder{}).
		Where("organization_id = ?", organizationId)
	if filters.Status != "" {
		db = db.Where("status = ?", filters.Status)
	}
	if filters.CarrierId != "" {
		db = db.Where("carrier_id = ?", filters.CarrierId)
	}
	if filters.Tag != "" {
		db = db.Where("JSON_CONTAINS(tags_json, JSON_QUOTE(?))", filters.Tag)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.TransportOrder
	if err := db.Order("id desc").Limit(limit).Offset(filters.Offset).Find(&items).Error; err != nil {
		return nil, err
	}

	resp := &OrderListResponse{Items: items, Total: total}
	o.cache.Set(key, resp, cache.TTLQuery)
	return resp, nil
}

// GetCarriers lists carriers for one organization, newest first.
func (o *Orchestrator) GetCarriers(ctx context.Context, organizationId string, limit int) ([]models.Carrier, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var carriers []models.Carrier
	err := config.GetDB().WithContext(ctx).
		Where("organization_id = ?", organizationId).
		Order("name asc").
		Limit(limit).
		Find(&carriers).Error
	if err != nil {
		return nil, err
	}
	return carriers, nil
}

// GetCarrierByExternalID serves one carrier through the reference-TTL cache;
// (nil, nil) when absent.
func (o *Orchestrator) GetCarrierByExternalID(ctx context.Context, externalID string) (*models.Carrier, error) {
	key := cache.CarrierKey(externalID)
	var cached models.Carrier
	if o.cache.Get(key, &cached) {
		return &cached, nil
	}

	var carrier models.Carrier
	err := config.GetDB().WithContext(ctx).
		Where("external_source = ? AND external_id = ?", models.ExternalSourceDashdoc, externalID).
		Take(&carrier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	o.cache.Set(key, carrier, cache.TTLReference)
	return &carrier, nil
}
