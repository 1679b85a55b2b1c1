package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransportOrder mirrors one upstream transport. Last-known-state only;
// the external TMS remains the source of truth.
type TransportOrder struct {
	ID             uint   `gorm:"primary_key" json:"id"`
	ExternalSource string `gorm:"uniqueIndex:idx_transport_orders_external,priority:1;size:50;not null" json:"external_source"`
	ExternalId     string `gorm:"uniqueIndex:idx_transport_orders_external,priority:2;size:128;not null" json:"external_id"`

	OrganizationId string `gorm:"index;size:64;not null" json:"organization_id"`
	ConnectionId   uint   `gorm:"index" json:"connection_id"`

	Reference   string `gorm:"size:128" json:"reference"`
	Status      string `gorm:"index;size:20;not null" json:"status"`
	CarrierName string `gorm:"size:255" json:"carrier_name"`
	CarrierId   string `gorm:"index;size:128" json:"carrier_id"`
	ShipperName string `gorm:"size:255" json:"shipper_name"`

	PickupAddressJSON   []byte     `gorm:"type:json" json:"pickup_address"`
	DeliveryAddressJSON []byte     `gorm:"type:json" json:"delivery_address"`
	PickupAt            *time.Time `json:"pickup_at"`
	DeliveryAt          *time.Time `json:"delivery_at"`

	Price    decimal.Decimal `gorm:"type:decimal(14,2)" json:"price"`
	Currency string          `gorm:"size:8" json:"currency"`
	TagsJSON []byte          `gorm:"type:json" json:"tags"`

	ExternalCreatedAt *time.Time `json:"external_created_at"`
	ExternalUpdatedAt *time.Time `json:"external_updated_at"`
	SyncedAt          time.Time  `gorm:"index" json:"synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
