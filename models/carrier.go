package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Carrier mirrors one upstream carrier company, enriched with historical
// order aggregates and the derived vigilance record.
type Carrier struct {
	ID             uint   `gorm:"primary_key" json:"id"`
	ExternalSource string `gorm:"uniqueIndex:idx_carriers_external,priority:1;size:50;not null" json:"external_source"`
	ExternalId     string `gorm:"uniqueIndex:idx_carriers_external,priority:2;size:128;not null" json:"external_id"`

	OrganizationId string `gorm:"index;size:64;not null" json:"organization_id"`
	ConnectionId   uint   `gorm:"index" json:"connection_id"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Email   string `gorm:"size:255" json:"email"`
	Phone   string `gorm:"size:64" json:"phone"`
	Country string `gorm:"size:8" json:"country"`

	// Legal/document fields feeding the vigilance score.
	TaxId         string `gorm:"size:64" json:"tax_id"`
	VatNumber     string `gorm:"size:64" json:"vat_number"`
	LicenseNumber string `gorm:"size:64" json:"license_number"`

	// Enrichment aggregates, recomputed by the carrier-directory sweep.
	TotalOrders     int             `json:"total_orders"`
	CompletedOrders int             `json:"completed_orders"`
	TotalRevenue    decimal.Decimal `gorm:"type:decimal(14,2)" json:"total_revenue"`
	LastOrderAt     *time.Time      `json:"last_order_at"`
	OnTimeRate      *float64        `json:"on_time_rate"`

	// Vigilance record, recomputed wholesale each pass.
	VigilanceScore      *int       `json:"vigilance_score"`
	VigilanceTier       string     `gorm:"size:20" json:"vigilance_tier"`
	VigilanceChecksJSON []byte     `gorm:"type:json" json:"vigilance_checks"`
	VigilanceComputedAt *time.Time `json:"vigilance_computed_at"`

	SyncedAt time.Time `gorm:"index" json:"synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
