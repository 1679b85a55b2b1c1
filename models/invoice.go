package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID             uint   `gorm:"primary_key" json:"id"`
	ExternalSource string `gorm:"uniqueIndex:idx_invoices_external,priority:1;size:50;not null" json:"external_source"`
	ExternalId     string `gorm:"uniqueIndex:idx_invoices_external,priority:2;size:128;not null" json:"external_id"`

	OrganizationId string `gorm:"index;size:64;not null" json:"organization_id"`
	ConnectionId   uint   `gorm:"index" json:"connection_id"`

	Number       string          `gorm:"size:64" json:"number"`
	Status       string          `gorm:"size:32" json:"status"`
	CustomerName string          `gorm:"size:255" json:"customer_name"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(14,2)" json:"total_amount"`
	Currency     string          `gorm:"size:8" json:"currency"`
	IssuedAt     *time.Time      `json:"issued_at"`
	DueAt        *time.Time      `json:"due_at"`

	SyncedAt time.Time `gorm:"index" json:"synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
