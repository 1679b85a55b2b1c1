package models

import "time"

type Driver struct {
	ID             uint   `gorm:"primary_key" json:"id"`
	ExternalSource string `gorm:"uniqueIndex:idx_drivers_external,priority:1;size:50;not null" json:"external_source"`
	ExternalId     string `gorm:"uniqueIndex:idx_drivers_external,priority:2;size:128;not null" json:"external_id"`

	OrganizationId string `gorm:"index;size:64;not null" json:"organization_id"`
	ConnectionId   uint   `gorm:"index" json:"connection_id"`

	FirstName string `gorm:"size:128" json:"first_name"`
	LastName  string `gorm:"size:128" json:"last_name"`
	Email     string `gorm:"size:255" json:"email"`
	Phone     string `gorm:"size:64" json:"phone"`

	SyncedAt time.Time `gorm:"index" json:"synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
