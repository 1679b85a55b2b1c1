package models

import "time"

// FleetVehicle covers both tractors and trailers; Kind disambiguates.
type FleetVehicle struct {
	ID             uint   `gorm:"primary_key" json:"id"`
	ExternalSource string `gorm:"uniqueIndex:idx_fleet_vehicles_external,priority:1;size:50;not null" json:"external_source"`
	ExternalId     string `gorm:"uniqueIndex:idx_fleet_vehicles_external,priority:2;size:128;not null" json:"external_id"`

	OrganizationId string `gorm:"index;size:64;not null" json:"organization_id"`
	ConnectionId   uint   `gorm:"index" json:"connection_id"`

	Kind         string `gorm:"index;size:16;not null" json:"kind"`
	LicensePlate string `gorm:"size:32" json:"license_plate"`
	Label        string `gorm:"size:255" json:"label"`
	Category     string `gorm:"size:64" json:"category"`

	SyncedAt time.Time `gorm:"index" json:"synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
