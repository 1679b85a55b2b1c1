package models

import "time"

// TmsSyncRun is the append-only audit log of one orchestrator execution.
// Created running at run start, finalized once at run end, never mutated after.
type TmsSyncRun struct {
	ID             uint   `gorm:"primary_key" json:"id"`
	ConnectionId   uint   `gorm:"index;not null" json:"connection_id"`
	OrganizationId string `gorm:"index;size:64;not null" json:"organization_id"`
	TmsType        string `gorm:"size:50;not null" json:"tms_type"`
	Status         string `gorm:"size:20;not null" json:"status"`
	TriggeredBy    string `gorm:"size:20" json:"triggered_by"`

	TransportsCount int `json:"transports_count"`
	CompaniesCount  int `json:"companies_count"`
	ContactsCount   int `json:"contacts_count"`
	VehiclesCount   int `json:"vehicles_count"`
	InvoicesCount   int `json:"invoices_count"`

	ErrorCount   int    `json:"error_count"`
	ErrorMessage string `gorm:"type:text" json:"error_message"`

	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	DurationMs int64      `json:"duration_ms"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TmsSyncError records one skipped record inside a run. Per-record failures
// are counted here, never fatal to the batch.
type TmsSyncError struct {
	ID             uint      `gorm:"primary_key" json:"id"`
	SyncRunId      uint      `gorm:"index;not null" json:"sync_run_id"`
	OrganizationId string    `gorm:"index;size:64;not null" json:"organization_id"`
	EntityType     string    `gorm:"size:50" json:"entity_type"`
	ExternalId     string    `gorm:"size:128" json:"external_id"`
	ErrorCode      string    `gorm:"size:64" json:"error_code"`
	Message        string    `gorm:"type:text" json:"message"`
	PayloadJSON    []byte    `gorm:"type:json" json:"payload"`
	Retryable      bool      `gorm:"default:false" json:"retryable"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
