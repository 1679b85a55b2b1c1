package models

import "time"

// TmsConnection holds the credentials, sync configuration and rolling stats
// for one external TMS account of one organization.
type TmsConnection struct {
	ID             uint   `gorm:"primary_key" json:"id"`
	OrganizationId string `gorm:"index;size:64;not null" json:"organization_id"`
	Name           string `gorm:"size:255" json:"name"`
	TmsType        string `gorm:"index;size:50;not null" json:"tms_type"`

	ApiToken string `gorm:"type:text" json:"-"`
	ApiUrl   string `gorm:"size:255" json:"api_url"`

	Status             string     `gorm:"size:20;not null" json:"status"`
	ErrorMessage       string     `gorm:"type:text" json:"error_message"`
	LastConnectionTest *time.Time `json:"last_connection_test"`

	// Sync configuration.
	AutoSync            *bool `gorm:"default:true" json:"auto_sync"`
	SyncIntervalMinutes int   `gorm:"default:60" json:"sync_interval_minutes"`
	SyncTransports      *bool `gorm:"default:true" json:"sync_transports"`
	SyncCompanies       *bool `gorm:"default:true" json:"sync_companies"`
	SyncContacts        *bool `gorm:"default:true" json:"sync_contacts"`
	SyncVehicles        *bool `gorm:"default:true" json:"sync_vehicles"`
	SyncInvoices        *bool `gorm:"default:false" json:"sync_invoices"`
	TransportLimit      int   `gorm:"default:100" json:"transport_limit"`
	DaysToSync          int   `gorm:"default:30" json:"days_to_sync"`

	// Rolling stats, updated at the end of every run.
	TotalSyncs          int        `json:"total_syncs"`
	SuccessfulSyncs     int        `json:"successful_syncs"`
	FailedSyncs         int        `json:"failed_syncs"`
	LastTransportsCount int        `json:"last_transports_count"`
	LastCompaniesCount  int        `json:"last_companies_count"`
	LastContactsCount   int        `json:"last_contacts_count"`
	LastVehiclesCount   int        `json:"last_vehicles_count"`
	LastInvoicesCount   int        `json:"last_invoices_count"`
	LastSyncAt          *time.Time `json:"last_sync_at"`
	LastSyncStatus      string     `gorm:"size:20" json:"last_sync_status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
