package tmssync

import (
	"time"

	"github.com/symphonia/tms_backend/models"
)

// NewConnectionInput is the payload for creating a TMS connection.
type NewConnectionInput struct {
	Name                string `json:"name" validate:"required,max=255"`
	TmsType             string `json:"tms_type" validate:"required,oneof=dashdoc"`
	ApiToken            string `json:"api_token" validate:"required"`
	ApiUrl              string `json:"api_url" validate:"omitempty,url"`
	AutoSync            *bool  `json:"auto_sync"`
	SyncIntervalMinutes int    `json:"sync_interval_minutes" validate:"omitempty,min=1,max=1440"`
	SyncTransports      *bool  `json:"sync_transports"`
	SyncCompanies       *bool  `json:"sync_companies"`
	SyncContacts        *bool  `json:"sync_contacts"`
	SyncVehicles        *bool  `json:"sync_vehicles"`
	SyncInvoices        *bool  `json:"sync_invoices"`
	TransportLimit      int    `json:"transport_limit" validate:"omitempty,min=1,max=1000"`
	DaysToSync          int    `json:"days_to_sync" validate:"omitempty,min=1,max=365"`
}

// SyncOptions narrows one orchestrated run.
type SyncOptions struct {
	TriggeredBy string
	// Tag restricts the run to tagged transports only; companies, contacts,
	// vehicles and invoices are skipped for tag-scoped runs.
	Tag string
}

// TestResult is the outcome of one connection probe.
type TestResult struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	TestedAt time.Time `json:"tested_at"`
}

type SyncRunResponse struct {
	ID              uint    `json:"id"`
	ConnectionId    uint    `json:"connection_id"`
	Status          string  `json:"status"`
	TriggeredBy     string  `json:"triggered_by"`
	TransportsCount int     `json:"transports_count"`
	CompaniesCount  int     `json:"companies_count"`
	ContactsCount   int     `json:"contacts_count"`
	VehiclesCount   int     `json:"vehicles_count"`
	InvoicesCount   int     `json:"invoices_count"`
	ErrorCount      int     `json:"error_count"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	StartedAt       *string `json:"started_at"`
	FinishedAt      *string `json:"finished_at"`
	DurationMs      int64   `json:"duration_ms"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entity_type"`
	ExternalId string `json:"external_id"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

// CountersResponse carries entity counts plus where they came from:
// "datalake" for the persisted mirror, "api" for a live upstream call.
type CountersResponse struct {
	Source   string         `json:"source"`
	Counters map[string]int `json:"counters"`
}

// SyncStatus is the short-lived cached view of a connection's sync state.
type SyncStatus struct {
	ConnectionId uint       `json:"connection_id"`
	State        string     `json:"state"`
	RunId        uint       `json:"run_id,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	ErrorCount   int        `json:"error_count"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.TmsSyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:              run.ID,
		ConnectionId:    run.ConnectionId,
		Status:          run.Status,
		TriggeredBy:     run.TriggeredBy,
		TransportsCount: run.TransportsCount,
		CompaniesCount:  run.CompaniesCount,
		ContactsCount:   run.ContactsCount,
		VehiclesCount:   run.VehiclesCount,
		InvoicesCount:   run.InvoicesCount,
		ErrorCount:      run.ErrorCount,
		ErrorMessage:    run.ErrorMessage,
		StartedAt:       formatTime(run.StartedAt),
		FinishedAt:      formatTime(run.FinishedAt),
		DurationMs:      run.DurationMs,
	}
}

func mapErrors(errorsList []models.TmsSyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:         errItem.ID,
			EntityType: errItem.EntityType,
			ExternalId: errItem.ExternalId,
			ErrorCode:  errItem.ErrorCode,
			Message:    errItem.Message,
			Retryable:  errItem.Retryable,
		})
	}
	return out
}
