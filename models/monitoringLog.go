package models

import "time"

// MonitoringLogEntry is one tick of the monitoring job: a snapshot of every
// tracked job's last outcome, the anomalies detected, and the per-channel
// alert dispatch results. Append-only.
type MonitoringLogEntry struct {
	ID            uint      `gorm:"primary_key" json:"id"`
	CheckedAt     time.Time `gorm:"index;not null" json:"checked_at"`
	JobsJSON      []byte    `gorm:"type:json" json:"jobs"`
	AnomaliesJSON []byte    `gorm:"type:json" json:"anomalies"`
	AnomalyCount  int       `json:"anomaly_count"`
	CriticalCount int       `json:"critical_count"`
	AlertsSent    bool      `json:"alerts_sent"`
	AlertsJSON    []byte    `gorm:"type:json" json:"alerts"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
