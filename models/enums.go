package models

const (
	TmsTypeDashdoc = "dashdoc"

	ExternalSourceDashdoc = "dashdoc"
)

const (
	ConnectionStatusPending      = "pending"
	ConnectionStatusConnected    = "connected"
	ConnectionStatusError        = "error"
	ConnectionStatusDisconnected = "disconnected"
)

const (
	SyncRunStatusRunning   = "running"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusFailed    = "failed"
)

const (
	SyncTriggeredManual    = "manual"
	SyncTriggeredSystem    = "system"
	SyncTriggeredTag       = "tag"
	SyncTriggeredDirectory = "directory"
)

// Transport order lifecycle, collapsed from the upstream status vocabulary.
const (
	OrderStatusDraft      = "DRAFT"
	OrderStatusPending    = "PENDING"
	OrderStatusConfirmed  = "CONFIRMED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

const (
	FleetKindVehicle = "vehicle"
	FleetKindTrailer = "trailer"
)

const (
	VigilanceTierPremium     = "N1_premium"
	VigilanceTierReferenced  = "N1_referenced"
	VigilanceTierActive      = "active"
	VigilanceTierGuest       = "N2_guest"
	VigilanceTierObservation = "observation"
)

const (
	AnomalyTypeNoSync    = "NO_SYNC"
	AnomalyTypeSlowSync  = "SLOW_SYNC"
	AnomalyTypeSyncError = "SYNC_ERROR"
)

const (
	AnomalySeverityCritical = "critical"
	AnomalySeverityWarning  = "warning"
	AnomalySeverityError    = "error"
)

const (
	AlertChannelSms   = "sms"
	AlertChannelEmail = "email"
	AlertChannelPush  = "push"
)

const (
	AlertStatusSent    = "sent"
	AlertStatusFailed  = "failed"
	AlertStatusSkipped = "skipped"
)
