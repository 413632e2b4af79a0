package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncSessionStatus is the lifecycle state of one sync attempt
type SyncSessionStatus string

const (
	SessionRunning   SyncSessionStatus = "running"
	SessionCompleted SyncSessionStatus = "completed"
	SessionFailed    SyncSessionStatus = "failed"
)

// SyncSession records each synchronization attempt for diagnostics.
// Write-once-then-finalized; never consulted for correctness.
type SyncSession struct {
	ID              string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SyncType        string            `gorm:"type:varchar(20);not null;index" json:"syncType"` // full, incremental
	Status          SyncSessionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt       time.Time         `gorm:"not null" json:"startedAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	EventsSent      int               `gorm:"default:0" json:"eventsSent"`
	EventsSynced    int               `gorm:"default:0" json:"eventsSynced"`
	EventsFailed    int               `gorm:"default:0" json:"eventsFailed"`
	UsersReceived   int               `gorm:"default:0" json:"usersReceived"`
	ConflictsFound  int               `gorm:"default:0" json:"conflictsFound"`
	ErrorDetail     string            `gorm:"type:text" json:"errorDetail,omitempty"`
	DebugInfo       datatypes.JSON    `json:"debugInfo,omitempty"`
	CreatedAt       time.Time         `json:"-"`
	UpdatedAt       time.Time         `json:"-"`
}

// TableName specifies the table name
func (SyncSession) TableName() string {
	return "sync_sessions"
}
