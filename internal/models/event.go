package models

import (
	"time"

	"gorm.io/gorm"
)

// EventKind defines what a stamp means
type EventKind string

const (
	EventCheckIn    EventKind = "check_in"
	EventCheckOut   EventKind = "check_out"
	EventBreakStart EventKind = "break_start"
	EventBreakEnd   EventKind = "break_end"
)

// AuthMethod defines how the user identified themselves at the terminal
type AuthMethod string

const (
	AuthCard   AuthMethod = "card"
	AuthPin    AuthMethod = "pin"
	AuthManual AuthMethod = "manual"
)

// SyncState defines the upload state of a locally recorded event
type SyncState string

const (
	SyncPending  SyncState = "pending"
	SyncSynced   SyncState = "synced"
	SyncFailed   SyncState = "failed"
	SyncConflict SyncState = "conflict"
)

// AttendanceEvent is one stamped action. Rows are append-mostly: after
// creation only ServerID, SyncStatus, SyncedAt and SyncError may change.
// Convention: Go PascalCase -> DB snake_case (GORM auto) -> JSON camelCase
type AttendanceEvent struct {
	LocalID        string     `gorm:"primaryKey;type:varchar(64)" json:"localId"`
	ServerID       *string    `gorm:"type:varchar(64)" json:"serverId,omitempty"`
	UserID         string     `gorm:"not null;index" json:"userId"`
	UserName       string     `json:"userName"`
	Kind           EventKind  `gorm:"type:varchar(20);not null" json:"kind"`
	Timestamp      int64      `gorm:"not null;index" json:"timestamp"` // client clock, unix millis
	AuthMethod     AuthMethod `gorm:"type:varchar(10);not null" json:"authMethod"`
	CardHash       *string    `gorm:"type:varchar(64)" json:"cardHash,omitempty"`
	CreatedOffline bool       `gorm:"default:false" json:"createdOffline"`
	SyncStatus     SyncState  `gorm:"type:varchar(10);default:'pending';index" json:"syncStatus"`
	SyncedAt       *int64     `json:"syncedAt,omitempty"`
	SyncError      *string    `gorm:"type:text" json:"syncError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"-"`
}

// TableName specifies the table name
func (AttendanceEvent) TableName() string {
	return "attendance_events"
}

// BeforeCreate hook
func (e *AttendanceEvent) BeforeCreate(tx *gorm.DB) error {
	if e.SyncStatus == "" {
		e.SyncStatus = SyncPending
	}
	return nil
}
