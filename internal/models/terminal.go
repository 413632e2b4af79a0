package models

import (
	"time"

	"gorm.io/datatypes"
)

// TerminalConfig is the singleton identity/config row for this terminal.
// Settings pushed by the backend overwrite it (server is authoritative).
type TerminalConfig struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	TerminalID        string         `gorm:"not null;uniqueIndex" json:"terminalId"`
	TenantID          string         `json:"tenantId"`
	Name              string         `json:"name"`
	ServerURL         string         `gorm:"not null" json:"serverUrl"`
	APIKey            string         `gorm:"not null" json:"-"`
	APISecret         string         `gorm:"not null" json:"-"`
	SyncIntervalSec   int            `gorm:"default:60" json:"syncIntervalSec"`
	LastSyncTimestamp int64          `gorm:"default:0" json:"lastSyncTimestamp"` // monotonic checkpoint, unix millis
	Flags             datatypes.JSON `json:"flags,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// TableName specifies the table name
func (TerminalConfig) TableName() string {
	return "terminal_configs"
}

// MinSyncIntervalSec / MaxSyncIntervalSec bound the periodic sync timer.
const (
	MinSyncIntervalSec = 30
	MaxSyncIntervalSec = 300
)

// EffectiveSyncInterval clamps the configured interval to the allowed bounds.
func (tc *TerminalConfig) EffectiveSyncInterval() time.Duration {
	sec := tc.SyncIntervalSec
	if sec < MinSyncIntervalSec {
		sec = MinSyncIntervalSec
	}
	if sec > MaxSyncIntervalSec {
		sec = MaxSyncIntervalSec
	}
	return time.Duration(sec) * time.Second
}
