package sync

import (
	"encoding/json"

	"github.com/stempelwerk/stempelgo/internal/models"
)

// SyncType distinguishes what caused an attempt; the protocol is identical
type SyncType string

const (
	SyncFull        SyncType = "full"        // explicit user action, registration
	SyncIncremental SyncType = "incremental" // periodic timer
)

// Envelope signs every request sent to the backend. Signature covers
// terminalId||timestamp with the terminal's API secret.
type Envelope struct {
	TerminalID string `json:"terminalId"`
	APIKey     string `json:"apiKey"`
	Timestamp  int64  `json:"timestamp"`
	Signature  string `json:"signature"`
}

// SyncRequest carries the pending/failed event batch to the backend.
// The backend must treat duplicate localId submissions as no-ops, which is
// what makes resending after a transport failure safe.
type SyncRequest struct {
	Envelope
	LastSyncTimestamp int64                    `json:"lastSyncTimestamp"`
	SyncType          SyncType                 `json:"syncType"`
	Events            []models.AttendanceEvent `json:"events"`
}

// FailedRecord reports a per-event rejection
type FailedRecord struct {
	LocalID string `json:"localId"`
	Error   string `json:"error"`
}

// ConflictKind classifies a server-detected discrepancy
type ConflictKind string

const (
	ConflictDuplicate    ConflictKind = "duplicate"
	ConflictTimeMismatch ConflictKind = "time_mismatch"
	ConflictUserMismatch ConflictKind = "user_mismatch"
)

// Resolution is the server-assigned directive for one conflict
type Resolution string

const (
	ResolutionUseServer Resolution = "use_server"
	ResolutionUseLocal  Resolution = "use_local"
	ResolutionManual    Resolution = "manual"
)

// ConflictDirective instructs the terminal how to settle one event
type ConflictDirective struct {
	LocalID    string       `json:"localId"`
	Kind       ConflictKind `json:"kind"`
	Resolution Resolution   `json:"resolution"`
	Detail     string       `json:"detail,omitempty"`
}

// Settings is the server-pushed config fragment. Nil fields stay untouched;
// present fields overwrite local values (server is authoritative).
type Settings struct {
	Name            *string         `json:"name,omitempty"`
	SyncIntervalSec *int            `json:"syncIntervalSec,omitempty"`
	Flags           json.RawMessage `json:"flags,omitempty"`
}

// SyncResponse is the backend's answer to a sync request
type SyncResponse struct {
	Success         bool                `json:"success"`
	Error           string              `json:"error,omitempty"`
	ServerTimestamp int64               `json:"serverTimestamp"`
	SyncedRecords   int                 `json:"syncedRecords"`
	FailedRecords   []FailedRecord      `json:"failedRecords,omitempty"`
	Users           []models.User       `json:"users,omitempty"`
	Settings        *Settings           `json:"settings,omitempty"`
	Conflicts       []ConflictDirective `json:"conflicts,omitempty"`
}

// HeartbeatRequest is the lightweight liveness ping. It never carries events.
type HeartbeatRequest struct {
	Envelope
	PendingCount int64 `json:"pendingCount"`
	TotalUsers   int64 `json:"totalUsers"`
	TodayCount   int64 `json:"todayCount"`
}
