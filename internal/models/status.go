package models

import "time"

// DailyUserStatus is the per-user state machine for the current local day.
// Exactly one live row per user; never deleted, only reset in place when the
// stored StatusDate no longer matches today (lazy read-time rollover).
type DailyUserStatus struct {
	UserID              string    `gorm:"primaryKey" json:"userId"`
	IsCheckedIn         bool      `gorm:"default:false" json:"isCheckedIn"`
	IsOnBreak           bool      `gorm:"default:false" json:"isOnBreak"`
	LastCheckIn         *int64    `json:"lastCheckIn,omitempty"`  // unix millis
	LastCheckOut        *int64    `json:"lastCheckOut,omitempty"` // unix millis
	CurrentSessionStart *int64    `json:"currentSessionStart,omitempty"`
	TotalMinutesToday   int       `gorm:"default:0" json:"totalMinutesToday"`
	StatusDate          string    `gorm:"type:varchar(10);not null" json:"statusDate"` // YYYY-MM-DD, terminal-local
	UpdatedAt           time.Time `json:"-"`
}

// TableName specifies the table name
func (DailyUserStatus) TableName() string {
	return "daily_user_statuses"
}
