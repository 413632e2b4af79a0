package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/stempelwerk/stempelgo/internal/models"
	"gorm.io/gorm"
)

// DateFormat is the terminal-local calendar day key for DailyUserStatus rows
const DateFormat = "2006-01-02"

// StatusStore owns the DailyUserStatus table. Rows are created on first use
// and reset in place on day change; they are never deleted.
type StatusStore struct {
	db *gorm.DB
}

// NewStatusStore creates a new status store
func NewStatusStore(db *gorm.DB) *StatusStore {
	return &StatusStore{db: db}
}

// Get returns the user's status for the local day of `now`. A stale row from
// an earlier day is reset and persisted before it is returned, so midnight
// needs no scheduled job. A missing row is created fresh.
func (s *StatusStore) Get(userID string, now time.Time) (*models.DailyUserStatus, error) {
	today := now.Format(DateFormat)

	var st models.DailyUserStatus
	err := s.db.Where("user_id = ?", userID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		st = models.DailyUserStatus{
			UserID:     userID,
			StatusDate: today,
		}
		if err := s.db.Create(&st).Error; err != nil {
			return nil, fmt.Errorf("failed to create status row: %w", err)
		}
		return &st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load status row: %w", err)
	}

	if st.StatusDate != today {
		st.IsCheckedIn = false
		st.IsOnBreak = false
		st.CurrentSessionStart = nil
		st.TotalMinutesToday = 0
		st.StatusDate = today
		if err := s.Save(&st); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// Save persists the full status row
func (s *StatusStore) Save(st *models.DailyUserStatus) error {
	// Explicit column list so false booleans and cleared pointers are written too
	err := s.db.Model(&models.DailyUserStatus{}).
		Where("user_id = ?", st.UserID).
		Select("is_checked_in", "is_on_break", "last_check_in", "last_check_out",
			"current_session_start", "total_minutes_today", "status_date").
		Updates(st).Error
	if err != nil {
		return fmt.Errorf("failed to save status row: %w", err)
	}
	return nil
}
