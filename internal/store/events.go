package store

import (
	"fmt"
	"time"

	"github.com/stempelwerk/stempelgo/internal/models"
	"gorm.io/gorm"
)

// EventStore is the durable log of attendance events. Constructed over a
// *gorm.DB so callers can run it inside a transaction.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates a new event store
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// Append inserts a new event with SyncStatus pending. A reused localId fails
// with DuplicateIDError and leaves the store unchanged.
func (s *EventStore) Append(ev *models.AttendanceEvent) error {
	var count int64
	if err := s.db.Model(&models.AttendanceEvent{}).
		Where("local_id = ?", ev.LocalID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for duplicate event: %w", err)
	}
	if count > 0 {
		return &DuplicateIDError{LocalID: ev.LocalID}
	}

	if ev.SyncStatus == "" {
		ev.SyncStatus = models.SyncPending
	}
	if err := s.db.Create(ev).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// EventsSince returns events stamped after the given unix-millis timestamp,
// newest first (reporting/admin views).
func (s *EventStore) EventsSince(sinceMillis int64) ([]models.AttendanceEvent, error) {
	var events []models.AttendanceEvent
	err := s.db.Where("timestamp > ?", sinceMillis).
		Order("timestamp DESC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}

// PendingAndFailed returns the sync queue: every pending or failed event,
// oldest first by original timestamp so causal order survives on the backend.
func (s *EventStore) PendingAndFailed() ([]models.AttendanceEvent, error) {
	var events []models.AttendanceEvent
	err := s.db.Where("sync_status IN ?", []models.SyncState{models.SyncPending, models.SyncFailed}).
		Order("timestamp ASC, created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sync queue: %w", err)
	}
	return events, nil
}

// UpdateSyncStatus is the only mutation path after creation. syncedAt and
// syncErr replace the stored values, including clearing them back to NULL
// when an event returns to pending.
func (s *EventStore) UpdateSyncStatus(localID string, status models.SyncState, syncedAt *int64, syncErr *string) error {
	res := s.db.Model(&models.AttendanceEvent{}).
		Where("local_id = ?", localID).
		Updates(map[string]interface{}{
			"sync_status": status,
			"synced_at":   syncedAt,
			"sync_error":  syncErr,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update sync status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{LocalID: localID}
	}
	return nil
}

// PurgeSyncedOlderThan deletes synced events stamped before the retention
// window. Pending, failed and conflict rows are never touched.
func (s *EventStore) PurgeSyncedOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	res := s.db.Where("sync_status = ? AND timestamp < ?", models.SyncSynced, cutoff).
		Delete(&models.AttendanceEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge events: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountPending counts events still waiting for the backend (pending + failed)
func (s *EventStore) CountPending() (int64, error) {
	var count int64
	err := s.db.Model(&models.AttendanceEvent{}).
		Where("sync_status IN ?", []models.SyncState{models.SyncPending, models.SyncFailed}).
		Count(&count).Error
	return count, err
}

// CountSince counts events stamped at or after the given unix-millis timestamp
func (s *EventStore) CountSince(sinceMillis int64) (int64, error) {
	var count int64
	err := s.db.Model(&models.AttendanceEvent{}).
		Where("timestamp >= ?", sinceMillis).
		Count(&count).Error
	return count, err
}
