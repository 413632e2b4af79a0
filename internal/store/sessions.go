package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stempelwerk/stempelgo/internal/models"
	"gorm.io/gorm"
)

// SessionStore writes the SyncSession diagnostics log.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a new session store
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Open records the start of a sync attempt
func (s *SessionStore) Open(syncType string) (*models.SyncSession, error) {
	sess := &models.SyncSession{
		ID:        uuid.NewString(),
		SyncType:  syncType,
		Status:    models.SessionRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.db.Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to open sync session: %w", err)
	}
	return sess, nil
}

// Finalize closes a sync attempt with its outcome and counters
func (s *SessionStore) Finalize(sess *models.SyncSession, status models.SyncSessionStatus, errDetail string) error {
	now := time.Now().UTC()
	sess.Status = status
	sess.CompletedAt = &now
	sess.ErrorDetail = errDetail
	if err := s.db.Save(sess).Error; err != nil {
		return fmt.Errorf("failed to finalize sync session: %w", err)
	}
	return nil
}

// Recent returns the latest sync attempts, newest first
func (s *SessionStore) Recent(limit int) ([]models.SyncSession, error) {
	var sessions []models.SyncSession
	err := s.db.Order("started_at DESC").Limit(limit).Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sync sessions: %w", err)
	}
	return sessions, nil
}
