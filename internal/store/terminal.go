package store

import (
	"errors"
	"fmt"

	"github.com/stempelwerk/stempelgo/internal/models"
	"gorm.io/gorm"
)

// TerminalStore manages the singleton TerminalConfig row.
type TerminalStore struct {
	db *gorm.DB
}

// NewTerminalStore creates a new terminal store
func NewTerminalStore(db *gorm.DB) *TerminalStore {
	return &TerminalStore{db: db}
}

// Get returns the terminal config, or ErrNotRegistered if none exists yet
func (s *TerminalStore) Get() (*models.TerminalConfig, error) {
	var tc models.TerminalConfig
	err := s.db.First(&tc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load terminal config: %w", err)
	}
	return &tc, nil
}

// Save persists the terminal config row (insert or update)
func (s *TerminalStore) Save(tc *models.TerminalConfig) error {
	if err := s.db.Save(tc).Error; err != nil {
		return fmt.Errorf("failed to save terminal config: %w", err)
	}
	return nil
}

// AdvanceCheckpoint moves the last-synced checkpoint forward. The checkpoint
// is monotonic: a smaller or equal timestamp is ignored, not an error.
func (s *TerminalStore) AdvanceCheckpoint(serverMillis int64) error {
	err := s.db.Model(&models.TerminalConfig{}).
		Where("last_sync_timestamp < ?", serverMillis).
		Update("last_sync_timestamp", serverMillis).Error
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	return nil
}
