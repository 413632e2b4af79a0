package store

import (
	"errors"
	"fmt"

	"github.com/stempelwerk/stempelgo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserStore is the local roster cache.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a new user store
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Upsert replaces users wholesale by id. A user present in the batch loses
// any locally cached field values; there is no per-field merging.
func (s *UserStore) Upsert(users []models.User) error {
	for i := range users {
		err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&users[i]).Error
		if err != nil {
			return fmt.Errorf("failed to upsert user %s: %w", users[i].ID, err)
		}
	}
	return nil
}

// Get returns one user by id
func (s *UserStore) Get(id string) (*models.User, error) {
	var u models.User
	err := s.db.Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// FindByCardHash looks up an active user by the opaque card identifier
func (s *UserStore) FindByCardHash(cardHash string) (*models.User, error) {
	var u models.User
	err := s.db.Where("card_hash = ? AND is_active = ?", cardHash, true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no active user for card")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up card: %w", err)
	}
	return &u, nil
}

// FindByPinHash looks up an active user by hashed PIN
func (s *UserStore) FindByPinHash(userID, pinHash string) (*models.User, error) {
	var u models.User
	err := s.db.Where("id = ? AND pin_hash = ? AND is_active = ?", userID, pinHash, true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invalid pin")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify pin: %w", err)
	}
	return &u, nil
}

// List returns the cached roster
func (s *UserStore) List() ([]models.User, error) {
	var users []models.User
	err := s.db.Order("name ASC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Count returns the roster size
func (s *UserStore) Count() (int64, error) {
	var count int64
	err := s.db.Model(&models.User{}).Count(&count).Error
	return count, err
}
