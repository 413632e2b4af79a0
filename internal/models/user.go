package models

import "time"

// User is the local roster cache. The backend owns it; sync responses
// replace rows wholesale per user id, no field-level merging.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CardHash  *string   `gorm:"type:varchar(64);index" json:"cardHash,omitempty"`
	PinHash   *string   `gorm:"type:varchar(64)" json:"-"`
	Role      string    `gorm:"default:'employee'" json:"role"`
	IsActive  bool      `gorm:"default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}
