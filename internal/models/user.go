package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                   string     `json:"id" gorm:"primaryKey"`
	Email                string     `json:"email" gorm:"uniqueIndex;not null"`
	DisplayName          string     `json:"display_name"`
	PasswordHash         string     `json:"-" gorm:"not null"`
	PasswordResetRequest *time.Time `json:"password_reset_requested_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (u *User) Identity() *Identity {
	return &Identity{
		UID:         u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Provider:    ProviderPassword,
	}
}
