package models

import (
	"time"
)

type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Provider    string `json:"provider"`
}

type Session struct {
	Identity
	SignedInAt time.Time `json:"signedInAt"`
}

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// SessionRecord persists a session for one client key so it survives restarts.
type SessionRecord struct {
	Key         string    `json:"key" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"not null"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Provider    string    `json:"provider"`
	SignedInAt  time.Time `json:"signed_in_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *SessionRecord) Session() *Session {
	return &Session{
		Identity: Identity{
			UID:         r.UserID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
			Provider:    r.Provider,
		},
		SignedInAt: r.SignedInAt,
	}
}
