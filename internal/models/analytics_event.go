package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnalyticsEvent is a data-layer event as stored by the analytics worker.
type AnalyticsEvent struct {
	ID          string                 `json:"id" gorm:"primaryKey"`
	EventID     string                 `json:"event_id" gorm:"uniqueIndex;not null"`
	Name        string                 `json:"name" gorm:"index;not null"`
	VisitorCode string                 `json:"visitor_code"`
	UserID      string                 `json:"user_id"`
	Payload     map[string]interface{} `json:"payload" gorm:"serializer:json"`
	OccurredAt  time.Time              `json:"occurred_at"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (e *AnalyticsEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
