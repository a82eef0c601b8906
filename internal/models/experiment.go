package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VisitorData is custom data attached to a visitor code (e.g. user_id for cross-device matching).
type VisitorData struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	SiteCode    string    `json:"site_code"`
	VisitorCode string    `json:"visitor_code" gorm:"index;not null"`
	Key         string    `json:"key" gorm:"not null"`
	Value       string    `json:"value"`
	CreatedAt   time.Time `json:"created_at"`
}

type ExperimentConversion struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	SiteCode    string          `json:"site_code"`
	VisitorCode string          `json:"visitor_code" gorm:"index;not null"`
	GoalID      string          `json:"goal_id" gorm:"index;not null"`
	Revenue     decimal.Decimal `json:"revenue" gorm:"type:decimal(12,2)"`
	ActiveFlags []string        `json:"active_flags" gorm:"serializer:json"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (d *VisitorData) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

func (c *ExperimentConversion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
