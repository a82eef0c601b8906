package experiment

import (
	"context"

	"gorm.io/gorm"

	"storefront/internal/models"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) SaveVisitorData(ctx context.Context, data []models.VisitorData) error {
	return s.db.WithContext(ctx).Create(&data).Error
}

func (s *GormStore) SaveConversion(ctx context.Context, conversion *models.ExperimentConversion) error {
	return s.db.WithContext(ctx).Create(conversion).Error
}

func (s *GormStore) VisitorData(ctx context.Context, visitorCode string) ([]models.VisitorData, error) {
	var data []models.VisitorData
	err := s.db.WithContext(ctx).
		Where("visitor_code = ?", visitorCode).
		Order("created_at").
		Find(&data).Error
	return data, err
}

func (s *GormStore) Conversions(ctx context.Context, goalID string) ([]models.ExperimentConversion, error) {
	var conversions []models.ExperimentConversion
	err := s.db.WithContext(ctx).
		Where("goal_id = ?", goalID).
		Order("created_at").
		Find(&conversions).Error
	return conversions, err
}
