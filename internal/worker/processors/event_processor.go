package processors

import (
	"context"

	"github.com/go-faster/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/analytics"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/worker/processors/validation"
)

// EventProcessor stores data-layer envelopes read from Kafka. Redelivered
// envelopes are ignored by event id.
type EventProcessor struct {
	db        *gorm.DB
	logger    *logger.Logger
	validator *validation.Validator
}

func NewEventProcessor(db *gorm.DB, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		db:        db,
		logger:    logger,
		validator: validation.New(logger),
	}
}

// Process returns an error wrapping validation.ErrInvalid for messages that
// can never be stored; any other error is worth retrying.
func (ep *EventProcessor) Process(ctx context.Context, value []byte) error {
	env, err := analytics.DecodeEnvelope(value)
	if err != nil {
		return errors.Wrap(validation.ErrInvalid, err.Error())
	}
	if err := ep.validator.ValidateEnvelope(env); err != nil {
		return err
	}

	event := models.AnalyticsEvent{
		EventID:     env.EventID,
		Name:        env.Event,
		VisitorCode: env.VisitorCode,
		UserID:      env.UserID,
		Payload:     env.Payload,
		OccurredAt:  env.OccurredAt,
	}
	res := ep.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&event)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "store event %s", env.EventID)
	}

	if res.RowsAffected == 0 {
		ep.logger.Debug("event %s already stored", env.EventID)
		return nil
	}
	ep.logger.Debug("stored %s event %s", env.Event, env.EventID)
	return nil
}
