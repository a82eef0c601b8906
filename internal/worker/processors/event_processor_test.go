package processors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/analytics"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/worker/processors/validation"
)

func newProcessor(t *testing.T) (*EventProcessor, *database.Database) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventProcessor(db.DB, logger.Nop()), db
}

func encode(t *testing.T, env analytics.Envelope) []byte {
	t.Helper()
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func TestProcessStoresEvent(t *testing.T) {
	p, db := newProcessor(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := p.Process(context.Background(), encode(t, analytics.Envelope{
		EventID:      "e1",
		Event:        analytics.EventAddToCart,
		EventVersion: 1,
		OccurredAt:   at,
		UserID:       "u1",
		VisitorCode:  "v1",
		Payload:      analytics.Payload{"visitor_code": "v1"},
	}))
	require.NoError(t, err)

	var stored []models.AnalyticsEvent
	require.NoError(t, db.DB.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, "e1", stored[0].EventID)
	assert.Equal(t, analytics.EventAddToCart, stored[0].Name)
	assert.Equal(t, "u1", stored[0].UserID)
	assert.Equal(t, "v1", stored[0].Payload["visitor_code"])
	assert.True(t, at.Equal(stored[0].OccurredAt))
}

func TestProcessIsIdempotent(t *testing.T) {
	p, db := newProcessor(t)
	msg := encode(t, analytics.Envelope{
		EventID:      "e1",
		Event:        analytics.EventLogout,
		EventVersion: 1,
		OccurredAt:   time.Now(),
	})

	require.NoError(t, p.Process(context.Background(), msg))
	require.NoError(t, p.Process(context.Background(), msg))

	var count int64
	require.NoError(t, db.DB.Model(&models.AnalyticsEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessRejectsBadMessages(t *testing.T) {
	p, _ := newProcessor(t)

	err := p.Process(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, validation.ErrInvalid)

	err = p.Process(context.Background(), []byte(`{"event":"login"}`))
	assert.ErrorIs(t, err, validation.ErrInvalid)

	err = p.Process(context.Background(), encode(t, analytics.Envelope{
		EventID:    "e2",
		Event:      "made_up",
		OccurredAt: time.Now(),
	}))
	assert.ErrorIs(t, err, validation.ErrInvalid)
}
