package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storefront/internal/analytics"
	"storefront/internal/logger"
)

func envelope(event string, payload analytics.Payload) *analytics.Envelope {
	return &analytics.Envelope{
		EventID:      "e1",
		Event:        event,
		EventVersion: 1,
		OccurredAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload:      payload,
	}
}

func TestValidateEnvelope(t *testing.T) {
	v := New(logger.Nop())

	tests := []struct {
		name  string
		env   *analytics.Envelope
		valid bool
	}{
		{"login", envelope(analytics.EventLogin, analytics.Payload{"user_id": "u1"}), true},
		{"unknown name", envelope("signup_started", nil), false},
		{"purchase", envelope(analytics.EventPurchase, analytics.Payload{
			"ecommerce": map[string]interface{}{"transaction_id": "O1"},
		}), true},
		{"purchase without transaction", envelope(analytics.EventPurchase, analytics.Payload{
			"ecommerce": map[string]interface{}{"value": 1.5},
		}), false},
		{"purchase without ecommerce", envelope(analytics.EventPurchase, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateEnvelope(tt.env)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestValidateEnvelopeVersionAndTime(t *testing.T) {
	v := New(logger.Nop())

	future := envelope(analytics.EventLogout, nil)
	future.EventVersion = MaxEventVersion + 1
	assert.ErrorIs(t, v.ValidateEnvelope(future), ErrInvalid)

	undated := envelope(analytics.EventLogout, nil)
	undated.OccurredAt = time.Time{}
	assert.ErrorIs(t, v.ValidateEnvelope(undated), ErrInvalid)
}
