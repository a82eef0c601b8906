package validation

import (
	"fmt"

	"github.com/go-faster/errors"

	"storefront/internal/analytics"
	"storefront/internal/logger"
)

// MaxEventVersion is the newest envelope version this worker understands.
const MaxEventVersion = 1

// ErrInvalid marks an envelope that will never become valid on redelivery.
var ErrInvalid = errors.New("invalid event")

var knownEvents = map[string]bool{
	analytics.EventLogin:           true,
	analytics.EventLogout:          true,
	analytics.EventUserStatusCheck: true,
	analytics.EventAddToCart:       true,
	analytics.EventViewItem:        true,
	analytics.EventPageView:        true,
	analytics.EventPurchase:        true,
}

type Validator struct {
	logger *logger.Logger
}

func New(logger *logger.Logger) *Validator {
	return &Validator{
		logger: logger,
	}
}

// ValidateEnvelope checks the fields the analytics store relies on.
func (v *Validator) ValidateEnvelope(env *analytics.Envelope) error {
	if env.EventVersion > MaxEventVersion {
		return invalid("event %s has unsupported version %d", env.EventID, env.EventVersion)
	}
	if !knownEvents[env.Event] {
		return invalid("event %s has unknown name %q", env.EventID, env.Event)
	}
	if env.OccurredAt.IsZero() {
		return invalid("event %s has no timestamp", env.EventID)
	}

	if env.Event == analytics.EventPurchase {
		ecommerce, _ := env.Payload["ecommerce"].(map[string]interface{})
		if id, _ := ecommerce["transaction_id"].(string); id == "" {
			return invalid("purchase %s has no transaction id", env.EventID)
		}
	}

	v.logger.Debug("event %s (%s) is valid", env.EventID, env.Event)
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrap(ErrInvalid, fmt.Sprintf(format, args...))
}
