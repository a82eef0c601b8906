package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"storefront/internal/logger"
)

const envelopeVersion = 1

// Envelope is the Kafka wire form of a data-layer event.
type Envelope struct {
	EventID      string    `json:"event_id"`
	Event        string    `json:"event"`
	EventVersion int       `json:"event_version"`
	OccurredAt   time.Time `json:"occurred_at"`
	Producer     string    `json:"producer"`
	UserID       string    `json:"user_id,omitempty"`
	VisitorCode  string    `json:"visitor_code,omitempty"`
	Payload      Payload   `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each event as an Envelope keyed by user id or visitor code.
type KafkaSink struct {
	w        messageWriter
	producer string
	logger   *logger.Logger
}

func NewKafkaSink(brokers []string, topic, producer string, logger *logger.Logger) *KafkaSink {
	log := logger.With("component", "analytics")
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Warn("analytics: %d event(s) not delivered: %v", len(messages), err)
				}
			},
		},
		producer: producer,
		logger:   log,
	}
}

func (k *KafkaSink) Emit(ctx context.Context, event string, payload Payload) error {
	env := Envelope{
		EventID:      uuid.New().String(),
		Event:        event,
		EventVersion: envelopeVersion,
		OccurredAt:   time.Now().UTC(),
		Producer:     k.producer,
		UserID:       stringField(payload, "user_id"),
		VisitorCode:  stringField(payload, "visitor_code"),
		Payload:      payload,
	}

	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}

	key := env.UserID
	if key == "" {
		key = env.VisitorCode
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s", event)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.w.Close()
}

// DecodeEnvelope is the consumer side of KafkaSink.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if env.EventID == "" || env.Event == "" {
		return nil, errors.New("envelope missing event id or name")
	}
	return &env, nil
}

func stringField(p Payload, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}
