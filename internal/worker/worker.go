package worker

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/worker/processors"
	"storefront/internal/worker/processors/validation"
)

const retryDelay = time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Worker drains the analytics topic into the database. Offsets are committed
// after a message is stored or found permanently invalid.
type Worker struct {
	config    *config.Config
	logger    *logger.Logger
	reader    messageReader
	processor *processors.EventProcessor
}

func New(cfg *config.Config, logger *logger.Logger, db *gorm.DB) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  "storefront-analytics",
		Topic:    cfg.AnalyticsTopic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})

	return newWorker(cfg, logger, reader, processors.NewEventProcessor(db, logger))
}

func newWorker(cfg *config.Config, logger *logger.Logger, reader messageReader, processor *processors.EventProcessor) *Worker {
	return &Worker{
		config:    cfg,
		logger:    logger.With("component", "worker"),
		reader:    reader,
		processor: processor,
	}
}

// Start consumes until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started, listening on %s", w.config.AnalyticsTopic)

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Failed to read message: %v", err)
			if !sleep(ctx, retryDelay) {
				return
			}
			continue
		}

		w.logger.Debug("Received message at offset %d: %s", message.Offset, string(message.Value))

		if !w.handle(ctx, message) {
			return
		}

		if err := w.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Failed to commit offset %d: %v", message.Offset, err)
		}
	}
}

// handle retries transient failures until the message is stored or ctx is done.
func (w *Worker) handle(ctx context.Context, message kafka.Message) bool {
	for {
		err := w.processor.Process(ctx, message.Value)
		switch {
		case err == nil:
			return true
		case errors.Is(err, validation.ErrInvalid):
			w.logger.Warn("Skipping message at offset %d: %v", message.Offset, err)
			return true
		}

		w.logger.Error("Failed to process message at offset %d: %v", message.Offset, err)
		if !sleep(ctx, retryDelay) {
			return false
		}
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.reader.Close(); err != nil {
		w.logger.Error("Failed to close reader: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
