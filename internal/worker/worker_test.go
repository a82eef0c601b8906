package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/analytics"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/worker/processors"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		m := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func message(t *testing.T, offset int64, env analytics.Envelope) kafka.Message {
	t.Helper()
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestWorkerStoresAndCommits(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	reader := &fakeReader{messages: []kafka.Message{
		message(t, 0, analytics.Envelope{EventID: "e1", Event: analytics.EventPageView, EventVersion: 1, OccurredAt: now}),
		{Offset: 1, Value: []byte("garbage")},
		message(t, 2, analytics.Envelope{EventID: "e1", Event: analytics.EventPageView, EventVersion: 1, OccurredAt: now}),
		message(t, 3, analytics.Envelope{EventID: "e2", Event: analytics.EventLogin, EventVersion: 1, OccurredAt: now, UserID: "u1"}),
	}}
	cfg := &config.Config{AnalyticsTopic: "storefront-events"}
	w := newWorker(cfg, logger.Nop(), reader, processors.NewEventProcessor(db.DB, logger.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	require.Eventually(t, func() bool { return len(reader.commits()) == 4 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	w.Stop()

	assert.Equal(t, []int64{0, 1, 2, 3}, reader.commits())
	assert.True(t, reader.closed)

	var events []models.AnalyticsEvent
	require.NoError(t, db.DB.Order("event_id").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].EventID)
	assert.Equal(t, "u1", events[1].UserID)
}
