package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"accountsystem/internal/logger"
	"accountsystem/internal/model"
	"accountsystem/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	topic, key, value string
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (p *fakePublisher) SendMessage(topic, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func seedOutbox(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Outbox().Create(context.Background(), &model.OutboxMessage{
			MessageKey: "txn",
			Topic:      "account.transaction.result",
			Payload:    `{"transaction_id":"txn"}`,
			Status:     model.OutboxStatusPending,
		}))
	}
}

func TestOutboxSender_SendsPendingMessages(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, 3)
	publisher := &fakePublisher{}

	sender := NewOutboxSender(store.Outbox(), publisher, logger.Discard(), time.Millisecond, 2, 3)

	assert.Equal(t, 2, sender.ProcessPendingMessages(context.Background()))
	assert.Equal(t, 1, sender.ProcessPendingMessages(context.Background()))
	assert.Equal(t, 0, sender.ProcessPendingMessages(context.Background()))

	require.Len(t, publisher.sent, 3)
	assert.Equal(t, "account.transaction.result", publisher.sent[0].topic)
	assert.Equal(t, "txn", publisher.sent[0].key)

	for _, msg := range store.OutboxMessages() {
		assert.Equal(t, model.OutboxStatusSent, msg.Status)
	}
}

func TestOutboxSender_MarksFailedAfterMaxRetries(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, 1)
	publisher := &fakePublisher{err: errors.New("broker down")}

	sender := NewOutboxSender(store.Outbox(), publisher, logger.Discard(), time.Millisecond, 10, 3)

	for i := 0; i < 2; i++ {
		assert.Equal(t, 0, sender.ProcessPendingMessages(context.Background()))
		msg := store.OutboxMessages()[0]
		assert.Equal(t, model.OutboxStatusPending, msg.Status)
		assert.Equal(t, i+1, msg.RetryCount)
	}

	assert.Equal(t, 0, sender.ProcessPendingMessages(context.Background()))
	msg := store.OutboxMessages()[0]
	assert.Equal(t, model.OutboxStatusFailed, msg.Status)
	assert.Equal(t, 3, msg.RetryCount)

	// 已失败的消息不再投递
	publisher.err = nil
	assert.Equal(t, 0, sender.ProcessPendingMessages(context.Background()))
}

func TestOutboxSender_StartStopsOnContextCancel(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, 2)
	publisher := &fakePublisher{}

	sender := NewOutboxSender(store.Outbox(), publisher, logger.Discard(), time.Millisecond, 10, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sender.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return publisher.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender did not stop")
	}
}
