package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
)

func newTestQueueManager(repo *fakeQueueRepo, dedup RecordDedupStore, notifier *fakeNotifier) *QueueManager {
	return NewQueueManager(repo, dedup, notifier, zap.NewNop())
}

func TestQueueManager_GetOrCreateOpenQueue(t *testing.T) {
	ctx := context.Background()
	instance := testInstance()

	t.Run("creates a sequentially named queue and notifies", func(t *testing.T) {
		repo := newFakeQueueRepo()
		notifier := &fakeNotifier{}
		m := newTestQueueManager(repo, nil, notifier)

		queue, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)

		require.NoError(t, err)
		assert.Equal(t, "OQ/00001", queue.Name)
		assert.Equal(t, syncqueue.QueueStateDraft, queue.State)
		assert.True(t, notifier.contains("Queue #OQ/00001 Created!!"))
	})

	t.Run("reuses the open queue instead of creating another", func(t *testing.T) {
		repo := newFakeQueueRepo()
		m := newTestQueueManager(repo, nil, &fakeNotifier{})

		first, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)
		second, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("sequences are independent per collection", func(t *testing.T) {
		repo := newFakeQueueRepo()
		m := newTestQueueManager(repo, nil, &fakeNotifier{})

		orders, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)
		products, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionProducts)
		require.NoError(t, err)

		assert.Equal(t, "OQ/00001", orders.Name)
		assert.Equal(t, "PQ/00001", products.Name)
	})

	t.Run("ignores full and non-draft queues", func(t *testing.T) {
		repo := newFakeQueueRepo()
		m := newTestQueueManager(repo, nil, &fakeNotifier{})

		full, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)
		for i := 0; i < syncqueue.QueueCapacity; i++ {
			_, err := full.Append("key", nil)
			require.NoError(t, err)
		}

		next, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)
		assert.NotEqual(t, full.ID, next.ID)
		assert.Equal(t, "OQ/00002", next.Name)
	})
}

func TestQueueManager_AppendRecord(t *testing.T) {
	ctx := context.Background()
	instance := testInstance()

	t.Run("appends and marks the record key", func(t *testing.T) {
		repo := newFakeQueueRepo()
		dedup := newFakeDedupStore()
		m := newTestQueueManager(repo, dedup, &fakeNotifier{})
		queue, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)

		line, err := m.AppendRecord(ctx, instance, queue, remote.Record{Key: "100000251", Payload: []byte(`{}`)})

		require.NoError(t, err)
		require.NotNil(t, line)
		assert.Equal(t, 1, repo.appendLineCalls)

		seen, err := dedup.Seen(ctx, instance, syncqueue.CollectionOrders, "100000251")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("skips an already queued record without error", func(t *testing.T) {
		repo := newFakeQueueRepo()
		dedup := newFakeDedupStore()
		m := newTestQueueManager(repo, dedup, &fakeNotifier{})
		queue, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)

		record := remote.Record{Key: "100000251", Payload: []byte(`{}`)}
		_, err = m.AppendRecord(ctx, instance, queue, record)
		require.NoError(t, err)

		line, err := m.AppendRecord(ctx, instance, queue, record)
		require.NoError(t, err)
		assert.Nil(t, line)
		assert.Len(t, queue.Lines, 1)
	})

	t.Run("records without a key bypass dedup", func(t *testing.T) {
		repo := newFakeQueueRepo()
		dedup := newFakeDedupStore()
		m := newTestQueueManager(repo, dedup, &fakeNotifier{})
		queue, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			line, err := m.AppendRecord(ctx, instance, queue, remote.Record{Payload: []byte(`{}`)})
			require.NoError(t, err)
			require.NotNil(t, line)
		}
		assert.Len(t, queue.Lines, 2)
	})

	t.Run("appending to a full queue surfaces the capacity error", func(t *testing.T) {
		repo := newFakeQueueRepo()
		m := newTestQueueManager(repo, nil, &fakeNotifier{})
		queue, err := m.GetOrCreateOpenQueue(ctx, instance, syncqueue.CollectionOrders)
		require.NoError(t, err)
		for i := 0; i < syncqueue.QueueCapacity; i++ {
			_, err := queue.Append("key", nil)
			require.NoError(t, err)
		}

		_, err = m.AppendRecord(ctx, instance, queue, remote.Record{Key: "overflow"})
		assert.ErrorIs(t, err, syncqueue.ErrQueueFull)
	})
}
