package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/persistence/models"
)

// setupSyncTestDB creates an in-memory database with the sync schema
func setupSyncTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.InstanceModel{},
		&models.QueueModel{},
		&models.QueueLineModel{},
		&models.LogBookModel{},
		&models.LogLineModel{},
		&models.QueueSequenceModel{},
		&models.PaginationCursorModel{},
		&models.ActivityModel{},
	)
	require.NoError(t, err)
	return db
}

// persistQueue stores a queue header and its lines through the repository
func persistQueue(t *testing.T, repo *GormQueueRepository, queue *syncqueue.Queue) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, queue))
	for i := range queue.Lines {
		require.NoError(t, repo.AppendLine(ctx, &queue.Lines[i]))
	}
}

func newDraftQueue(instanceID uuid.UUID, name string, lines int) *syncqueue.Queue {
	queue := syncqueue.NewQueue(instanceID, syncqueue.CollectionOrders, name)
	for i := 0; i < lines; i++ {
		if _, err := queue.Append("key", []byte(`{}`)); err != nil {
			panic(err)
		}
		// Distinct timestamps keep the creation order stable under sqlite's
		// timestamp resolution.
		queue.Lines[i].CreatedAt = queue.CreatedAt.Add(time.Duration(i) * time.Millisecond)
	}
	return queue
}

func TestGormQueueRepository_CreateAndFindByID(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()

	queue := newDraftQueue(uuid.New(), "OQ/00001", 3)
	persistQueue(t, repo, queue)

	found, err := repo.FindByID(ctx, queue.ID)

	require.NoError(t, err)
	assert.Equal(t, queue.ID, found.ID)
	assert.Equal(t, "OQ/00001", found.Name)
	assert.Equal(t, syncqueue.QueueStateDraft, found.State)
	require.Len(t, found.Lines, 3)
	assert.Equal(t, queue.Lines[0].ID, found.Lines[0].ID)
}

func TestGormQueueRepository_FindByID_NotFound(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, syncqueue.ErrQueueNotFound)
}

func TestGormQueueRepository_FindOpenQueue(t *testing.T) {
	ctx := context.Background()
	instanceID := uuid.New()

	t.Run("returns the draft queue under capacity", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormQueueRepository(db)
		queue := newDraftQueue(instanceID, "OQ/00001", 10)
		persistQueue(t, repo, queue)

		open, err := repo.FindOpenQueue(ctx, instanceID, syncqueue.CollectionOrders)
		require.NoError(t, err)
		assert.Equal(t, queue.ID, open.ID)
		assert.Len(t, open.Lines, 10)
	})

	t.Run("skips full queues", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormQueueRepository(db)
		full := newDraftQueue(instanceID, "OQ/00001", syncqueue.QueueCapacity)
		persistQueue(t, repo, full)

		_, err := repo.FindOpenQueue(ctx, instanceID, syncqueue.CollectionOrders)
		assert.ErrorIs(t, err, syncqueue.ErrQueueNotFound)
	})

	t.Run("skips queues that left draft", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormQueueRepository(db)
		queue := newDraftQueue(instanceID, "OQ/00001", 2)
		queue.State = syncqueue.QueueStatePartiallyCompleted
		persistQueue(t, repo, queue)

		_, err := repo.FindOpenQueue(ctx, instanceID, syncqueue.CollectionOrders)
		assert.ErrorIs(t, err, syncqueue.ErrQueueNotFound)
	})

	t.Run("scoped to instance and collection", func(t *testing.T) {
		db := setupSyncTestDB(t)
		repo := NewGormQueueRepository(db)
		queue := newDraftQueue(uuid.New(), "OQ/00001", 1)
		persistQueue(t, repo, queue)

		_, err := repo.FindOpenQueue(ctx, instanceID, syncqueue.CollectionOrders)
		assert.ErrorIs(t, err, syncqueue.ErrQueueNotFound)

		_, err = repo.FindOpenQueue(ctx, queue.InstanceID, syncqueue.CollectionProducts)
		assert.ErrorIs(t, err, syncqueue.ErrQueueNotFound)
	})
}

func TestGormQueueRepository_FindProcessable(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()
	instanceID := uuid.New()

	draft := newDraftQueue(instanceID, "OQ/00001", 1)
	persistQueue(t, repo, draft)

	completed := newDraftQueue(instanceID, "OQ/00002", 1)
	completed.State = syncqueue.QueueStateCompleted
	persistQueue(t, repo, completed)

	flagged := newDraftQueue(instanceID, "OQ/00003", 1)
	flagged.RequiresManualAction = true
	persistQueue(t, repo, flagged)

	queues, err := repo.FindProcessable(ctx, instanceID, syncqueue.CollectionOrders)

	require.NoError(t, err)
	require.Len(t, queues, 1)
	assert.Equal(t, draft.ID, queues[0].ID)
}

func TestGormQueueRepository_SaveAndUpdateLine(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()

	queue := newDraftQueue(uuid.New(), "OQ/00001", 2)
	persistQueue(t, repo, queue)

	queue.Lines[0].MarkDone(nil)
	require.NoError(t, repo.UpdateLine(ctx, &queue.Lines[0]))

	queue.RecordAttempt()
	queue.RecomputeState()
	require.NoError(t, repo.Save(ctx, queue))

	found, err := repo.FindByID(ctx, queue.ID)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.QueueStatePartiallyCompleted, found.State)
	assert.Equal(t, 1, found.ProcessAttemptCount)
	assert.Equal(t, syncqueue.LineStateDone, found.Lines[0].State)
	assert.NotNil(t, found.Lines[0].ProcessedAt)
	assert.Equal(t, syncqueue.LineStateDraft, found.Lines[1].State)
}

func TestGormQueueRepository_SetProcessing(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()

	queue := newDraftQueue(uuid.New(), "OQ/00001", 1)
	persistQueue(t, repo, queue)

	require.NoError(t, repo.SetProcessing(ctx, queue.ID, true))
	found, err := repo.FindByID(ctx, queue.ID)
	require.NoError(t, err)
	assert.True(t, found.IsProcessing)

	require.NoError(t, repo.SetProcessing(ctx, queue.ID, false))
	found, err = repo.FindByID(ctx, queue.ID)
	require.NoError(t, err)
	assert.False(t, found.IsProcessing)
}

func TestGormQueueRepository_Delete(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()

	t.Run("refuses a queue with lines", func(t *testing.T) {
		queue := newDraftQueue(uuid.New(), "OQ/00001", 1)
		persistQueue(t, repo, queue)

		err := repo.Delete(ctx, queue.ID)
		assert.ErrorIs(t, err, syncqueue.ErrQueueHasLines)
	})

	t.Run("removes an empty queue", func(t *testing.T) {
		queue := newDraftQueue(uuid.New(), "OQ/00002", 0)
		persistQueue(t, repo, queue)

		require.NoError(t, repo.Delete(ctx, queue.ID))
		_, err := repo.FindByID(ctx, queue.ID)
		assert.ErrorIs(t, err, syncqueue.ErrQueueNotFound)
	})
}

func TestGormQueueRepository_NextSequence(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()
	instanceID := uuid.New()

	for want := int64(1); want <= 3; want++ {
		seq, err := repo.NextSequence(ctx, instanceID, syncqueue.CollectionOrders)
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	// Other collections and instances count independently.
	seq, err := repo.NextSequence(ctx, instanceID, syncqueue.CollectionProducts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = repo.NextSequence(ctx, uuid.New(), syncqueue.CollectionOrders)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestGormQueueRepository_Create_NamesUniquePerInstance(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()
	instanceA := uuid.New()
	instanceB := uuid.New()

	// Sequences run per (instance, collection), so a second instance starts
	// over at OQ/00001 and must not collide with the first instance's queue.
	require.NoError(t, repo.Create(ctx, syncqueue.NewQueue(instanceA, syncqueue.CollectionOrders, "OQ/00001")))
	require.NoError(t, repo.Create(ctx, syncqueue.NewQueue(instanceB, syncqueue.CollectionOrders, "OQ/00001")))

	// The same name in a different collection of one instance is also fine.
	require.NoError(t, repo.Create(ctx, syncqueue.NewQueue(instanceA, syncqueue.CollectionProducts, "OQ/00001")))

	// Within one (instance, collection) the name stays unique.
	err := repo.Create(ctx, syncqueue.NewQueue(instanceA, syncqueue.CollectionOrders, "OQ/00001"))
	assert.Error(t, err)
}

func TestGormQueueRepository_CountByState(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()
	instanceID := uuid.New()

	queue := newDraftQueue(instanceID, "OQ/00001", 4)
	queue.Lines[0].MarkDone(nil)
	queue.Lines[1].MarkFailed()
	persistQueue(t, repo, queue)
	for i := range queue.Lines {
		require.NoError(t, repo.UpdateLine(ctx, &queue.Lines[i]))
	}

	counts, err := repo.CountByState(ctx, instanceID, syncqueue.CollectionOrders)

	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[syncqueue.LineStateDraft])
	assert.Equal(t, int64(1), counts[syncqueue.LineStateDone])
	assert.Equal(t, int64(1), counts[syncqueue.LineStateFailed])
}

func TestGormQueueRepository_List(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewGormQueueRepository(db)
	ctx := context.Background()
	instanceID := uuid.New()

	older := newDraftQueue(instanceID, "OQ/00001", 0)
	older.CreatedAt = time.Now().Add(-time.Hour)
	persistQueue(t, repo, older)
	newer := newDraftQueue(instanceID, "OQ/00002", 0)
	persistQueue(t, repo, newer)

	queues, err := repo.List(ctx, instanceID, syncqueue.CollectionOrders, 10, 0)

	require.NoError(t, err)
	require.Len(t, queues, 2)
	assert.Equal(t, "OQ/00002", queues[0].Name, "newest first")
	assert.Equal(t, "OQ/00001", queues[1].Name)
}
