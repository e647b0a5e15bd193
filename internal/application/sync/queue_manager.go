package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
)

// RecordDedupStore remembers which record keys have already been queued so a
// re-fetched page (crash before the cursor advanced) does not produce
// duplicate lines. A best-effort cache: failures degrade to duplicate work,
// never to lost records.
type RecordDedupStore interface {
	// Seen returns true if the record key was already queued for the pair
	Seen(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) (bool, error)

	// Mark remembers a queued record key
	Mark(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) error
}

// QueueManager creates queues and packs incoming records into them while
// respecting the queue capacity. It favors availability over perfect packing:
// racing producers may create duplicate near-empty queues, which is tolerated.
type QueueManager struct {
	queueRepo syncqueue.QueueRepository
	dedup     RecordDedupStore
	notifier  syncqueue.Notifier
	logger    *zap.Logger
}

// NewQueueManager creates a new QueueManager
func NewQueueManager(
	queueRepo syncqueue.QueueRepository,
	dedup RecordDedupStore,
	notifier syncqueue.Notifier,
	logger *zap.Logger,
) *QueueManager {
	return &QueueManager{
		queueRepo: queueRepo,
		dedup:     dedup,
		notifier:  notifier,
		logger:    logger,
	}
}

// GetOrCreateOpenQueue returns the most recent draft queue under capacity for
// the instance and collection, creating one when none exists. Safe to call
// repeatedly inside a tight ingestion loop.
func (m *QueueManager) GetOrCreateOpenQueue(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection) (*syncqueue.Queue, error) {
	queue, err := m.queueRepo.FindOpenQueue(ctx, instance.ID, collection)
	if err == nil {
		return queue, nil
	}
	if !errors.Is(err, syncqueue.ErrQueueNotFound) {
		return nil, err
	}

	seq, err := m.queueRepo.NextSequence(ctx, instance.ID, collection)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s/%05d", collection.QueuePrefix(), seq)

	queue = syncqueue.NewQueue(instance.ID, collection, name)
	if err := m.queueRepo.Create(ctx, queue); err != nil {
		return nil, err
	}

	m.logger.Info("Sync queue created",
		zap.String("queue_name", queue.Name),
		zap.String("instance_id", instance.ID.String()),
		zap.String("collection", collection.String()),
	)

	// Fire-and-forget: notification failure must not abort ingestion.
	m.notifier.Notify(ctx, instance.ID, fmt.Sprintf("Queue #%s Created!!", queue.Name))

	return queue, nil
}

// AppendRecord appends one record to the queue as a draft line and persists
// it. Records with a known key that were already queued for this range are
// skipped (nil line, no error). The caller must check IsFull after a
// successful append and roll over to a fresh open queue.
func (m *QueueManager) AppendRecord(ctx context.Context, instance *syncqueue.Instance, queue *syncqueue.Queue, record remote.Record) (*syncqueue.QueueLine, error) {
	if record.Key != "" && m.dedup != nil {
		seen, err := m.dedup.Seen(ctx, instance, queue.Collection, record.Key)
		if err != nil {
			m.logger.Warn("Record dedup lookup failed, queuing anyway",
				zap.String("record_key", record.Key),
				zap.Error(err),
			)
		} else if seen {
			m.logger.Debug("Skipping already queued record",
				zap.String("record_key", record.Key),
				zap.String("queue_name", queue.Name),
			)
			return nil, nil
		}
	}

	line, err := queue.Append(record.Key, record.Payload)
	if err != nil {
		return nil, err
	}
	if err := m.queueRepo.AppendLine(ctx, line); err != nil {
		return nil, err
	}

	if record.Key != "" && m.dedup != nil {
		if err := m.dedup.Mark(ctx, instance, queue.Collection, record.Key); err != nil {
			m.logger.Warn("Record dedup mark failed",
				zap.String("record_key", record.Key),
				zap.Error(err),
			)
		}
	}

	return line, nil
}
