package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/persistence/models"
)

// GormQueueRepository implements syncqueue.QueueRepository using GORM
type GormQueueRepository struct {
	db *gorm.DB
}

// NewGormQueueRepository creates a new GormQueueRepository
func NewGormQueueRepository(db *gorm.DB) *GormQueueRepository {
	return &GormQueueRepository{db: db}
}

// Create persists a new queue header
func (r *GormQueueRepository) Create(ctx context.Context, queue *syncqueue.Queue) error {
	var model models.QueueModel
	model.FromDomain(queue)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Save persists the queue header (state, counters, flags)
func (r *GormQueueRepository) Save(ctx context.Context, queue *syncqueue.Queue) error {
	var model models.QueueModel
	model.FromDomain(queue)
	return r.db.WithContext(ctx).Model(&models.QueueModel{}).
		Where("id = ?", queue.ID).
		Select("State", "ProcessAttemptCount", "RequiresManualAction", "IsProcessing", "LogBookID", "UpdatedAt").
		Updates(&model).Error
}

// FindByID loads a queue with its lines in creation order
func (r *GormQueueRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncqueue.Queue, error) {
	var model models.QueueModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sync_queue_lines.created_at ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncqueue.ErrQueueNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenQueue returns the most recent draft queue under capacity
func (r *GormQueueRepository) FindOpenQueue(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (*syncqueue.Queue, error) {
	lineCount := r.db.Model(&models.QueueLineModel{}).
		Select("count(*)").
		Where("sync_queue_lines.queue_id = sync_queues.id")

	var model models.QueueModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sync_queue_lines.created_at ASC")
		}).
		Where("instance_id = ? AND collection = ? AND state = ?", instanceID, collection, syncqueue.QueueStateDraft).
		Where("(?) < ?", lineCount, syncqueue.QueueCapacity).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncqueue.ErrQueueNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindProcessable returns not-completed, not-escalated queues with lines,
// oldest first
func (r *GormQueueRepository) FindProcessable(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection) ([]*syncqueue.Queue, error) {
	var queueModels []models.QueueModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sync_queue_lines.created_at ASC")
		}).
		Where("instance_id = ? AND collection = ?", instanceID, collection).
		Where("state <> ?", syncqueue.QueueStateCompleted).
		Where("requires_manual_action = ?", false).
		Order("created_at ASC").
		Find(&queueModels).Error; err != nil {
		return nil, err
	}

	queues := make([]*syncqueue.Queue, len(queueModels))
	for i := range queueModels {
		queues[i] = queueModels[i].ToDomain()
	}
	return queues, nil
}

// List returns queue headers for the instance, newest first
func (r *GormQueueRepository) List(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection, limit, offset int) ([]*syncqueue.Queue, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var queueModels []models.QueueModel
	if err := r.db.WithContext(ctx).
		Where("instance_id = ? AND collection = ?", instanceID, collection).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&queueModels).Error; err != nil {
		return nil, err
	}

	queues := make([]*syncqueue.Queue, len(queueModels))
	for i := range queueModels {
		queues[i] = queueModels[i].ToDomain()
	}
	return queues, nil
}

// AppendLine persists a newly appended line
func (r *GormQueueRepository) AppendLine(ctx context.Context, line *syncqueue.QueueLine) error {
	var model models.QueueLineModel
	model.FromDomain(line)
	return r.db.WithContext(ctx).Create(&model).Error
}

// UpdateLine persists a line's state change. Each call is its own commit:
// line-level progress is the engine's crash-recovery checkpoint.
func (r *GormQueueRepository) UpdateLine(ctx context.Context, line *syncqueue.QueueLine) error {
	var model models.QueueLineModel
	model.FromDomain(line)
	return r.db.WithContext(ctx).Model(&models.QueueLineModel{}).
		Where("id = ?", line.ID).
		Select("State", "ProcessedAt", "LocalEntityID").
		Updates(&model).Error
}

// SetProcessing durably flips the advisory processing flag
func (r *GormQueueRepository) SetProcessing(ctx context.Context, queueID uuid.UUID, processing bool) error {
	return r.db.WithContext(ctx).Model(&models.QueueModel{}).
		Where("id = ?", queueID).
		Update("is_processing", processing).Error
}

// Delete removes a queue; refused while lines exist (audit trail)
func (r *GormQueueRepository) Delete(ctx context.Context, queueID uuid.UUID) error {
	var lineCount int64
	if err := r.db.WithContext(ctx).Model(&models.QueueLineModel{}).
		Where("queue_id = ?", queueID).
		Count(&lineCount).Error; err != nil {
		return err
	}
	if lineCount > 0 {
		return syncqueue.ErrQueueHasLines
	}
	return r.db.WithContext(ctx).Delete(&models.QueueModel{}, "id = ?", queueID).Error
}

// NextSequence reserves the next sequential queue number for a collection
func (r *GormQueueRepository) NextSequence(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.QueueSequenceModel{}).
			Where("instance_id = ? AND collection = ?", instanceID, collection).
			Update("next_value", gorm.Expr("next_value + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			seq = 1
			return tx.Create(&models.QueueSequenceModel{
				InstanceID: instanceID,
				Collection: collection,
				NextValue:  2,
			}).Error
		}

		var model models.QueueSequenceModel
		if err := tx.Where("instance_id = ? AND collection = ?", instanceID, collection).
			First(&model).Error; err != nil {
			return err
		}
		seq = model.NextValue - 1
		return nil
	})
	return seq, err
}

// CountByState returns queue-line counts per state for dashboards
func (r *GormQueueRepository) CountByState(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (map[syncqueue.LineState]int64, error) {
	type stateCount struct {
		State syncqueue.LineState
		Count int64
	}
	var rows []stateCount
	if err := r.db.WithContext(ctx).Model(&models.QueueLineModel{}).
		Select("sync_queue_lines.state AS state, count(*) AS count").
		Joins("JOIN sync_queues ON sync_queues.id = sync_queue_lines.queue_id").
		Where("sync_queues.instance_id = ? AND sync_queues.collection = ?", instanceID, collection).
		Group("sync_queue_lines.state").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[syncqueue.LineState]int64, len(rows))
	for _, row := range rows {
		counts[row.State] = row.Count
	}
	return counts, nil
}

// Ensure GormQueueRepository implements QueueRepository
var _ syncqueue.QueueRepository = (*GormQueueRepository)(nil)
