package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/persistence/models"
)

// GormLogBookRepository implements syncqueue.LogBookRepository using GORM
type GormLogBookRepository struct {
	db *gorm.DB
}

// NewGormLogBookRepository creates a new GormLogBookRepository
func NewGormLogBookRepository(db *gorm.DB) *GormLogBookRepository {
	return &GormLogBookRepository{db: db}
}

// GetOrCreateForQueue returns the queue's log book, creating it lazily and
// linking it back to the queue header on first use
func (r *GormLogBookRepository) GetOrCreateForQueue(ctx context.Context, queue *syncqueue.Queue) (*syncqueue.LogBook, error) {
	book, err := r.FindByQueue(ctx, queue.ID)
	if err == nil {
		queue.LogBookID = &book.ID
		return book, nil
	}
	if !errors.Is(err, syncqueue.ErrLogBookNotFound) {
		return nil, err
	}

	book = syncqueue.NewLogBook(queue.ID, queue.InstanceID)
	var model models.LogBookModel
	model.FromDomain(book)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, err
	}

	queue.LogBookID = &book.ID
	if err := r.db.WithContext(ctx).Model(&models.QueueModel{}).
		Where("id = ?", queue.ID).
		Update("log_book_id", book.ID).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// FindByQueue returns the queue's log book with its lines in creation order
func (r *GormLogBookRepository) FindByQueue(ctx context.Context, queueID uuid.UUID) (*syncqueue.LogBook, error) {
	var model models.LogBookModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("log_lines.created_at ASC")
		}).
		First(&model, "queue_id = ?", queueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncqueue.ErrLogBookNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// AddLine persists one log line
func (r *GormLogBookRepository) AddLine(ctx context.Context, line *syncqueue.LogLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now()
	}
	var model models.LogLineModel
	model.FromDomain(line)
	return r.db.WithContext(ctx).Create(&model).Error
}

// CountLines returns the number of lines in a log book
func (r *GormLogBookRepository) CountLines(ctx context.Context, logBookID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LogLineModel{}).
		Where("log_book_id = ?", logBookID).
		Count(&count).Error
	return count, err
}

// DeleteIfEmpty removes the log book when it collected nothing. A book that
// gathered lines is kept as the queue's audit trail.
func (r *GormLogBookRepository) DeleteIfEmpty(ctx context.Context, logBookID uuid.UUID) error {
	count, err := r.CountLines(ctx, logBookID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.QueueModel{}).
		Where("log_book_id = ?", logBookID).
		Update("log_book_id", nil).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.LogBookModel{}, "id = ?", logBookID).Error
}

// Ensure GormLogBookRepository implements LogBookRepository
var _ syncqueue.LogBookRepository = (*GormLogBookRepository)(nil)
