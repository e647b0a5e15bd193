package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/persistence/models"
)

// GormCursorRepository implements remote.CursorRepository using GORM
type GormCursorRepository struct {
	db *gorm.DB
}

// NewGormCursorRepository creates a new GormCursorRepository
func NewGormCursorRepository(db *gorm.DB) *GormCursorRepository {
	return &GormCursorRepository{db: db}
}

// GetOrCreate returns the cursor for the pair, creating it at page 1
func (r *GormCursorRepository) GetOrCreate(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (*remote.PaginationCursor, error) {
	var model models.PaginationCursorModel
	err := r.db.WithContext(ctx).
		First(&model, "instance_id = ? AND collection = ?", instanceID, collection).Error
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cursor := remote.NewPaginationCursor(instanceID, collection)
	model.FromDomain(cursor)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, err
	}
	return cursor, nil
}

// Save durably persists the cursor position
func (r *GormCursorRepository) Save(ctx context.Context, cursor *remote.PaginationCursor) error {
	return r.db.WithContext(ctx).Model(&models.PaginationCursorModel{}).
		Where("id = ?", cursor.ID).
		Updates(map[string]interface{}{
			"current_page": cursor.CurrentPage,
			"updated_at":   cursor.UpdatedAt,
		}).Error
}

// Ensure GormCursorRepository implements CursorRepository
var _ remote.CursorRepository = (*GormCursorRepository)(nil)
