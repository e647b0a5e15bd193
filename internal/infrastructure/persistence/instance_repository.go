package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/persistence/models"
)

// GormInstanceRepository implements syncqueue.InstanceRepository using GORM
type GormInstanceRepository struct {
	db *gorm.DB
}

// NewGormInstanceRepository creates a new GormInstanceRepository
func NewGormInstanceRepository(db *gorm.DB) *GormInstanceRepository {
	return &GormInstanceRepository{db: db}
}

// FindByID returns the instance or ErrInstanceNotFound
func (r *GormInstanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncqueue.Instance, error) {
	var model models.InstanceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncqueue.ErrInstanceNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns all active instances
func (r *GormInstanceRepository) FindActive(ctx context.Context) ([]*syncqueue.Instance, error) {
	var instanceModels []models.InstanceModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&instanceModels).Error; err != nil {
		return nil, err
	}

	instances := make([]*syncqueue.Instance, len(instanceModels))
	for i := range instanceModels {
		instances[i] = instanceModels[i].ToDomain()
	}
	return instances, nil
}

// Save persists instance changes
func (r *GormInstanceRepository) Save(ctx context.Context, instance *syncqueue.Instance) error {
	var model models.InstanceModel
	model.FromDomain(instance)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Ensure GormInstanceRepository implements InstanceRepository
var _ syncqueue.InstanceRepository = (*GormInstanceRepository)(nil)
