package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/persistence/models"
)

// GormActivityScheduler implements syncqueue.ActivityScheduler by persisting
// one follow-up task per responsible user
type GormActivityScheduler struct {
	db *gorm.DB
}

// NewGormActivityScheduler creates a new GormActivityScheduler
func NewGormActivityScheduler(db *gorm.DB) *GormActivityScheduler {
	return &GormActivityScheduler{db: db}
}

// ScheduleFollowUp creates one open activity per responsible user, due
// leadDays from now. An instance with no responsible users gets nothing;
// the escalation notification still reaches the bus.
func (s *GormActivityScheduler) ScheduleFollowUp(ctx context.Context, instance *syncqueue.Instance, subject, message string, leadDays int) error {
	if len(instance.ResponsibleUserIDs) == 0 {
		return nil
	}

	now := time.Now()
	dueAt := now.AddDate(0, 0, leadDays)

	activities := make([]models.ActivityModel, 0, len(instance.ResponsibleUserIDs))
	for _, userID := range instance.ResponsibleUserIDs {
		activities = append(activities, models.ActivityModel{
			ID:         uuid.New(),
			InstanceID: instance.ID,
			UserID:     userID,
			Subject:    subject,
			Note:       message,
			DueAt:      dueAt,
			CreatedAt:  now,
		})
	}

	return s.db.WithContext(ctx).Create(&activities).Error
}

// FindOpenByUser returns a user's open activities, oldest due first
func (s *GormActivityScheduler) FindOpenByUser(ctx context.Context, userID uuid.UUID) ([]models.ActivityModel, error) {
	var activities []models.ActivityModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND done = ?", userID, false).
		Order("due_at ASC").
		Find(&activities).Error
	return activities, err
}

// MarkDone closes an activity
func (s *GormActivityScheduler) MarkDone(ctx context.Context, activityID uuid.UUID) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.ActivityModel{}).
		Where("id = ?", activityID).
		Updates(map[string]interface{}{
			"done":    true,
			"done_at": now,
		}).Error
}

// Ensure GormActivityScheduler implements ActivityScheduler
var _ syncqueue.ActivityScheduler = (*GormActivityScheduler)(nil)
