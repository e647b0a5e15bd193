package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityModel is one persisted follow-up task for a responsible user.
type ActivityModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	InstanceID uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_activity_user_open,priority:1"`
	Subject    string    `gorm:"type:varchar(255);not null"`
	Note       string    `gorm:"type:text"`
	DueAt      time.Time `gorm:"not null"`
	Done       bool      `gorm:"not null;default:false;index:idx_activity_user_open,priority:2"`
	DoneAt     *time.Time
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ActivityModel) TableName() string {
	return "activities"
}
