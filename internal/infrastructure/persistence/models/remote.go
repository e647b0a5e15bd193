package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
)

// PaginationCursorModel is the persistence model for the PaginationCursor entity.
type PaginationCursorModel struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey"`
	InstanceID  uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_cursor_instance_collection,priority:1"`
	Collection  syncqueue.Collection `gorm:"type:varchar(20);not null;uniqueIndex:idx_cursor_instance_collection,priority:2"`
	CurrentPage int                  `gorm:"not null;default:1"`
	UpdatedAt   time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaginationCursorModel) TableName() string {
	return "pagination_cursors"
}

// ToDomain converts the persistence model to a domain PaginationCursor entity.
func (m *PaginationCursorModel) ToDomain() *remote.PaginationCursor {
	return &remote.PaginationCursor{
		ID:          m.ID,
		InstanceID:  m.InstanceID,
		Collection:  m.Collection,
		CurrentPage: m.CurrentPage,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain PaginationCursor entity.
func (m *PaginationCursorModel) FromDomain(c *remote.PaginationCursor) {
	m.ID = c.ID
	m.InstanceID = c.InstanceID
	m.Collection = c.Collection
	m.CurrentPage = c.CurrentPage
	m.UpdatedAt = c.UpdatedAt
}
