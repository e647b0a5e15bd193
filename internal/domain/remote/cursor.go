package remote

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/erp/connector/internal/domain/syncqueue"
)

// ErrCursorNotFound indicates no cursor exists yet for an (instance, collection) pair
var ErrCursorNotFound = errors.New("remote: pagination cursor not found")

// PaginationCursor is the persisted progress marker into one remote
// collection for one instance. It advances only after a page's records have
// been durably queued, so a crash mid-page re-fetches that page rather than
// skipping it.
type PaginationCursor struct {
	// ID is the unique identifier of the cursor
	ID uuid.UUID
	// InstanceID scopes the cursor to one remote account
	InstanceID uuid.UUID
	// Collection scopes the cursor to one remote collection
	Collection syncqueue.Collection
	// CurrentPage is the next page to fetch, 1-based
	CurrentPage int
	// UpdatedAt is when the cursor last moved
	UpdatedAt time.Time
}

// NewPaginationCursor creates a cursor at the start of the range
func NewPaginationCursor(instanceID uuid.UUID, collection syncqueue.Collection) *PaginationCursor {
	return &PaginationCursor{
		ID:          uuid.New(),
		InstanceID:  instanceID,
		Collection:  collection,
		CurrentPage: 1,
		UpdatedAt:   time.Now(),
	}
}

// Advance moves the cursor past a fully queued page
func (c *PaginationCursor) Advance() {
	c.CurrentPage++
	c.UpdatedAt = time.Now()
}

// Reset returns the cursor to page 1. Only called at true range exhaustion
// (confirmed by the total-count check) or on a zero-result range, never on a
// transient empty page or a time-budget cutoff.
func (c *PaginationCursor) Reset() {
	c.CurrentPage = 1
	c.UpdatedAt = time.Now()
}

// CursorRepository persists pagination cursors.
type CursorRepository interface {
	// GetOrCreate returns the cursor for the pair, creating it at page 1
	GetOrCreate(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (*PaginationCursor, error)

	// Save durably persists the cursor position
	Save(ctx context.Context, cursor *PaginationCursor) error
}
