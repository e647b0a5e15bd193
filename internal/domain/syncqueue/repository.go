package syncqueue

import (
	"context"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Repository Ports
// ---------------------------------------------------------------------------

// QueueRepository persists queues and their lines.
//
// UpdateLine and SetProcessing commit immediately: per-line state changes and
// the processing flag are the engine's crash-recovery checkpoints and must
// not be batched into a surrounding transaction.
type QueueRepository interface {
	// Create persists a new queue
	Create(ctx context.Context, queue *Queue) error

	// Save persists the queue header (state, counters, flags)
	Save(ctx context.Context, queue *Queue) error

	// FindByID loads a queue with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Queue, error)

	// FindOpenQueue returns the most recent draft queue under capacity for
	// the instance and collection, or ErrQueueNotFound
	FindOpenQueue(ctx context.Context, instanceID uuid.UUID, collection Collection) (*Queue, error)

	// FindProcessable returns queues that are not completed and not flagged
	// for manual action, with lines, ordered by creation time
	FindProcessable(ctx context.Context, instanceID uuid.UUID, collection Collection) ([]*Queue, error)

	// List returns queue headers for the instance, newest first
	List(ctx context.Context, instanceID uuid.UUID, collection Collection, limit, offset int) ([]*Queue, error)

	// AppendLine persists a newly appended line
	AppendLine(ctx context.Context, line *QueueLine) error

	// UpdateLine persists a line's state change (committed per line)
	UpdateLine(ctx context.Context, line *QueueLine) error

	// SetProcessing durably flips the advisory processing flag
	SetProcessing(ctx context.Context, queueID uuid.UUID, processing bool) error

	// Delete removes a queue; only legal while it has no lines
	Delete(ctx context.Context, queueID uuid.UUID) error

	// NextSequence reserves the next sequential queue number for a collection
	NextSequence(ctx context.Context, instanceID uuid.UUID, collection Collection) (int64, error)

	// CountByState returns queue-line counts per state for dashboards
	CountByState(ctx context.Context, instanceID uuid.UUID, collection Collection) (map[LineState]int64, error)
}

// LogBookRepository persists per-queue log books.
type LogBookRepository interface {
	// GetOrCreateForQueue returns the queue's log book, creating it lazily
	GetOrCreateForQueue(ctx context.Context, queue *Queue) (*LogBook, error)

	// FindByQueue returns the queue's log book or ErrLogBookNotFound
	FindByQueue(ctx context.Context, queueID uuid.UUID) (*LogBook, error)

	// AddLine persists one log line
	AddLine(ctx context.Context, line *LogLine) error

	// CountLines returns the number of lines in a log book
	CountLines(ctx context.Context, logBookID uuid.UUID) (int64, error)

	// DeleteIfEmpty removes the log book when it collected nothing
	DeleteIfEmpty(ctx context.Context, logBookID uuid.UUID) error
}

// InstanceRepository loads configured remote accounts.
type InstanceRepository interface {
	// FindByID returns the instance or ErrInstanceNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*Instance, error)

	// FindActive returns all active instances
	FindActive(ctx context.Context) ([]*Instance, error)

	// Save persists instance changes (e.g. the last-import watermark)
	Save(ctx context.Context, instance *Instance) error
}

// ---------------------------------------------------------------------------
// Notification Ports
// ---------------------------------------------------------------------------

// Notifier delivers fire-and-forget operator notifications. Failure to
// deliver must never abort ingestion or processing.
type Notifier interface {
	// Notify sends a short informational message scoped to an instance
	Notify(ctx context.Context, instanceID uuid.UUID, message string)
}

// ActivityScheduler creates follow-up tasks for responsible users when a
// queue exhausts its automatic retries.
type ActivityScheduler interface {
	// ScheduleFollowUp creates one follow-up task per responsible user
	ScheduleFollowUp(ctx context.Context, instance *Instance, subject, message string, leadDays int) error
}
