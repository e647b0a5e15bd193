package syncqueue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sync Queue Errors
// ---------------------------------------------------------------------------

var (
	// Queue errors
	ErrQueueNotFound   = errors.New("syncqueue: queue not found")
	ErrQueueFull       = errors.New("syncqueue: queue is at capacity")
	ErrQueueNotDraft   = errors.New("syncqueue: queue no longer accepts lines")
	ErrQueueProcessing = errors.New("syncqueue: queue is currently being processed")
	ErrQueueHasLines   = errors.New("syncqueue: queue with lines cannot be deleted")

	// Queue line errors
	ErrLineNotFound = errors.New("syncqueue: queue line not found")

	// Log book errors
	ErrLogBookNotFound = errors.New("syncqueue: log book not found")

	// Instance errors
	ErrInstanceNotFound = errors.New("syncqueue: instance not found")
	ErrInstanceInactive = errors.New("syncqueue: instance is not active")
)

// QueueCapacity is the maximum number of lines a single queue may hold.
// A fetched remote page (200 records) fans out into multiple queues.
const QueueCapacity = 50

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// Collection identifies which remote record collection a queue buffers.
type Collection string

const (
	// CollectionOrders buffers sales orders pulled from the storefront
	CollectionOrders Collection = "ORDERS"
	// CollectionProducts buffers products pulled from the storefront
	CollectionProducts Collection = "PRODUCTS"
	// CollectionCustomers buffers customers pulled from the storefront
	CollectionCustomers Collection = "CUSTOMERS"
	// CollectionStock buffers stock levels pushed to the storefront
	CollectionStock Collection = "STOCK"
)

// IsValid returns true if the collection is valid
func (c Collection) IsValid() bool {
	switch c {
	case CollectionOrders, CollectionProducts, CollectionCustomers, CollectionStock:
		return true
	default:
		return false
	}
}

// String returns the string representation of Collection
func (c Collection) String() string {
	return string(c)
}

// QueuePrefix returns the sequential-name prefix used for queues of this collection
func (c Collection) QueuePrefix() string {
	switch c {
	case CollectionOrders:
		return "OQ"
	case CollectionProducts:
		return "PQ"
	case CollectionCustomers:
		return "CQ"
	case CollectionStock:
		return "SQ"
	default:
		return "XQ"
	}
}

// ---------------------------------------------------------------------------
// States
// ---------------------------------------------------------------------------

// QueueState is the aggregate state of a queue, derived from its line states.
type QueueState string

const (
	// QueueStateDraft indicates no line has been processed yet
	QueueStateDraft QueueState = "DRAFT"
	// QueueStatePartiallyCompleted indicates a mix of processed and unprocessed lines
	QueueStatePartiallyCompleted QueueState = "PARTIALLY_COMPLETED"
	// QueueStateCompleted indicates every line is done or cancelled
	QueueStateCompleted QueueState = "COMPLETED"
	// QueueStateFailed indicates every line failed
	QueueStateFailed QueueState = "FAILED"
)

// IsValid returns true if the state is valid
func (s QueueState) IsValid() bool {
	switch s {
	case QueueStateDraft, QueueStatePartiallyCompleted, QueueStateCompleted, QueueStateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of QueueState
func (s QueueState) String() string {
	return string(s)
}

// LineState is the processing state of a single queue line.
type LineState string

const (
	// LineStateDraft indicates the line has not been processed yet
	LineStateDraft LineState = "DRAFT"
	// LineStateDone indicates the line was processed successfully
	LineStateDone LineState = "DONE"
	// LineStateFailed indicates the last processing attempt failed
	LineStateFailed LineState = "FAILED"
	// LineStateCancel indicates the line was cancelled by an operator
	LineStateCancel LineState = "CANCEL"
)

// IsValid returns true if the state is valid
func (s LineState) IsValid() bool {
	switch s {
	case LineStateDraft, LineStateDone, LineStateFailed, LineStateCancel:
		return true
	default:
		return false
	}
}

// String returns the string representation of LineState
func (s LineState) String() string {
	return string(s)
}

// IsTerminal returns true if a line in this state is never reprocessed
func (s LineState) IsTerminal() bool {
	return s == LineStateDone || s == LineStateCancel
}

// ---------------------------------------------------------------------------
// QueueLine
// ---------------------------------------------------------------------------

// QueueLine is one remote record's unit of work. The payload is opaque to the
// engine; only the LineProcessor for the owning collection interprets it.
type QueueLine struct {
	// ID is the unique identifier of the line
	ID uuid.UUID
	// QueueID is the owning queue
	QueueID uuid.UUID
	// InstanceID is the remote account the record came from
	InstanceID uuid.UUID
	// RecordKey is the record's natural key on the remote system
	// (order increment ID, product SKU, ...). Best effort; may be empty.
	RecordKey string
	// State is the processing state of the line
	State LineState
	// RawPayload is the record as fetched from the remote API
	RawPayload []byte
	// ProcessedAt is when the line was last processed (nil while draft)
	ProcessedAt *time.Time
	// LocalEntityID references the local entity created from this record, if any
	LocalEntityID *uuid.UUID
	// CreatedAt is when the line was queued
	CreatedAt time.Time
}

// NewQueueLine creates a draft line for the given record
func NewQueueLine(queueID, instanceID uuid.UUID, recordKey string, payload []byte) *QueueLine {
	return &QueueLine{
		ID:         uuid.New(),
		QueueID:    queueID,
		InstanceID: instanceID,
		RecordKey:  recordKey,
		State:      LineStateDraft,
		RawPayload: payload,
		CreatedAt:  time.Now(),
	}
}

// MarkDone records a successful processing attempt
func (l *QueueLine) MarkDone(localEntityID *uuid.UUID) {
	now := time.Now()
	l.State = LineStateDone
	l.ProcessedAt = &now
	if localEntityID != nil {
		l.LocalEntityID = localEntityID
	}
}

// MarkFailed records a failed processing attempt
func (l *QueueLine) MarkFailed() {
	now := time.Now()
	l.State = LineStateFailed
	l.ProcessedAt = &now
}

// Cancel marks the line as cancelled by an operator
func (l *QueueLine) Cancel() {
	now := time.Now()
	l.State = LineStateCancel
	l.ProcessedAt = &now
}

// ---------------------------------------------------------------------------
// Queue
// ---------------------------------------------------------------------------

// Queue is a bounded, ordered batch of queue lines with a derived aggregate
// state. Queues are the unit of escalation: after repeated failed runs a
// queue is flagged for manual attention instead of being retried forever.
type Queue struct {
	// ID is the unique identifier of the queue
	ID uuid.UUID
	// InstanceID is the remote account this queue belongs to
	InstanceID uuid.UUID
	// Collection identifies which record collection the queue buffers
	Collection Collection
	// Name is the sequential human-readable name (e.g. "OQ/00042")
	Name string
	// State is the aggregate state derived from line states
	State QueueState
	// ProcessAttemptCount is how many times the runner started draining this queue
	ProcessAttemptCount int
	// RequiresManualAction is set once automatic retries are exhausted
	RequiresManualAction bool
	// IsProcessing is an advisory reentrancy guard, committed before draining starts
	IsProcessing bool
	// LogBookID references the queue's log book (nil until the first failure)
	LogBookID *uuid.UUID
	// Lines are the owned queue lines in creation order
	Lines []QueueLine
	// CreatedAt is when the queue was created
	CreatedAt time.Time
	// UpdatedAt is when the queue was last updated
	UpdatedAt time.Time
}

// NewQueue creates an empty draft queue
func NewQueue(instanceID uuid.UUID, collection Collection, name string) *Queue {
	now := time.Now()
	return &Queue{
		ID:         uuid.New(),
		InstanceID: instanceID,
		Collection: collection,
		Name:       name,
		State:      QueueStateDraft,
		Lines:      make([]QueueLine, 0, QueueCapacity),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanAccept returns true while the queue may take another line
func (q *Queue) CanAccept() bool {
	return q.State == QueueStateDraft && len(q.Lines) < QueueCapacity
}

// IsFull returns true once the queue reached capacity
func (q *Queue) IsFull() bool {
	return len(q.Lines) >= QueueCapacity
}

// Append adds a draft line for the given record. Appending to a full or
// non-draft queue is a caller bug, not a recoverable condition.
func (q *Queue) Append(recordKey string, payload []byte) (*QueueLine, error) {
	if q.State != QueueStateDraft {
		return nil, ErrQueueNotDraft
	}
	if q.IsFull() {
		return nil, ErrQueueFull
	}
	line := NewQueueLine(q.ID, q.InstanceID, recordKey, payload)
	q.Lines = append(q.Lines, *line)
	q.UpdatedAt = time.Now()
	return line, nil
}

// TotalCount returns the number of lines in the queue
func (q *Queue) TotalCount() int { return len(q.Lines) }

// DraftCount returns the number of draft lines
func (q *Queue) DraftCount() int { return q.countState(LineStateDraft) }

// DoneCount returns the number of done lines
func (q *Queue) DoneCount() int { return q.countState(LineStateDone) }

// FailedCount returns the number of failed lines
func (q *Queue) FailedCount() int { return q.countState(LineStateFailed) }

// CancelCount returns the number of cancelled lines
func (q *Queue) CancelCount() int { return q.countState(LineStateCancel) }

func (q *Queue) countState(s LineState) int {
	n := 0
	for i := range q.Lines {
		if q.Lines[i].State == s {
			n++
		}
	}
	return n
}

// RecomputeState derives the aggregate state from the current line states.
// It returns the new state and whether the queue entered FAILED for the
// first time; that transition fires the manual-attention notification once,
// not on every recomputation.
//
// Priority order:
//  1. completed - every line is done or cancelled
//  2. draft     - every line is draft
//  3. failed    - every line failed
//  4. otherwise - partially completed
func (q *Queue) RecomputeState() (QueueState, bool) {
	total := q.TotalCount()
	enteredFailed := false

	switch {
	case total == q.DoneCount()+q.CancelCount():
		q.State = QueueStateCompleted
	case total == q.DraftCount():
		q.State = QueueStateDraft
	case total == q.FailedCount():
		if q.State != QueueStateFailed {
			q.State = QueueStateFailed
			enteredFailed = true
		}
	default:
		q.State = QueueStatePartiallyCompleted
	}

	q.UpdatedAt = time.Now()
	return q.State, enteredFailed
}

// EligibleLines returns the lines whose state is in the given set, in
// creation order. Done lines are never eligible for reprocessing.
func (q *Queue) EligibleLines(states ...LineState) []*QueueLine {
	eligible := make([]*QueueLine, 0, len(q.Lines))
	for i := range q.Lines {
		if q.Lines[i].State == LineStateDone {
			continue
		}
		for _, s := range states {
			if q.Lines[i].State == s {
				eligible = append(eligible, &q.Lines[i])
				break
			}
		}
	}
	return eligible
}

// RecordAttempt increments the processing attempt counter
func (q *Queue) RecordAttempt() {
	q.ProcessAttemptCount++
	q.UpdatedAt = time.Now()
}
