package syncqueue

import (
	"time"

	"github.com/google/uuid"
)

// LogBook collects human-readable failure messages for one queue. It is
// created lazily on the queue's first run and deleted again if it ends empty,
// so only queues with something to report keep one.
type LogBook struct {
	// ID is the unique identifier of the log book
	ID uuid.UUID
	// QueueID is the owning queue
	QueueID uuid.UUID
	// InstanceID is the remote account the queue belongs to
	InstanceID uuid.UUID
	// Lines are the collected messages in creation order
	Lines []LogLine
	// CreatedAt is when the log book was created
	CreatedAt time.Time
}

// NewLogBook creates an empty log book for a queue
func NewLogBook(queueID, instanceID uuid.UUID) *LogBook {
	return &LogBook{
		ID:         uuid.New(),
		QueueID:    queueID,
		InstanceID: instanceID,
		Lines:      make([]LogLine, 0),
		CreatedAt:  time.Now(),
	}
}

// IsEmpty returns true while no line has been written
func (b *LogBook) IsEmpty() bool {
	return len(b.Lines) == 0
}

// Add appends a message, optionally tied to a record key and queue line
func (b *LogBook) Add(message, recordKey string, queueLineID *uuid.UUID) *LogLine {
	line := LogLine{
		ID:          uuid.New(),
		LogBookID:   b.ID,
		Message:     message,
		RecordKey:   recordKey,
		QueueLineID: queueLineID,
		CreatedAt:   time.Now(),
	}
	b.Lines = append(b.Lines, line)
	return &b.Lines[len(b.Lines)-1]
}

// LogLine is one free-text message in a log book, attached to the record it
// concerns so an operator reviewing a queue sees every reason a record did
// not sync.
type LogLine struct {
	// ID is the unique identifier of the log line
	ID uuid.UUID
	// LogBookID is the owning log book
	LogBookID uuid.UUID
	// Message is the failure or info text
	Message string
	// RecordKey is the remote record's natural key, when known
	RecordKey string
	// QueueLineID references the queue line the message concerns, when known
	QueueLineID *uuid.UUID
	// CreatedAt is when the message was written
	CreatedAt time.Time
}
