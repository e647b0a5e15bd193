package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/syncqueue"
)

// Message is one operator notification as delivered to subscribers.
type Message struct {
	// InstanceID scopes the message to one remote account
	InstanceID uuid.UUID
	// Text is the human-readable notification body
	Text string
	// At is when the message was published
	At time.Time
}

// Subscriber receives published messages. Subscribers must not block; slow
// consumers drop messages rather than stall ingestion or processing.
type Subscriber func(Message)

// InMemoryBus implements syncqueue.Notifier with in-memory pub/sub. Every
// message is also written to the log, so a deployment with no subscribers
// still leaves a trace.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]Subscriber
	nextID      int
	logger      *zap.Logger
}

// NewInMemoryBus creates a new in-memory notification bus
func NewInMemoryBus(logger *zap.Logger) *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[int]Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a subscriber and returns an unsubscribe function
func (b *InMemoryBus) Subscribe(sub Subscriber) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// Notify delivers a message to all subscribers. Fire-and-forget: a panicking
// subscriber is logged and the rest still receive the message.
func (b *InMemoryBus) Notify(ctx context.Context, instanceID uuid.UUID, text string) {
	msg := Message{
		InstanceID: instanceID,
		Text:       text,
		At:         time.Now(),
	}

	b.logger.Info("notification",
		zap.String("instance_id", instanceID.String()),
		zap.String("message", text),
	)

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(sub, msg)
	}
}

// dispatch safely delivers one message to one subscriber
func (b *InMemoryBus) dispatch(sub Subscriber, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notification subscriber panicked",
				zap.Any("panic", r),
			)
		}
	}()
	sub(msg)
}

// Ensure InMemoryBus implements Notifier
var _ syncqueue.Notifier = (*InMemoryBus)(nil)
