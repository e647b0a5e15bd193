package syncqueue

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrProcessorNotRegistered indicates no processor handles a collection
	ErrProcessorNotRegistered = errors.New("syncqueue: no line processor registered for collection")
	// ErrProcessorAlreadyRegistered indicates a duplicate registration
	ErrProcessorAlreadyRegistered = errors.New("syncqueue: line processor already registered for collection")
)

// LineProcessor turns one queue line's payload into side effects on the local
// system. One implementation exists per collection; the engine never inspects
// the payload itself.
//
// Contract:
//   - Must be idempotent per record key: a crash can leave a line draft after
//     partial side effects, so the same payload may be processed again.
//   - Business-rule mismatches are not errors: write a message to the log
//     book and return (false, nil); the line fails and is retried on the
//     next slot in case the operator fixes the configuration in between.
//   - Transport and other unexpected faults return a non-nil error; the
//     runner marks the line failed and continues with the next line.
type LineProcessor interface {
	// Collection returns the record collection this processor handles
	Collection() Collection

	// Process applies one queue line. It returns true on success.
	Process(ctx context.Context, line *QueueLine, instance *Instance, logBook *LogBook) (bool, error)
}

// ProcessorRegistry resolves the line processor for a collection.
type ProcessorRegistry struct {
	mu         sync.RWMutex
	processors map[Collection]LineProcessor
}

// NewProcessorRegistry creates an empty registry
func NewProcessorRegistry() *ProcessorRegistry {
	return &ProcessorRegistry{
		processors: make(map[Collection]LineProcessor),
	}
}

// Register adds a processor for its collection
func (r *ProcessorRegistry) Register(p LineProcessor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processors[p.Collection()]; ok {
		return ErrProcessorAlreadyRegistered
	}
	r.processors[p.Collection()] = p
	return nil
}

// Get returns the processor for a collection
func (r *ProcessorRegistry) Get(c Collection) (LineProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[c]
	if !ok {
		return nil, ErrProcessorNotRegistered
	}
	return p, nil
}

// Collections returns the collections with a registered processor
func (r *ProcessorRegistry) Collections() []Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Collection, 0, len(r.processors))
	for c := range r.processors {
		out = append(out, c)
	}
	return out
}
