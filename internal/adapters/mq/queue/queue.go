// Package queue buffers state-change events between the engine and their listeners.
//
// Producers (the control loop, device sessions) must never block on a slow
// listener, so Enqueue fails fast when the queue is full.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Event represents the payload type flowing through the queue.
type Event = model.Event

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event. It returns ErrFull or ErrClosed instead of blocking.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns a channel that receives events in enqueue order.
	// The channel is closed when the queue is closed and drained, or ctx is done.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len() int

	// Cap returns the maximum number of pending events.
	Cap() int

	// Close stops accepting events.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return fmt.Errorf("enqueue %s: %w", e.Kind, err)
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.events))
		return nil
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return fmt.Errorf("%w: %d pending", ErrFull, q.capacity)
	}
}

// Dequeue returns a channel that will receive events as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-q.events:
				if !ok {
					return
				}
				select {
				case out <- event:
					metrics.RecordQueueDequeue()
					metrics.UpdateQueueSize(len(q.events))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len() int {
	return len(q.events)
}

// Cap returns the maximum number of pending events.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close stops accepting events. Pending events stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
