// Package notify delivers engine state-change events to registered listeners.
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/patpat/internal/adapters/mq/queue"
	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/pkg/logger"
	"github.com/okian/patpat/pkg/metrics"
)

// Listener receives one event. Listeners run on the dispatcher goroutine and
// should return quickly.
type Listener func(ctx context.Context, e model.Event)

// Queue is the part of queue.Queue the dispatcher needs.
type Queue interface {
	Enqueue(ctx context.Context, e queue.Event) error
	Dequeue(ctx context.Context) <-chan queue.Event
	Len() int
	Cap() int
	Close() error
}

type subscription struct {
	id string
	fn Listener
}

// Dispatcher decouples event producers from listeners. Producers call Notify,
// which never blocks; Run delivers each event to every listener in
// registration order.
//
// The last reserve slots of the queue are kept for state changes: telemetry
// is dropped once the queue is that full, so a heartbeat flood cannot crowd
// out a connectivity or freshness event.
type Dispatcher struct {
	queue   Queue
	name    string
	reserve int

	mu        sync.RWMutex
	listeners []subscription

	dropped atomic.Int64
	started atomic.Bool
	done    chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher reading from q.
func NewDispatcher(q Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   q,
		name:    "notify",
		reserve: -1,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.reserve < 0 {
		d.reserve = q.Cap() / 4
	}
	if d.logger == nil {
		d.logger = logger.Get().Named(d.name)
	}
	return d
}

// Subscribe registers fn and returns its id.
func (d *Dispatcher) Subscribe(fn Listener) string {
	id := uuid.NewString()
	d.mu.Lock()
	d.listeners = append(d.listeners, subscription{id: id, fn: fn})
	d.mu.Unlock()
	return id
}

// Unsubscribe removes a listener. It reports whether id was registered.
func (d *Dispatcher) Unsubscribe(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.listeners {
		if s.id == id {
			d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Notify queues e. A full or closed queue drops the event, and telemetry is
// also dropped when only the reserved slots are left.
func (d *Dispatcher) Notify(ctx context.Context, e model.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Kind == model.EventDeviceTelemetry && d.reserve > 0 && d.queue.Len() >= d.queue.Cap()-d.reserve {
		d.dropped.Add(1)
		metrics.RecordErrorByComponent("notify", "telemetry_shed")
		d.logger.Debug(ctx, "shedding telemetry", logger.String("key", e.Key), logger.Int("pending", d.queue.Len()))
		return
	}
	if err := d.queue.Enqueue(ctx, e); err != nil {
		d.dropped.Add(1)
		d.logger.Warn(ctx, "dropping event",
			logger.String("kind", string(e.Kind)),
			logger.String("key", e.Key),
			logger.Error(err),
		)
	}
}

// Dropped returns the number of events Notify could not queue.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Run delivers events until the queue is closed and drained, or ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.started.Swap(true) {
		return
	}
	defer close(d.done)

	for e := range d.queue.Dequeue(ctx) {
		d.deliver(ctx, e)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e model.Event) { //nolint:gocritic // hugeParam: events are passed by value through the queue
	start := time.Now()
	defer func() {
		metrics.RecordListenerLatency(float64(time.Since(start).Milliseconds()))
	}()

	d.mu.RLock()
	subs := make([]subscription, len(d.listeners))
	copy(subs, d.listeners)
	d.mu.RUnlock()

	for _, s := range subs {
		d.call(ctx, s, e)
	}
}

func (d *Dispatcher) call(ctx context.Context, s subscription, e model.Event) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("notify", "listener_panic")
			d.logger.Error(ctx, "listener panicked",
				logger.String("listener", s.id),
				logger.String("kind", string(e.Kind)),
				logger.Any("panic", r),
			)
		}
	}()
	s.fn(ctx, e)
}

// Shutdown closes the queue and waits for pending events to be delivered.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if err := d.queue.Close(); err != nil {
		d.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	if !d.started.Load() {
		return nil
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
