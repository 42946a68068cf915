package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/patpat/internal/domain/model"
)

func event(id string) model.Event {
	return model.Event{ID: id, Kind: model.EventDeviceConnectivity, Key: "esp0", State: model.StateConnected}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Cap(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if err := q.Enqueue(ctx, event("event1")); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "event1" {
		t.Errorf("expected event1, got %v", got.ID)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"event1", "event2"} {
		if err := q.Enqueue(ctx, event(id)); err != nil {
			t.Fatalf("expected enqueue to succeed: %v", err)
		}
	}

	err := q.Enqueue(ctx, event("event3"))
	if !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, event(fmt.Sprintf("e%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	ch := q.Dequeue(ctx)
	for i := 0; i < 5; i++ {
		got := <-ch
		if want := fmt.Sprintf("e%d", i); got.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got.ID)
		}
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = q.Enqueue(ctx, event(fmt.Sprintf("%d-%d", id, j)))
			}
		}(i)
	}
	wg.Wait()

	if l := q.Len(); l != 1000 {
		t.Errorf("expected length 1000, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if err := q.Enqueue(ctx, event("pending")); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Enqueue(ctx, event("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	ch := q.Dequeue(ctx)
	if got := <-ch; got.ID != "pending" {
		t.Errorf("expected pending event to drain, got %q", got.ID)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel not closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, event("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
