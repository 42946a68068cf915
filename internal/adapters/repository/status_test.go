package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/types"
	"github.com/okian/patpat/internal/timeutil"
)

type fakeSource struct {
	mu      sync.Mutex
	devices []types.DeviceStatus
	groups  []types.GroupStatus
	stats   types.EngineStats
}

func (f *fakeSource) Devices() []types.DeviceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.DeviceStatus(nil), f.devices...)
}

func (f *fakeSource) Groups() []types.GroupStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.GroupStatus(nil), f.groups...)
}

func (f *fakeSource) Stats() types.EngineStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeSource) setState(key, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.devices {
		if f.devices[i].Key == key {
			f.devices[i].State = state
		}
	}
}

func newSource() *fakeSource {
	return &fakeSource{
		devices: []types.DeviceStatus{{Key: "esp0", State: "unknown", MotorCount: 4}},
		groups:  []types.GroupStatus{{Key: "head", Strength: 100}},
		stats:   types.EngineStats{TargetTPS: 30},
	}
}

func TestStatusStore_Lookup(t *testing.T) {
	ctx := context.Background()
	s := NewStatusStore(ctx, newSource(), WithSnapshotInterval(time.Hour))
	defer s.Close()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Stats.TargetTPS != 30 {
		t.Errorf("expected target tps 30, got %d", snap.Stats.TargetTPS)
	}

	d, err := s.Device(ctx, "esp0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.MotorCount != 4 {
		t.Errorf("expected 4 motors, got %d", d.MotorCount)
	}

	if _, err := s.Device(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Group(ctx, "head"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := s.Group(ctx, "feet"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusStore_ApplyRepublishes(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	s := NewStatusStore(ctx, src, WithSnapshotInterval(time.Hour))
	defer s.Close()

	src.setState("esp0", "connected")
	if d, _ := s.Device(ctx, "esp0"); d.State != "unknown" {
		t.Fatalf("snapshot changed before publish: %s", d.State)
	}

	s.Apply(ctx, model.Event{ID: "e1", Kind: model.EventDeviceConnectivity, Key: "esp0", State: model.StateConnected})
	if d, _ := s.Device(ctx, "esp0"); d.State != "connected" {
		t.Errorf("expected connected after apply, got %s", d.State)
	}

	events, err := s.Events(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].State != "connected" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestStatusStore_PeriodicRefresh(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	s := NewStatusStore(ctx, src, WithSnapshotInterval(5*time.Millisecond))
	defer s.Close()

	src.setState("esp0", "disconnected")
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if d, _ := s.Device(ctx, "esp0"); d.State == "disconnected" {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("snapshot was not refreshed")
}

func TestStatusStore_RefreshFollowsClock(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s := NewStatusStore(ctx, src, WithClock(clock), WithSnapshotInterval(time.Second))
	defer s.Close()

	first, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !first.BuiltAt.Equal(clock.Now()) {
		t.Errorf("expected snapshot stamped %v, got %v", clock.Now(), first.BuiltAt)
	}

	src.setState("esp0", "connected")
	time.Sleep(20 * time.Millisecond)
	if d, _ := s.Device(ctx, "esp0"); d.State != "unknown" {
		t.Fatalf("expected no refresh before the clock moves, got %q", d.State)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		clock.Advance(time.Second)
		if d, _ := s.Device(ctx, "esp0"); d.State == "connected" {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("snapshot was not refreshed when the clock advanced")
}

func TestStatusStore_EventHistory(t *testing.T) {
	ctx := context.Background()
	s := NewStatusStore(ctx, newSource(), WithSnapshotInterval(time.Hour), WithEventHistory(3))
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Apply(ctx, model.Event{ID: fmt.Sprintf("e%d", i), Kind: model.EventGroupFreshness, Key: "head", Fresh: i%2 == 0})
	}
	s.Apply(ctx, model.Event{ID: "telemetry", Kind: model.EventDeviceTelemetry, Key: "esp0"})

	events, err := s.Events(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if fmt.Sprint(ids) != "[e4 e3 e2]" {
		t.Errorf("expected newest three transitions, got %v", ids)
	}
	if events[0].Fresh == nil || !*events[0].Fresh {
		t.Errorf("expected e4 to be fresh")
	}

	if _, err := s.Events(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}
