package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/types"
	"github.com/okian/patpat/internal/timeutil"
)

const (
	defaultSnapshotInterval = 250 * time.Millisecond
	defaultHistorySize      = 256
)

// StatusStore republishes an immutable snapshot of the engine on a timer
// and whenever a state change is applied. Readers never touch live state.
type StatusStore struct {
	src              Source
	clock            timeutil.Clock
	snapshotInterval time.Duration
	historySize      int

	pubMu    sync.Mutex
	snapshot atomic.Pointer[Snapshot]

	mu      sync.Mutex
	history []types.EventRecord
	next    int
	full    bool

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewStatusStore publishes a first snapshot and starts the refresh goroutine.
func NewStatusStore(ctx context.Context, src Source, opts ...Option) *StatusStore {
	s := &StatusStore{
		src:              src,
		clock:            timeutil.RealClock{},
		snapshotInterval: defaultSnapshotInterval,
		historySize:      defaultHistorySize,
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history = make([]types.EventRecord, s.historySize)

	s.publish()
	s.startPeriodicSnapshots(ctx)
	return s
}

func (s *StatusStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := s.clock.NewTicker(s.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C():
				s.publish()
			}
		}
	}()
}

// publish is serialized so a slow rebuild never overwrites a newer one.
func (s *StatusStore) publish() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.snapshot.Store(&Snapshot{
		Devices: s.src.Devices(),
		Groups:  s.src.Groups(),
		Stats:   s.src.Stats(),
		BuiltAt: s.clock.Now(),
	})
}

// Refresh republishes the snapshot immediately.
func (s *StatusStore) Refresh() {
	s.publish()
}

// Close stops the refresh goroutine.
func (s *StatusStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Snapshot implements Store.
func (s *StatusStore) Snapshot(_ context.Context) (*Snapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// Device implements Store.
func (s *StatusStore) Device(ctx context.Context, key string) (types.DeviceStatus, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return types.DeviceStatus{}, err
	}
	for _, d := range snap.Devices {
		if d.Key == key {
			return d, nil
		}
	}
	return types.DeviceStatus{}, fmt.Errorf("device %q: %w", key, ErrNotFound)
}

// Group implements Store.
func (s *StatusStore) Group(ctx context.Context, key string) (types.GroupStatus, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return types.GroupStatus{}, err
	}
	for _, g := range snap.Groups {
		if g.Key == key {
			return g, nil
		}
	}
	return types.GroupStatus{}, fmt.Errorf("group %q: %w", key, ErrNotFound)
}

// Apply implements Store. Telemetry events only refresh the view; the
// history keeps state transitions.
func (s *StatusStore) Apply(_ context.Context, e model.Event) {
	if e.Kind != model.EventDeviceTelemetry {
		s.record(toRecord(e))
	}
	s.publish()
}

func (s *StatusStore) record(r types.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[s.next] = r
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
}

// Events implements Store.
func (s *StatusStore) Events(_ context.Context, n int) ([]types.EventRecord, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.next
	if s.full {
		count = len(s.history)
	}
	if n > count {
		n = count
	}
	out := make([]types.EventRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.history)) % len(s.history)
		out = append(out, s.history[idx])
	}
	return out, nil
}

func toRecord(e model.Event) types.EventRecord { //nolint:gocritic // hugeParam
	r := types.EventRecord{
		ID:   e.ID,
		Kind: string(e.Kind),
		Key:  e.Key,
		At:   e.At,
	}
	switch e.Kind {
	case model.EventDeviceConnectivity:
		r.State = e.State.String()
	case model.EventGroupFreshness:
		fresh := e.Fresh
		r.Fresh = &fresh
	case model.EventTransmission:
		enabled := e.Enabled
		r.Enabled = &enabled
	}
	return r
}
