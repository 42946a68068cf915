package service

import (
	"context"
	"fmt"

	"github.com/okian/patpat/internal/adapters/repository"
	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/types"
	"github.com/okian/patpat/pkg/metrics"
)

// The component fields read below are assigned by build before any
// goroutine or HTTP handler can reach them and never change afterwards.

// Devices implements repository.Source.
func (s *Service) Devices() []types.DeviceStatus {
	out := make([]types.DeviceStatus, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Snapshot()
	}
	return out
}

// Groups implements repository.Source.
func (s *Service) Groups() []types.GroupStatus {
	out := make([]types.GroupStatus, len(s.groups))
	for i, g := range s.groups {
		out[i] = g.Status()
	}
	return out
}

// Stats implements repository.Source.
func (s *Service) Stats() types.EngineStats {
	if s.loop == nil {
		return types.EngineStats{}
	}
	ls := s.loop.Stats()
	stats := types.EngineStats{
		TargetTPS:          ls.TargetTPS,
		CurrentTPS:         ls.CurrentTPS,
		Ticks:              ls.Ticks,
		SlowTicks:          ls.SlowTicks,
		TransmissionEnable: s.loop.Transmission(),
		ReceiverActive:     s.receiver.Active(),
		LastReceiverPacket: s.receiver.LastPacket(),
		DroppedEvents:      uint64(s.dispatcher.Dropped()), //nolint:gosec // counter is never negative
	}
	if s.queue != nil {
		metrics.UpdateQueueSize(s.queue.Len())
	}
	return stats
}

// Snapshot implements repository.Store.
func (s *Service) Snapshot(ctx context.Context) (*repository.Snapshot, error) {
	if s.status == nil {
		return nil, repository.ErrNotReady
	}
	return s.status.Snapshot(ctx)
}

// Device implements repository.Store.
func (s *Service) Device(ctx context.Context, key string) (types.DeviceStatus, error) {
	if s.status == nil {
		return types.DeviceStatus{}, repository.ErrNotReady
	}
	return s.status.Device(ctx, key)
}

// Group implements repository.Store.
func (s *Service) Group(ctx context.Context, key string) (types.GroupStatus, error) {
	if s.status == nil {
		return types.GroupStatus{}, repository.ErrNotReady
	}
	return s.status.Group(ctx, key)
}

// Events implements repository.Store.
func (s *Service) Events(ctx context.Context, n int) ([]types.EventRecord, error) {
	if s.status == nil {
		return nil, repository.ErrNotReady
	}
	return s.status.Events(ctx, n)
}

// Apply implements repository.Store.
func (s *Service) Apply(ctx context.Context, e model.Event) { //nolint:gocritic // hugeParam
	if s.status != nil {
		s.status.Apply(ctx, e)
	}
}

// Transmission reports whether device flushing is enabled.
func (s *Service) Transmission() bool {
	return s.loop != nil && s.loop.Transmission()
}

// SetTransmission toggles device flushing.
func (s *Service) SetTransmission(ctx context.Context, enabled bool) {
	if s.loop != nil {
		s.loop.SetTransmission(ctx, enabled)
	}
}

// Intensity returns the master intensity multiplier.
func (s *Service) Intensity() float64 {
	if s.loop == nil {
		return 0
	}
	return s.loop.Intensity()
}

// SetIntensity sets the master intensity multiplier.
func (s *Service) SetIntensity(f float64) {
	if s.loop != nil {
		s.loop.SetIntensity(f)
	}
}

// SetGroupStrength sets a group's strength slider in percent.
func (s *Service) SetGroupStrength(_ context.Context, key string, pct int) error {
	if s.loop == nil {
		return ErrNotStarted
	}
	g, ok := s.loop.Group(key)
	if !ok {
		return fmt.Errorf("group %q: %w", key, repository.ErrNotFound)
	}
	g.SetStrength(pct)
	if s.status != nil {
		s.status.Refresh()
	}
	return nil
}
