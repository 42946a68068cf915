// Package repository holds the read model behind the status API.
package repository

import (
	"context"
	"time"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/types"
)

// Source supplies live engine state.
type Source interface {
	Devices() []types.DeviceStatus
	Groups() []types.GroupStatus
	Stats() types.EngineStats
}

// Snapshot is an immutable view of the engine published for readers.
type Snapshot struct {
	Devices []types.DeviceStatus
	Groups  []types.GroupStatus
	Stats   types.EngineStats
	BuiltAt time.Time
}

// Store provides read access to engine status.
type Store interface {
	// Snapshot returns the latest published view.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Device returns one device. Returns ErrNotFound for an unknown key.
	Device(ctx context.Context, key string) (types.DeviceStatus, error)

	// Group returns one contact group. Returns ErrNotFound for an unknown key.
	Group(ctx context.Context, key string) (types.GroupStatus, error)

	// Events returns up to n recent state-change events, newest first.
	Events(ctx context.Context, n int) ([]types.EventRecord, error)

	// Apply records a state-change event and republishes the view.
	Apply(ctx context.Context, e model.Event)
}
