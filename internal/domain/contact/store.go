// Package contact holds the latest proximity sample of every contact point.
package contact

import (
	"context"
	"sync"
	"time"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/pkg/logger"
)

// DefaultMaxAge is how old a sample may be and still count as fresh.
const DefaultMaxAge = 500 * time.Millisecond

// Store keeps one sample slot per contact point id.
type Store interface {
	// Record overwrites the slot of pointID. Ids outside the store are logged and dropped.
	Record(ctx context.Context, pointID int, value float64, now time.Time)

	// Snapshot copies the slots of ids. Unknown ids are omitted.
	Snapshot(ids []int) map[int]model.Sample

	// Size returns the number of slots.
	Size() int
}

// arenaStore is a fixed-size array of samples guarded by one lock.
type arenaStore struct {
	mu      sync.RWMutex
	samples []model.Sample
	logger  logger.Logger
}

// NewStore creates a store with size slots, one per contact point.
func NewStore(size int, opts ...Option) Store {
	if size < 0 {
		size = 0
	}
	s := &arenaStore{
		samples: make([]model.Sample, size),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("contact")
	}
	return s
}

func (s *arenaStore) Record(ctx context.Context, pointID int, value float64, now time.Time) {
	if pointID < 0 || pointID >= len(s.samples) {
		s.logger.Warn(ctx, "dropping sample for unknown contact point",
			logger.Int("point_id", pointID),
			logger.Int("size", len(s.samples)),
		)
		return
	}
	s.mu.Lock()
	s.samples[pointID] = model.Sample{Value: value, Timestamp: now, Valid: true}
	s.mu.Unlock()
}

func (s *arenaStore) Snapshot(ids []int) map[int]model.Sample {
	out := make(map[int]model.Sample, len(ids))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if id < 0 || id >= len(s.samples) {
			continue
		}
		out[id] = s.samples[id]
	}
	return out
}

func (s *arenaStore) Size() int {
	return len(s.samples)
}

// IsFresh reports whether sample was captured no longer than maxAge before now.
// A sample that was never recorded is stale.
func IsFresh(sample model.Sample, now time.Time, maxAge time.Duration) bool {
	if !sample.Valid {
		return false
	}
	return now.Sub(sample.Timestamp) <= maxAge
}

// AllFresh reports whether every id has a fresh sample in snapshot.
func AllFresh(snapshot map[int]model.Sample, ids []int, now time.Time, maxAge time.Duration) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		sample, ok := snapshot[id]
		if !ok || !IsFresh(sample, now, maxAge) {
			return false
		}
	}
	return true
}
