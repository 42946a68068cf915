package repository

import (
	"time"

	"github.com/okian/patpat/internal/timeutil"
)

// Option applies a configuration option to the StatusStore.
type Option func(*StatusStore)

// WithSnapshotInterval sets how often the snapshot is rebuilt from the source.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *StatusStore) {
		if interval > 0 {
			s.snapshotInterval = interval
		}
	}
}

// WithEventHistory sets how many state-change events are kept.
func WithEventHistory(n int) Option {
	return func(s *StatusStore) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithClock sets the clock that paces refreshes and stamps snapshots.
func WithClock(c timeutil.Clock) Option {
	return func(s *StatusStore) {
		if c != nil {
			s.clock = c
		}
	}
}
