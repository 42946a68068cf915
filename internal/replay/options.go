package replay

import (
	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

// Option configures a Recorder or a Player.
type Option func(*settings)

type settings struct {
	filter string
	clock  timeutil.Clock
	logger logger.Logger
}

func newSettings(opts []Option) settings {
	s := settings{clock: timeutil.RealClock{}, logger: logger.Named("replay")}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithFilter keeps only messages whose address contains sub.
func WithFilter(sub string) Option {
	return func(s *settings) {
		s.filter = sub
	}
}

// WithClock sets the time source.
func WithClock(c timeutil.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
