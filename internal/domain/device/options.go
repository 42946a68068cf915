package device

import (
	"time"

	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

// Option applies a configuration option to a Session.
type Option func(*Session)

// WithHeartbeatTimeout sets how long a device stays connected without a heartbeat.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSendTimeout bounds each SendFrame call.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithPollInterval sets how often Pump drains the adapter.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollEvery = d
		}
	}
}

// WithClock sets the clock that paces Pump and stamps the heartbeats it handles.
func WithClock(c timeutil.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithNotifier sets the receiver of state-change events.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
