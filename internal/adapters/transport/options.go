package transport

import (
	"time"

	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

// HubOption configures an OscHub.
type HubOption func(*OscHub)

// WithHubLogger sets the hub logger.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *OscHub) {
		if l != nil {
			h.logger = l
		}
	}
}

// SerialOption configures a SerialAdapter.
type SerialOption func(*SerialAdapter)

// WithPortOptions sets the line settings.
func WithPortOptions(o PortOptions) SerialOption {
	return func(a *SerialAdapter) {
		a.portOpts = o
	}
}

// WithOpener replaces serial.Open, mainly for tests.
func WithOpener(open PortOpener) SerialOption {
	return func(a *SerialAdapter) {
		if open != nil {
			a.open = open
		}
	}
}

// WithReopenInterval limits how often a failed port is reopened.
func WithReopenInterval(d time.Duration) SerialOption {
	return func(a *SerialAdapter) {
		if d > 0 {
			a.reopenEvery = d
		}
	}
}

// WithSerialClock sets the clock used for reopen throttling.
func WithSerialClock(c timeutil.Clock) SerialOption {
	return func(a *SerialAdapter) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithSerialLogger sets the adapter logger.
func WithSerialLogger(l logger.Logger) SerialOption {
	return func(a *SerialAdapter) {
		if l != nil {
			a.logger = l
		}
	}
}
