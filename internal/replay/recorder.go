package replay

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/patpat/internal/adapters/transport"
	"github.com/okian/patpat/pkg/logger"
)

const maxDatagram = 65535

// Recorder captures OSC messages from a socket.
type Recorder struct {
	settings
}

// NewRecorder creates a recorder.
func NewRecorder(opts ...Option) *Recorder {
	return &Recorder{settings: newSettings(opts)}
}

// Record reads from conn until ctx is done and returns what it captured.
// Offsets are measured from the call. Cancellation is the normal way to
// stop, so it is not reported as an error.
func (r *Recorder) Record(ctx context.Context, conn net.PacketConn) ([]Sample, error) {
	id := uuid.NewString()
	log := r.logger.Named("recorder")
	log.Info(ctx, "recording started",
		logger.String("recording", id),
		logger.String("listen", conn.LocalAddr().String()),
		logger.String("filter", r.filter))

	// Cancellation unblocks the pending read without closing the caller's socket.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	start := r.clock.Now()
	buf := make([]byte, maxDatagram)
	var samples []Sample
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return samples, err
		}
		msgs, err := transport.ParseMessages(buf[:n])
		if err != nil {
			log.Debug(ctx, "dropping malformed packet", logger.String("from", from.String()), logger.Error(err))
			continue
		}
		offset := r.clock.Since(start)
		for _, m := range msgs {
			if r.filter != "" && !strings.Contains(m.Address, r.filter) {
				continue
			}
			samples = append(samples, Sample{Offset: offset, Address: m.Address, Value: firstArgument(m)})
			log.Debug(ctx, "osc in", logger.String("address", m.Address), logger.Any("args", m.Arguments))
		}
	}

	log.Info(ctx, "recording stopped", logger.String("recording", id), logger.Int("samples", len(samples)))
	return samples, nil
}
