package replay

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/okian/patpat/pkg/logger"
)

// Player sends recorded samples with their original timing.
type Player struct {
	settings
}

// NewPlayer creates a player.
func NewPlayer(opts ...Option) *Player {
	return &Player{settings: newSettings(opts)}
}

// Play writes every sample to to through conn, waiting until each offset
// has elapsed since the call. Late samples go out immediately. It returns
// the number of messages sent.
func (p *Player) Play(ctx context.Context, conn net.PacketConn, to net.Addr, samples []Sample) (int, error) {
	if len(samples) == 0 {
		return 0, ErrEmptyRecording
	}
	log := p.logger.Named("player")
	log.Info(ctx, "replay started", logger.String("target", to.String()), logger.Int("samples", len(samples)))

	start := p.clock.Now()
	sent := 0
	for _, s := range samples {
		if p.filter != "" && !strings.Contains(s.Address, p.filter) {
			continue
		}
		if wait := s.Offset - p.clock.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-p.clock.After(wait):
			}
		} else if err := ctx.Err(); err != nil {
			return sent, err
		}
		data, err := s.Message().MarshalBinary()
		if err != nil {
			return sent, fmt.Errorf("encode %s: %w", s.Address, err)
		}
		if _, err := conn.WriteTo(data, to); err != nil {
			return sent, fmt.Errorf("send %s: %w", s.Address, err)
		}
		sent++
	}

	log.Info(ctx, "replay finished", logger.Int("sent", sent))
	return sent, nil
}
