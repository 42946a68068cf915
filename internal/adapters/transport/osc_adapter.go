package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/okian/patpat/internal/domain/model"
)

// OscAdapter sends motor frames to one board through the hub's socket and
// buffers the board's inbound messages.
type OscAdapter struct {
	hub *OscHub
	mac string

	mu     sync.RWMutex
	remote *net.UDPAddr

	inbox  chan model.Message
	closed atomic.Bool
}

// Bind resolves address. A missing port defaults to the board's OSC port.
func (a *OscAdapter) Bind(address string) error {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(DefaultBoardPort))
	}
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", address, err)
	}
	a.mu.Lock()
	a.remote = addr
	a.mu.Unlock()
	return nil
}

// Bound reports whether a remote address is set.
func (a *OscAdapter) Bound() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.remote != nil
}

// Remote returns the bound address, or nil.
func (a *OscAdapter) Remote() *net.UDPAddr {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.remote
}

func (a *OscAdapter) remoteIP() net.IP {
	if r := a.Remote(); r != nil {
		return r.IP
	}
	return nil
}

// SendFrame writes the /m message for values.
func (a *OscAdapter) SendFrame(ctx context.Context, values []uint8) error {
	payload, err := EncodeMotorFrame(values)
	if err != nil {
		return fmt.Errorf("encode motor frame: %w", err)
	}
	return a.send(ctx, payload)
}

// RequestDiscovery asks the board to report its mac and motor count.
func (a *OscAdapter) RequestDiscovery(ctx context.Context) error {
	payload, err := EncodeDiscoveryRequest()
	if err != nil {
		return fmt.Errorf("encode discovery request: %w", err)
	}
	return a.send(ctx, payload)
}

func (a *OscAdapter) send(ctx context.Context, payload []byte) error {
	if a.closed.Load() {
		return ErrClosed
	}
	remote := a.Remote()
	if remote == nil {
		return ErrNotBound
	}
	return a.hub.write(ctx, payload, remote)
}

// TryReceive returns the next buffered message without blocking.
func (a *OscAdapter) TryReceive() (model.Message, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case m := <-a.inbox:
		return m, nil
	default:
		return nil, nil
	}
}

// deliver buffers m, dropping the oldest message when full.
func (a *OscAdapter) deliver(m model.Message) {
	if a.closed.Load() {
		return
	}
	for {
		select {
		case a.inbox <- m:
			return
		default:
		}
		select {
		case <-a.inbox:
		default:
		}
	}
}

// Close detaches the adapter from the hub. The socket stays open.
func (a *OscAdapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	a.hub.remove(a)
	return nil
}
