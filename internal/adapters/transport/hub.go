// Package transport moves motor frames and board telemetry over OSC/UDP
// and SLIP-framed serial links.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/pkg/logger"
	"github.com/okian/patpat/pkg/metrics"
)

// Defaults for the shared OSC socket.
const (
	DefaultListenAddr = ":9001"
	DefaultBoardPort  = 8888
	DefaultInboxSize  = 16

	maxDatagram = 65507
)

// MessageHandler receives non-board OSC messages from the shared socket.
type MessageHandler func(ctx context.Context, msg *osc.Message, from *net.UDPAddr)

type route struct {
	prefix string
	fn     MessageHandler
}

// OscHub owns the UDP socket shared by every OSC device and by the
// avatar parameter receiver. Boards reply to the port they were sent from,
// so one socket serves both directions.
type OscHub struct {
	conn   UDPSocket
	logger logger.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	adapters []*OscAdapter
	routes   []route
	closed   bool
}

// ListenOscHub opens the shared socket on addr.
func ListenOscHub(addr string, opts ...HubOption) (*OscHub, error) {
	if addr == "" {
		addr = DefaultListenAddr
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", addr, err)
	}
	return NewOscHub(conn, opts...), nil
}

// NewOscHub wraps an already opened socket.
func NewOscHub(conn UDPSocket, opts ...HubOption) *OscHub {
	h := &OscHub{conn: conn}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("osc_hub")
	}
	return h
}

// LocalAddr returns the bound socket address.
func (h *OscHub) LocalAddr() net.Addr { return h.conn.LocalAddr() }

// Handle registers fn for every message whose address starts with prefix.
// The longest matching prefix wins.
func (h *OscHub) Handle(prefix string, fn MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, route{prefix: prefix, fn: fn})
	sort.SliceStable(h.routes, func(i, j int) bool {
		return len(h.routes[i].prefix) > len(h.routes[j].prefix)
	})
}

// NewAdapter creates an adapter for the board with the given mac. An empty
// address leaves it unbound until Bind.
func (h *OscHub) NewAdapter(mac, address string) (*OscAdapter, error) {
	a := &OscAdapter{
		hub:   h,
		mac:   model.NormalizeMAC(mac),
		inbox: make(chan model.Message, DefaultInboxSize),
	}
	if address != "" {
		if err := a.Bind(address); err != nil {
			return nil, err
		}
	}
	h.mu.Lock()
	h.adapters = append(h.adapters, a)
	h.mu.Unlock()
	return a, nil
}

// Serve reads datagrams until ctx is done or the socket is closed.
func (h *OscHub) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = h.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || h.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			h.logger.Warn(ctx, "udp read failed", logger.Error(err))
			continue
		}
		h.Dispatch(ctx, buf[:n], from)
	}
}

// Dispatch routes one datagram. Board messages go to the adapter whose
// bound address matches the source IP, falling back to the reported mac.
func (h *OscHub) Dispatch(ctx context.Context, data []byte, from *net.UDPAddr) {
	msgs, err := ParseMessages(data)
	if err != nil {
		metrics.RecordMalformedFrame(model.TransportOSC.String())
		h.logger.Debug(ctx, "dropping malformed datagram", logger.Error(err), logger.Any("from", from))
		return
	}
	for _, msg := range msgs {
		if IsHardwareAddress(msg.Address) {
			h.dispatchHardware(ctx, msg, from)
			continue
		}
		if fn := h.handlerFor(msg.Address); fn != nil {
			fn(ctx, msg, from)
			continue
		}
		h.logger.Debug(ctx, "no handler for address", logger.String("address", msg.Address))
	}
}

func (h *OscHub) dispatchHardware(ctx context.Context, msg *osc.Message, from *net.UDPAddr) {
	decoded, err := DecodeHardwareMessage(msg)
	if err != nil {
		if errors.Is(err, ErrMalformedFrame) {
			metrics.RecordMalformedFrame(model.TransportOSC.String())
		}
		h.logger.Debug(ctx, "dropping board message", logger.Error(err))
		return
	}
	a := h.adapterFor(from, decoded.SenderMAC())
	if a == nil {
		h.logger.Debug(ctx, "board message from unknown sender",
			logger.String("mac", decoded.SenderMAC()),
			logger.Any("from", from),
		)
		return
	}
	a.deliver(decoded)
}

func (h *OscHub) adapterFor(from *net.UDPAddr, mac string) *OscAdapter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if from != nil {
		for _, a := range h.adapters {
			if ip := a.remoteIP(); ip != nil && ip.Equal(from.IP) {
				return a
			}
		}
	}
	if mac == "" {
		return nil
	}
	for _, a := range h.adapters {
		if a.mac != "" && a.mac == mac {
			return a
		}
	}
	return nil
}

func (h *OscHub) handlerFor(address string) MessageHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.routes {
		if strings.HasPrefix(address, r.prefix) {
			return r.fn
		}
	}
	return nil
}

func (h *OscHub) write(ctx context.Context, payload []byte, to *net.UDPAddr) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if h.isClosed() {
		return ErrClosed
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := h.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := h.conn.WriteToUDP(payload, to); err != nil {
		return fmt.Errorf("write to %s: %w", to, err)
	}
	return nil
}

func (h *OscHub) remove(a *OscAdapter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, x := range h.adapters {
		if x == a {
			h.adapters = append(h.adapters[:i], h.adapters[i+1:]...)
			return
		}
	}
}

func (h *OscHub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Close closes the socket. It is safe to call more than once.
func (h *OscHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return h.conn.Close()
}
