package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
	"github.com/okian/patpat/pkg/metrics"
)

// DefaultReopenInterval is the minimum time between open attempts.
const DefaultReopenInterval = time.Second

// PortOpener opens a serial device.
type PortOpener func(path string, mode *serial.Mode) (io.ReadWriteCloser, error)

// OpenSerialPort opens a real serial device.
func OpenSerialPort(path string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// SerialAdapter writes SLIP-framed OSC packets to a serial device.
//
// SendFrame never touches the port: it replaces the frame waiting in a
// one-slot mailbox and a writer goroutine drains it. A slow or stuck port
// therefore delays only this device and older frames are superseded.
type SerialAdapter struct {
	portOpts    PortOptions
	mode        *serial.Mode
	open        PortOpener
	reopenEvery time.Duration
	clock       timeutil.Clock
	logger      logger.Logger

	mu       sync.Mutex
	path     string
	port     io.ReadWriteCloser
	lastOpen time.Time
	lastErr  error

	mailbox chan []uint8
	inbox   chan model.Message
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewSerialAdapter starts the writer for the device at path. The port is
// opened lazily on the first frame.
func NewSerialAdapter(path string, opts ...SerialOption) (*SerialAdapter, error) {
	a := &SerialAdapter{
		path:        path,
		open:        OpenSerialPort,
		reopenEvery: DefaultReopenInterval,
		clock:       timeutil.RealClock{},
		mailbox:     make(chan []uint8, 1),
		inbox:       make(chan model.Message, DefaultInboxSize),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	mode, err := a.portOpts.SerialMode()
	if err != nil {
		return nil, err
	}
	a.mode = mode
	if a.logger == nil {
		a.logger = logger.Get().Named("serial")
	}

	a.wg.Add(1)
	go a.writeLoop()
	return a, nil
}

// Bind switches to another device path and drops the open port.
func (a *SerialAdapter) Bind(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.path = path
	a.lastOpen = time.Time{}
	a.closePortLocked()
	return nil
}

// Bound reports whether a device path is configured.
func (a *SerialAdapter) Bound() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path != ""
}

// SendFrame queues values for the writer. It returns the error of the
// previous write, if any.
func (a *SerialAdapter) SendFrame(ctx context.Context, values []uint8) error {
	if a.isClosed() {
		return ErrClosed
	}
	frame := append([]uint8(nil), values...)
	select {
	case <-a.mailbox:
	default:
	}
	select {
	case a.mailbox <- frame:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	err := a.lastErr
	a.lastErr = nil
	a.mu.Unlock()
	return err
}

// TryReceive returns the next decoded inbound message without blocking.
func (a *SerialAdapter) TryReceive() (model.Message, error) {
	select {
	case m := <-a.inbox:
		return m, nil
	default:
		return nil, nil
	}
}

// Close stops the writer and closes the port.
func (a *SerialAdapter) Close() error {
	a.once.Do(func() {
		close(a.done)
		a.mu.Lock()
		a.closePortLocked()
		a.mu.Unlock()
	})
	a.wg.Wait()
	return nil
}

func (a *SerialAdapter) writeLoop() {
	defer a.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-a.done:
			return
		case frame := <-a.mailbox:
			if a.isClosed() {
				return
			}
			if err := a.write(ctx, frame); err != nil {
				metrics.RecordErrorByComponent("serial", "write")
				a.mu.Lock()
				a.lastErr = err
				a.mu.Unlock()
			}
		}
	}
}

func (a *SerialAdapter) write(ctx context.Context, frame []uint8) error {
	payload, err := EncodeMotorFrame(frame)
	if err != nil {
		return fmt.Errorf("encode motor frame: %w", err)
	}
	port, err := a.ensureOpen(ctx)
	if err != nil {
		return err
	}
	if _, err := port.Write(SlipEncode(payload)); err != nil {
		a.logger.Warn(ctx, "serial write failed", logger.Error(err))
		a.mu.Lock()
		if a.port == port {
			a.closePortLocked()
		}
		a.mu.Unlock()
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (a *SerialAdapter) isClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// ensureOpen returns the open port, opening it if allowed. It never opens
// after Close: Close closes done and then the port under mu, so a port
// opened here is either refused or closed by Close.
func (a *SerialAdapter) ensureOpen(ctx context.Context) (io.ReadWriteCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.isClosed() {
		return nil, ErrClosed
	}
	if a.port != nil {
		return a.port, nil
	}
	if a.path == "" {
		return nil, ErrNotBound
	}
	now := a.clock.Now()
	if !a.lastOpen.IsZero() && now.Sub(a.lastOpen) < a.reopenEvery {
		return nil, ErrPortUnavailable
	}
	a.lastOpen = now
	port, err := a.open(a.path, a.mode)
	if err != nil {
		a.logger.Debug(ctx, "serial open failed", logger.String("path", a.path), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPortUnavailable, err)
	}
	a.logger.Info(ctx, "serial port opened", logger.String("path", a.path))
	a.port = port
	a.wg.Add(1)
	go a.readLoop(ctx, port)
	return port, nil
}

func (a *SerialAdapter) readLoop(ctx context.Context, port io.ReadWriteCloser) {
	defer a.wg.Done()
	var dec SlipDecoder
	buf := make([]byte, 512)
	for {
		n, err := port.Read(buf)
		for _, frame := range dec.Feed(buf[:n]) {
			msg, derr := DecodeHardwareFrame(frame)
			if derr != nil {
				if errors.Is(derr, ErrMalformedFrame) {
					metrics.RecordMalformedFrame(model.TransportSlipSerial.String())
				}
				a.logger.Debug(ctx, "dropping serial frame", logger.Error(derr))
				continue
			}
			a.deliver(msg)
		}
		if err != nil {
			a.mu.Lock()
			if a.port == port {
				a.closePortLocked()
			}
			a.mu.Unlock()
			if !errors.Is(err, io.EOF) {
				select {
				case <-a.done:
				default:
					a.logger.Debug(ctx, "serial read stopped", logger.Error(err))
				}
			}
			return
		}
	}
}

func (a *SerialAdapter) deliver(m model.Message) {
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

func (a *SerialAdapter) closePortLocked() {
	if a.port == nil {
		return
	}
	_ = a.port.Close()
	a.port = nil
}
