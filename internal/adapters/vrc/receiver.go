// Package vrc turns avatar parameter messages into contact samples.
package vrc

import (
	"context"
	"fmt"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/okian/patpat/internal/domain/contact"
	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
	"github.com/okian/patpat/pkg/metrics"
)

// Address prefixes handled by the receiver.
const (
	AvatarPrefix    = "/avatar/"
	ParameterPrefix = "/avatar/parameters/"
)

// DefaultActivityWindow is how long the source counts as active after its last message.
const DefaultActivityWindow = 3 * time.Second

// Receiver records avatar parameters into the contact store. Every
// /avatar/ message counts as activity; only bound parameter names produce
// samples.
type Receiver struct {
	store    contact.Store
	bindings map[string][]int
	window   time.Duration
	clock    timeutil.Clock
	logger   logger.Logger

	mu     sync.Mutex
	last   time.Time
	active bool
}

// NewReceiver creates a receiver. bindings maps a parameter name to the
// contact point ids it feeds; one name may feed several groups.
func NewReceiver(store contact.Store, bindings map[string][]int, opts ...Option) *Receiver {
	r := &Receiver{
		store:    store,
		bindings: make(map[string][]int, len(bindings)),
		window:   DefaultActivityWindow,
		clock:    timeutil.RealClock{},
	}
	for name, ids := range bindings {
		r.bindings[name] = append([]int(nil), ids...)
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("vrc")
	}
	return r
}

// Handle processes one message from the shared OSC socket.
func (r *Receiver) Handle(ctx context.Context, msg *osc.Message, _ *net.UDPAddr) {
	now := r.clock.Now()
	r.touch(ctx, now)

	name, ok := strings.CutPrefix(msg.Address, ParameterPrefix)
	if !ok {
		return
	}
	ids, ok := r.bindings[name]
	if !ok {
		return
	}
	if len(msg.Arguments) != 1 {
		metrics.RecordSampleDropped("arity")
		r.logger.Debug(ctx, "parameter without a single value",
			logger.String("address", msg.Address),
			logger.Int("arguments", len(msg.Arguments)),
		)
		return
	}
	value, err := Value(msg.Arguments[0])
	if err != nil {
		metrics.RecordSampleDropped("type")
		r.logger.Debug(ctx, "dropping parameter", logger.String("address", msg.Address), logger.Error(err))
		return
	}
	for _, id := range ids {
		r.store.Record(ctx, id, value, now)
	}
	metrics.RecordSampleReceived()
}

// Value converts a float, int or bool argument to a proximity value.
func Value(arg any) (float64, error) {
	var v float64
	switch a := arg.(type) {
	case float32:
		v = float64(a)
	case float64:
		v = a
	case int32:
		v = float64(a)
	case int64:
		v = float64(a)
	case bool:
		if a {
			v = 1
		}
	default:
		return 0, fmt.Errorf("unsupported argument type %T", arg)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %v", v)
	}
	return v, nil
}

func (r *Receiver) touch(ctx context.Context, now time.Time) {
	r.mu.Lock()
	r.last = now
	changed := !r.active
	r.active = true
	r.mu.Unlock()
	if changed {
		metrics.UpdateReceiverActive(true)
		r.logger.Info(ctx, "avatar data source active")
	}
}

// Active reports whether a message arrived within the activity window.
func (r *Receiver) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// LastPacket returns when the last message arrived.
func (r *Receiver) LastPacket() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Check marks the source inactive once the window has passed.
func (r *Receiver) Check(ctx context.Context, now time.Time) bool {
	r.mu.Lock()
	if !r.active || now.Sub(r.last) <= r.window {
		active := r.active
		r.mu.Unlock()
		return active
	}
	r.active = false
	r.mu.Unlock()

	metrics.UpdateReceiverActive(false)
	r.logger.Info(ctx, "avatar data source idle", logger.Duration("window", r.window))
	return false
}

// Watch runs Check until ctx is done.
func (r *Receiver) Watch(ctx context.Context) {
	every := r.window / 3
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-r.clock.After(every):
			r.Check(ctx, now)
		}
	}
}
