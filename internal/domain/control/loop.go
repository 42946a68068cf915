// Package control runs the fixed-rate tick that turns contact samples into motor frames.
package control

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/patpat/internal/domain/contact"
	"github.com/okian/patpat/internal/domain/mapper"
	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/solver"
	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
	"github.com/okian/patpat/pkg/metrics"
)

// DefaultTPS is the default tick rate.
const DefaultTPS = 2

// Device is what the loop needs from a device session.
type Device interface {
	Key() string
	MotorCount() int
	SetOutputs(values []uint8) error
	Flush(ctx context.Context) error
	UpdateConnection(ctx context.Context, now time.Time) model.ConnectionState
}

// Notifier receives state-change events.
type Notifier interface {
	Notify(ctx context.Context, e model.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Event) {}

// Loop is the control loop scheduler.
type Loop struct {
	store   contact.Store
	groups  []*Group
	devices []Device
	index   map[string]int

	tps      int
	maxAge   time.Duration
	clock    timeutil.Clock
	notifier Notifier
	logger   logger.Logger

	transmit  atomic.Bool
	intensity atomic.Uint64 // math.Float64bits of the master intensity

	// Owned by the tick.
	buffers   [][]uint8
	flushErrs []bool

	ticks     atomic.Uint64
	slowTicks atomic.Uint64
	tpsMu     sync.Mutex
	tickTimes []time.Time
}

// NewLoop checks that every motor of every group lands on an existing
// device channel and every anchor on an existing store slot.
func NewLoop(store contact.Store, groups []*Group, devices []Device, opts ...Option) (*Loop, error) {
	l := &Loop{
		store:    store,
		groups:   groups,
		devices:  devices,
		index:    make(map[string]int, len(devices)),
		tps:      DefaultTPS,
		maxAge:   contact.DefaultMaxAge,
		clock:    timeutil.RealClock{},
		notifier: nopNotifier{},
	}
	l.intensity.Store(math.Float64bits(1))
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("control")
	}

	l.buffers = make([][]uint8, len(devices))
	l.flushErrs = make([]bool, len(devices))
	for i, d := range devices {
		if _, dup := l.index[d.Key()]; dup {
			return nil, fmt.Errorf("%w: device %q configured twice", model.ErrTopologyMismatch, d.Key())
		}
		l.index[d.Key()] = i
		l.buffers[i] = make([]uint8, d.MotorCount())
	}
	for _, g := range groups {
		for _, a := range g.Anchors {
			if a.PointID < 0 || a.PointID >= store.Size() {
				return nil, fmt.Errorf("%w: group %q point %d outside store of %d",
					model.ErrTopologyMismatch, g.Key, a.PointID, store.Size())
			}
		}
		for _, m := range g.Motors {
			i, ok := l.index[m.DeviceKey]
			if !ok {
				return nil, fmt.Errorf("%w: group %q motor %q on unknown device %q",
					model.ErrTopologyMismatch, g.Key, m.Name, m.DeviceKey)
			}
			if m.Channel < 0 || m.Channel >= devices[i].MotorCount() {
				return nil, fmt.Errorf("%w: group %q motor %q channel %d outside device %q with %d motors",
					model.ErrTopologyMismatch, g.Key, m.Name, m.Channel, m.DeviceKey, devices[i].MotorCount())
			}
		}
	}
	return l, nil
}

// Budget is the time available to one tick.
func (l *Loop) Budget() time.Duration {
	return time.Second / time.Duration(l.tps)
}

// SleepFor returns how long to wait after a tick that took elapsed. It is
// never negative.
func SleepFor(budget, elapsed time.Duration) time.Duration {
	if elapsed >= budget {
		return 0
	}
	return budget - elapsed
}

// Run ticks until ctx is done. A tick in progress always completes.
func (l *Loop) Run(ctx context.Context) {
	budget := l.Budget()
	l.logger.Info(ctx, "control loop started", logger.Int("tps", l.tps))
	defer l.logger.Info(ctx, "control loop stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		start := l.clock.Now()
		l.Tick(ctx)
		elapsed := l.clock.Since(start)
		metrics.RecordTick(float64(elapsed.Microseconds()) / 1000)

		if elapsed > budget {
			l.slowTicks.Add(1)
			metrics.RecordSlowTick()
			l.logger.Warn(ctx, "slow tick",
				logger.Duration("elapsed", elapsed),
				logger.Duration("budget", budget),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-l.clock.After(SleepFor(budget, elapsed)):
		}
	}
}

// Tick runs one pass: solve every group, write device buffers, flush,
// then refresh connectivity.
func (l *Loop) Tick(ctx context.Context) {
	now := l.clock.Now()
	l.recordTick(now)
	master := l.Intensity()

	for _, g := range l.groups {
		l.tickGroup(ctx, g, now, master)
	}

	for i, d := range l.devices {
		if err := d.SetOutputs(l.buffers[i]); err != nil {
			l.logger.Error(ctx, "device rejected outputs", logger.String("device", d.Key()), logger.Error(err))
			continue
		}
		for ch, v := range l.buffers[i] {
			metrics.UpdateMotorOutput(d.Key(), strconv.Itoa(ch), v)
		}
	}

	if l.transmit.Load() {
		for i, d := range l.devices {
			l.flush(ctx, i, d)
		}
	}

	for _, d := range l.devices {
		d.UpdateConnection(ctx, now)
	}
}

func (l *Loop) tickGroup(ctx context.Context, g *Group, now time.Time, master float64) {
	snap := l.store.Snapshot(g.PointIDs())
	fresh := contact.AllFresh(snap, g.PointIDs(), now, l.maxAge)
	if g.fresh.Swap(fresh) != fresh {
		metrics.UpdateGroupFresh(g.Key, fresh)
		l.logger.Debug(ctx, "group freshness changed", logger.String("group", g.Key), logger.Bool("fresh", fresh))
		l.notifier.Notify(ctx, model.Event{
			ID:    uuid.NewString(),
			Kind:  model.EventGroupFreshness,
			Key:   g.Key,
			Fresh: fresh,
			At:    now,
		})
	}
	if !fresh {
		// No current contact data: stop the group's motors.
		metrics.RecordGroupSkip(g.Key, "stale")
		l.write(g, make([]uint8, len(g.Motors)))
		return
	}

	opts := g.Options
	opts.Now = now
	opts.MaxAge = l.maxAge
	res, err := g.Solver.Solve(snap, g.Anchors, opts)
	if err != nil {
		// Keep the last output for this group.
		reason := skipReason(err)
		metrics.RecordSolve(g.Key, reason)
		metrics.RecordGroupSkip(g.Key, reason)
		l.logger.Debug(ctx, "solve skipped", logger.String("group", g.Key), logger.Error(err))
		return
	}
	metrics.RecordSolve(g.Key, res.Kind.String())

	scale := float64(g.Strength()) / 100 * master
	out, err := mapper.MapToMotors(res, g.Motors, scale)
	if err != nil {
		metrics.RecordGroupSkip(g.Key, "mapping")
		l.logger.Warn(ctx, "mapping failed", logger.String("group", g.Key), logger.Error(err))
		return
	}
	l.write(g, out)
}

func (l *Loop) write(g *Group, out []uint8) {
	for i, m := range g.Motors {
		l.buffers[l.index[m.DeviceKey]][m.Channel] = out[i]
	}
}

func (l *Loop) flush(ctx context.Context, i int, d Device) {
	err := d.Flush(ctx)
	switch {
	case err != nil && !l.flushErrs[i]:
		l.logger.Warn(ctx, "flush failed", logger.String("device", d.Key()), logger.Error(err))
	case err != nil:
		l.logger.Debug(ctx, "flush still failing", logger.String("device", d.Key()), logger.Error(err))
	case l.flushErrs[i]:
		l.logger.Info(ctx, "flush recovered", logger.String("device", d.Key()))
	}
	l.flushErrs[i] = err != nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, solver.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, solver.ErrDegenerateGeometry):
		return "degenerate_geometry"
	case errors.Is(err, solver.ErrOutOfBounds):
		return "out_of_bounds"
	default:
		return "error"
	}
}

// SetTransmission enables or disables flushing. Disabling leaves outputs
// in the device buffers.
func (l *Loop) SetTransmission(ctx context.Context, enabled bool) {
	if l.transmit.Swap(enabled) == enabled {
		return
	}
	metrics.UpdateTransmissionEnabled(enabled)
	l.logger.Info(ctx, "transmission toggled", logger.Bool("enabled", enabled))
	l.notifier.Notify(ctx, model.Event{
		ID:      uuid.NewString(),
		Kind:    model.EventTransmission,
		Enabled: enabled,
		At:      l.clock.Now(),
	})
}

// Transmission reports whether flushing is enabled.
func (l *Loop) Transmission() bool {
	return l.transmit.Load()
}

// SetIntensity sets the master intensity multiplier applied to every group,
// clamped to 0..1.
func (l *Loop) SetIntensity(f float64) {
	switch {
	case math.IsNaN(f) || f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	l.intensity.Store(math.Float64bits(f))
}

// Intensity returns the master intensity multiplier.
func (l *Loop) Intensity() float64 {
	return math.Float64frombits(l.intensity.Load())
}

// Groups returns the groups driven by the loop.
func (l *Loop) Groups() []*Group {
	return l.groups
}

// Group returns the group with key.
func (l *Loop) Group(key string) (*Group, bool) {
	for _, g := range l.groups {
		if g.Key == key {
			return g, true
		}
	}
	return nil, false
}

// Stats summarizes tick counters.
type Stats struct {
	TargetTPS  int
	CurrentTPS int
	Ticks      uint64
	SlowTicks  uint64
}

// Stats returns the tick counters. CurrentTPS counts ticks started during
// the last second.
func (l *Loop) Stats() Stats {
	now := l.clock.Now()
	l.tpsMu.Lock()
	l.trimTickTimes(now)
	current := len(l.tickTimes)
	l.tpsMu.Unlock()
	return Stats{
		TargetTPS:  l.tps,
		CurrentTPS: current,
		Ticks:      l.ticks.Load(),
		SlowTicks:  l.slowTicks.Load(),
	}
}

func (l *Loop) recordTick(now time.Time) {
	l.ticks.Add(1)
	l.tpsMu.Lock()
	l.tickTimes = append(l.tickTimes, now)
	l.trimTickTimes(now)
	current := len(l.tickTimes)
	l.tpsMu.Unlock()
	metrics.UpdateTicksPerSecond(current)
}

func (l *Loop) trimTickTimes(now time.Time) {
	cut := 0
	for cut < len(l.tickTimes) && now.Sub(l.tickTimes[cut]) >= time.Second {
		cut++
	}
	l.tickTimes = l.tickTimes[cut:]
}
