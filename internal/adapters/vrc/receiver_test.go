package vrc_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/patpat/internal/adapters/vrc"
	"github.com/okian/patpat/internal/domain/contact"
	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestReceiver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a receiver bound to two parameters", t, func() {
		clock := timeutil.NewMockClock(time.Unix(100, 0))
		store := contact.NewStore(4)
		r := vrc.NewReceiver(store, map[string][]int{
			"pat_center": {0, 3},
			"pat_1":      {1},
		}, vrc.WithClock(clock))

		Convey("When a bound float parameter arrives", func() {
			r.Handle(ctx, osc.NewMessage("/avatar/parameters/pat_center", float32(0.75)), nil)
			snap := store.Snapshot([]int{0, 1, 3})

			Convey("Then every point fed by the name is updated", func() {
				So(snap[0].Valid, ShouldBeTrue)
				So(snap[0].Value, ShouldEqual, 0.75)
				So(snap[3].Value, ShouldEqual, 0.75)
				So(snap[0].Timestamp, ShouldEqual, clock.Now())
				So(snap[1].Valid, ShouldBeFalse)
			})
		})

		Convey("When int and bool parameters arrive", func() {
			r.Handle(ctx, osc.NewMessage("/avatar/parameters/pat_1", true), nil)
			So(store.Snapshot([]int{1})[1].Value, ShouldEqual, 1)
			r.Handle(ctx, osc.NewMessage("/avatar/parameters/pat_1", int32(0)), nil)
			So(store.Snapshot([]int{1})[1].Value, ShouldEqual, 0)
		})

		Convey("When an unbound or malformed parameter arrives", func() {
			r.Handle(ctx, osc.NewMessage("/avatar/parameters/VelocityX", float32(1)), nil)
			r.Handle(ctx, osc.NewMessage("/avatar/parameters/pat_1", "text"), nil)
			r.Handle(ctx, osc.NewMessage("/avatar/parameters/pat_1", float32(1), float32(2)), nil)

			Convey("Then no sample is recorded", func() {
				So(store.Snapshot([]int{1})[1].Valid, ShouldBeFalse)
			})

			Convey("Then the source still counts as active", func() {
				So(r.Active(), ShouldBeTrue)
			})
		})

		Convey("When the source goes quiet", func() {
			r.Handle(ctx, osc.NewMessage("/avatar/change", "avtr_1"), nil)
			So(r.Active(), ShouldBeTrue)
			So(r.LastPacket(), ShouldEqual, clock.Now())

			So(r.Check(ctx, clock.Now().Add(vrc.DefaultActivityWindow)), ShouldBeTrue)
			So(r.Check(ctx, clock.Now().Add(vrc.DefaultActivityWindow+time.Millisecond)), ShouldBeFalse)
			So(r.Active(), ShouldBeFalse)
		})
	})
}

func TestWatch(t *testing.T) {
	Convey("Given a watched receiver", t, func() {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		r := vrc.NewReceiver(contact.NewStore(1), nil, vrc.WithClock(clock), vrc.WithActivityWindow(300*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		r.Handle(ctx, osc.NewMessage("/avatar/change", "x"), nil)
		go func() {
			defer close(done)
			r.Watch(ctx)
		}()

		Convey("Then it turns idle after the window", func() {
			deadline := time.Now().Add(time.Second)
			for r.Active() && time.Now().Before(deadline) {
				clock.Advance(100 * time.Millisecond)
				time.Sleep(time.Millisecond)
			}
			So(r.Active(), ShouldBeFalse)
			cancel()
			<-done
		})
	})
}

func TestValue(t *testing.T) {
	Convey("Value rejects what cannot be a proximity", t, func() {
		_, err := vrc.Value(float32(math.NaN()))
		So(err, ShouldNotBeNil)
		_, err = vrc.Value("0.5")
		So(err, ShouldNotBeNil)

		v, err := vrc.Value(int64(1))
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 1)
	})
}
