package service_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	service "github.com/okian/patpat/internal/app"
	"github.com/okian/patpat/internal/adapters/repository"
	"github.com/okian/patpat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type staticResolver struct {
	mu   sync.Mutex
	ip   net.IP
	last string
}

func (r *staticResolver) Resolve(_ context.Context, host string) (net.IP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = host
	return r.ip, nil
}

func (r *staticResolver) host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

const minimalYAML = `
program:
  osc_listen: 127.0.0.1:0
`

func TestService_Lifecycle(t *testing.T) {
	store := loadStore(t, minimalYAML)

	Convey("Given a service that was never started", t, func() {
		svc := service.New(store)

		Convey("Then it exposes no socket", func() {
			_, err := svc.OSCAddr()
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("And controls are inert", func() {
			So(svc.Transmission(), ShouldBeFalse)
			So(errors.Is(svc.SetGroupStrength(context.Background(), "any", 10), service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("And stopping it is a no-op", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})

	Convey("Given a started service without devices", t, func() {
		svc := service.New(store)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then starting again is refused", func() {
			So(errors.Is(svc.Start(ctx), service.ErrAlreadyStarted), ShouldBeTrue)
		})

		Convey("Then the OSC socket is bound to loopback", func() {
			addr, err := svc.OSCAddr()
			So(err, ShouldBeNil)
			So(addr.String(), ShouldStartWith, "127.0.0.1:")
		})

		Convey("Then defaults come from configuration", func() {
			So(svc.Transmission(), ShouldBeTrue)
			So(svc.Intensity(), ShouldEqual, 1.0)
			snap, err := svc.Snapshot(ctx)
			So(err, ShouldBeNil)
			So(snap.Stats.TargetTPS, ShouldEqual, 2)
			So(snap.Devices, ShouldBeEmpty)
		})

		Convey("Then the master intensity can be changed", func() {
			svc.SetIntensity(0.25)
			So(svc.Intensity(), ShouldEqual, 0.25)
		})

		Convey("Then unknown devices are not found", func() {
			_, err := svc.Session("esp9")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = svc.Device(ctx, "esp9")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a service stopped after running", t, func() {
		svc := service.New(store)
		So(svc.Start(context.Background()), ShouldBeNil)
		svc.Stop()

		Convey("Then it can be started again", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
		})
	})
}
