package service_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"

	service "github.com/okian/patpat/internal/app"
	"github.com/okian/patpat/internal/adapters/repository"
	"github.com/okian/patpat/internal/adapters/transport"
	"github.com/okian/patpat/internal/config"
	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

const boardMAC = "AA:BB:CC:DD:EE:01"

const engineYAML = `
log_level: debug
program:
  tps: 20
  osc_listen: 127.0.0.1:0
  max_age: 1s
  heartbeat_timeout: 5s
  transmit: true
devices:
  esp0:
    name: left shoulder
    transport: osc
    address: %s
    mac: %s
    motor_count: 2
groups:
  - key: shoulder
    name: Shoulder
    solver: simple
    mapping: one_to_one
    anchors:
      - { name: front, receiver: p0, radius: 0.1, position: { x: 0, y: 0, z: 0 } }
      - { name: back, receiver: p1, radius: 0.1, position: { x: 0.1, y: 0, z: 0 } }
    motors:
      - { name: m0, device: esp0, channel: 0, max_pwm: 255 }
      - { name: m1, device: esp0, channel: 1, max_pwm: 255 }
`

func loadStore(t *testing.T, yaml string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patpat.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.EnvConfig, path)
	store, err := config.LoadStore(context.Background())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return store
}

func listenBoard(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen board: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(conn *net.UDPConn, to net.Addr, msg *osc.Message) {
	data, err := msg.MarshalBinary()
	So(err, ShouldBeNil)
	_, err = conn.WriteTo(data, to)
	So(err, ShouldBeNil)
}

// readUntil reads board datagrams until match accepts one or the deadline passes.
func readUntil(conn *net.UDPConn, deadline time.Duration, match func(*osc.Message) bool) *osc.Message {
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return nil
		}
		msgs, err := transport.ParseMessages(buf[:n])
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if match(m) {
				return m
			}
		}
	}
}

func eventually(timeout time.Duration, cond func() bool) bool {
	end := time.Now().Add(timeout)
	for time.Now().Before(end) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func motorValues(m *osc.Message) []int32 {
	out := make([]int32, 0, len(m.Arguments))
	for _, a := range m.Arguments {
		v, _ := a.(int32)
		out = append(out, v)
	}
	return out
}

func TestServiceIntegration(t *testing.T) {
	board := listenBoard(t)
	store := loadStore(t, fmt.Sprintf(engineYAML, board.LocalAddr().String(), boardMAC))

	Convey("Given a running engine with one OSC board", t, func() {
		svc := service.New(store)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		engineAddr, err := svc.OSCAddr()
		So(err, ShouldBeNil)
		vrc := listenBoard(t)

		Convey("When the avatar reports contact on the first point", func() {
			var frame *osc.Message
			for i := 0; i < 20 && frame == nil; i++ {
				send(vrc, engineAddr, osc.NewMessage("/avatar/parameters/p0", float32(1)))
				send(vrc, engineAddr, osc.NewMessage("/avatar/parameters/p1", float32(0)))
				frame = readUntil(board, 100*time.Millisecond, func(m *osc.Message) bool {
					v := motorValues(m)
					return m.Address == transport.AddrMotors && len(v) == 2 && v[0] > 0
				})
			}

			Convey("Then the board receives a frame driving only the first motor", func() {
				So(frame, ShouldNotBeNil)
				So(motorValues(frame), ShouldResemble, []int32{255, 0})
			})

			Convey("And the status reports the group fresh and the receiver active", func() {
				So(eventually(time.Second, func() bool {
					snap, err := svc.Snapshot(ctx)
					return err == nil && len(snap.Groups) == 1 && snap.Groups[0].Fresh && snap.Stats.ReceiverActive
				}), ShouldBeTrue)
			})
		})

		Convey("When the board sends a heartbeat", func() {
			send(board, engineAddr, osc.NewMessage(transport.AddrHeartbeat, boardMAC, int32(12), int32(3700), int32(-48)))

			Convey("Then the device becomes connected with its telemetry", func() {
				So(eventually(time.Second, func() bool {
					dev := svc.Devices()[0]
					return dev.State == model.StateConnected.String() && dev.BatteryVoltage == 3700
				}), ShouldBeTrue)
			})

			Convey("And a connectivity event is recorded", func() {
				So(eventually(time.Second, func() bool {
					events, err := svc.Events(ctx, 10)
					if err != nil {
						return false
					}
					for _, e := range events {
						if e.Kind == string(model.EventDeviceConnectivity) && e.Key == "esp0" && e.State == "connected" {
							return true
						}
					}
					return false
				}), ShouldBeTrue)
			})
		})

		Convey("When a heartbeat carries a foreign mac", func() {
			send(board, engineAddr, osc.NewMessage(transport.AddrHeartbeat, "11:22:33:44:55:66", int32(1), int32(1), int32(1)))
			time.Sleep(100 * time.Millisecond)

			Convey("Then the device does not connect", func() {
				So(svc.Devices()[0].State, ShouldNotEqual, model.StateConnected.String())
			})
		})

		Convey("When the configured address changes at runtime", func() {
			moved := listenBoard(t)
			So(store.Set(ctx, "devices.esp0.address", moved.LocalAddr().String()), ShouldBeNil)

			Convey("Then the board is asked for its topology at the new address", func() {
				req := readUntil(moved, time.Second, func(m *osc.Message) bool {
					return m.Address == transport.AddrDiscoveryRequest
				})
				So(req, ShouldNotBeNil)
				So(svc.Devices()[0].Address, ShouldEqual, moved.LocalAddr().String())
			})

			Convey("And motor frames follow the device", func() {
				So(readUntil(moved, time.Second, func(m *osc.Message) bool {
					return m.Address == transport.AddrMotors
				}), ShouldNotBeNil)
			})

			Reset(func() {
				_ = store.Set(ctx, "devices.esp0.address", board.LocalAddr().String())
			})
		})

		Convey("When transmission is disabled", func() {
			svc.SetTransmission(ctx, false)

			Convey("Then no more frames reach the board", func() {
				So(svc.Transmission(), ShouldBeFalse)
				time.Sleep(100 * time.Millisecond) // let an in-flight tick finish
				readUntil(board, 20*time.Millisecond, func(*osc.Message) bool { return false })
				So(readUntil(board, 200*time.Millisecond, func(m *osc.Message) bool {
					return m.Address == transport.AddrMotors
				}), ShouldBeNil)
			})

			Convey("And the toggle is published as an event", func() {
				So(eventually(time.Second, func() bool {
					events, _ := svc.Events(ctx, 10)
					for _, e := range events {
						if e.Kind == string(model.EventTransmission) && e.Enabled != nil && !*e.Enabled {
							return true
						}
					}
					return false
				}), ShouldBeTrue)
			})

			Reset(func() { svc.SetTransmission(ctx, true) })
		})

		Convey("When a group strength is changed", func() {
			So(svc.SetGroupStrength(ctx, "shoulder", 40), ShouldBeNil)

			Convey("Then the published status follows immediately", func() {
				g, err := svc.Group(ctx, "shoulder")
				So(err, ShouldBeNil)
				So(g.Strength, ShouldEqual, 40)
			})

			Reset(func() { _ = svc.SetGroupStrength(ctx, "shoulder", 100) })
		})

		Convey("When an unknown group strength is changed", func() {
			err := svc.SetGroupStrength(ctx, "tail", 40)

			Convey("Then it is reported as not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestServiceDiscoveryRebinds(t *testing.T) {
	yaml := `
program:
  osc_listen: 127.0.0.1:0
  discovery_interval: 50ms
devices:
  esp0:
    transport: osc
    mdns_name: patpat-esp0
    motor_count: 1
`
	store := loadStore(t, yaml)

	Convey("Given a device known only by its mDNS name", t, func() {
		res := &staticResolver{ip: net.IPv4(127, 0, 0, 1)}
		svc := service.New(store, service.WithResolver(res))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then discovery binds it on the board port", func() {
			So(eventually(time.Second, func() bool {
				devs := svc.Devices()
				return len(devs) == 1 && devs[0].Bound
			}), ShouldBeTrue)
			So(svc.Devices()[0].Address, ShouldEqual, "127.0.0.1:8888")
			So(store.String("devices.esp0.address"), ShouldEqual, "127.0.0.1:8888")
			So(res.host(), ShouldEqual, "patpat-esp0")
		})
	})
}

func TestServiceRejectsInvalidConfig(t *testing.T) {
	yaml := `
program:
  osc_listen: 127.0.0.1:0
groups:
  - key: chest
    solver: mlat
    anchors:
      - { receiver: c0, position: { x: 0, y: 0, z: 0 } }
    motors:
      - { device: ghost, channel: 0 }
`
	store := loadStore(t, yaml)

	Convey("Given a group wired to an unknown device", t, func() {
		svc := service.New(store)
		err := svc.Start(context.Background())

		Convey("Then startup fails with a configuration error", func() {
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("And the service reports nothing", func() {
			_, err := svc.Snapshot(context.Background())
			So(errors.Is(err, repository.ErrNotReady), ShouldBeTrue)
			So(svc.Devices(), ShouldBeEmpty)
			So(svc.Stats(), ShouldResemble, types.EngineStats{})
		})
	})
}

func TestServiceRejectsUnknownTransport(t *testing.T) {
	yaml := `
program:
  osc_listen: 127.0.0.1:0
devices:
  esp0:
    transport: bluetooth
    motor_count: 2
`
	store := loadStore(t, yaml)

	Convey("Given a device with an unsupported connection type", t, func() {
		svc := service.New(store)
		err := svc.Start(context.Background())

		Convey("Then startup fails with a configuration error naming the transport", func() {
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			So(errors.Is(err, transport.ErrUnknownTransport), ShouldBeTrue)
			So(errors.Is(err, model.ErrUnknownTransport), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "bluetooth")
		})
	})
}
