package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/patpat/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Program.TPS, convey.ShouldEqual, 2)
			convey.So(cfg.Program.OSCListen, convey.ShouldEqual, ":9001")
			convey.So(cfg.Program.MaxAge, convey.ShouldEqual, 500*time.Millisecond)
			convey.So(cfg.Program.HeartbeatTimeout, convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.Program.SendTimeout, convey.ShouldEqual, 50*time.Millisecond)
			convey.So(cfg.Program.DiscoveryInterval, convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Program.ReceiverTimeout, convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.Program.Intensity, convey.ShouldEqual, 1)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func validConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.Devices["esp0"] = config.Device{Transport: "osc", MotorCount: 2}
	cfg.Groups = []config.Group{{
		Key:     "head",
		Solver:  "MLat",
		Anchors: []config.Anchor{{Name: "center", Receiver: "pat_center"}},
		Motors:  []config.Motor{{Name: "m0", Device: "esp0", Channel: 1, MaxPWM: 200}},
	}}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		convey.So(validConfig().Validate(), convey.ShouldBeNil)

		cases := map[string]func(c *config.Config){
			"zero tps":           func(c *config.Config) { c.Program.TPS = 0 },
			"intensity above 1":  func(c *config.Config) { c.Program.Intensity = 1.5 },
			"unknown transport":  func(c *config.Config) { c.Devices["esp0"] = config.Device{Transport: "ble", MotorCount: 2} },
			"no motors":          func(c *config.Config) { c.Devices["esp0"] = config.Device{Transport: "osc"} },
			"serial without tty": func(c *config.Config) { c.Devices["esp0"] = config.Device{Transport: "slipserial", MotorCount: 2} },
			"unknown solver":     func(c *config.Config) { c.Groups[0].Solver = "kalman" },
			"unknown mapping":    func(c *config.Config) { c.Groups[0].Mapping = "random" },
			"unknown aggregate":  func(c *config.Config) { c.Groups[0].Aggregate = "median" },
			"unknown device":     func(c *config.Config) { c.Groups[0].Motors[0].Device = "esp9" },
			"channel overflow":   func(c *config.Config) { c.Groups[0].Motors[0].Channel = 2 },
			"min above max":      func(c *config.Config) { c.Groups[0].Motors[0].MinPWM = 250 },
			"missing receiver":   func(c *config.Config) { c.Groups[0].Anchors[0].Receiver = "" },
			"duplicate group":    func(c *config.Config) { c.Groups = append(c.Groups, c.Groups[0]) },
			"strength above 100": func(c *config.Config) {
				s := 101
				c.Groups[0].Strength = &s
			},
		}
		for name, mutate := range cases {
			convey.Convey("When "+name, func() {
				cfg := validConfig()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Strength defaults to 100", t, func() {
		convey.So(config.Group{}.StrengthOrDefault(), convey.ShouldEqual, config.DefaultStrength)
		s := 0
		convey.So(config.Group{Strength: &s}.StrengthOrDefault(), convey.ShouldEqual, 0)
	})
}
