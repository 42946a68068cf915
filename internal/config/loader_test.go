package config_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/patpat/internal/config"
	"github.com/okian/patpat/internal/domain/model"
)

const sampleYAML = `
addr: ":9090"
program:
  tps: 30
  max_age: 750ms
devices:
  esp0:
    name: chest
    transport: osc
    mac: "aa:bb:cc:dd:ee:ff"
    motor_count: 4
    mdns_name: patpatpat
groups:
  - key: head
    name: Head
    solver: Mlat
    strength: 80
    upper_hemisphere_only: true
    anchors:
      - {name: center, receiver: pat_center, position: {x: 0, y: 0, z: 1}, radius: 0.5}
      - {name: front, receiver: pat_1, position: {x: 1, y: 0, z: 0}}
    motors:
      - {name: m0, device: esp0, channel: 0, position: {x: 0, y: 0, z: 1}, radius: 0.4, min_pwm: 20, max_pwm: 200}
`

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Program.TPS, convey.ShouldEqual, 2)
				convey.So(cfg.Groups, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(sampleYAML)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfig, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then nested sections are decoded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Program.TPS, convey.ShouldEqual, 30)
				convey.So(cfg.Program.MaxAge, convey.ShouldEqual, 750*time.Millisecond)
				convey.So(cfg.Program.HeartbeatTimeout, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.Devices["esp0"].MotorCount, convey.ShouldEqual, 4)
				convey.So(cfg.Devices["esp0"].MDNSName, convey.ShouldEqual, "patpatpat")

				convey.So(cfg.Groups, convey.ShouldHaveLength, 1)
				g := cfg.Groups[0]
				convey.So(g.StrengthOrDefault(), convey.ShouldEqual, 80)
				convey.So(g.UpperHemisphereOnly, convey.ShouldBeTrue)
				convey.So(g.Anchors, convey.ShouldHaveLength, 2)
				convey.So(g.Anchors[0].Position, convey.ShouldResemble, model.V3(0, 0, 1))
				convey.So(g.Anchors[0].Radius, convey.ShouldEqual, 0.5)
				convey.So(g.Motors[0].MinPWM, convey.ShouldEqual, 20)
				convey.So(g.Motors[0].MaxPWM, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(sampleYAML)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfig, tmpFile)
			_ = os.Setenv("PATPAT_ADDR", ":8080")
			_ = os.Setenv("PATPAT_PROGRAM__TPS", "10")
			_ = os.Setenv("PATPAT_DEVICES__ESP0__ADDRESS", "192.168.1.20")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Program.TPS, convey.ShouldEqual, 10)
				convey.So(cfg.Program.MaxAge, convey.ShouldEqual, 750*time.Millisecond)
				convey.So(cfg.Devices["esp0"].Address, convey.ShouldEqual, "192.168.1.20")
				convey.So(cfg.Devices["esp0"].MotorCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfig, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv(config.EnvConfig, "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config fails validation", func() {
			_ = os.Setenv("PATPAT_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "patpat-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
