package replay

import (
	"errors"
	"math"
	"time"
)

// ParameterPrefix is where avatar clients publish contact parameters.
const ParameterPrefix = "/avatar/parameters/"

// ErrBadSweep reports unusable sweep settings.
var ErrBadSweep = errors.New("invalid sweep")

// SweepConfig describes a synthetic contact pattern.
type SweepConfig struct {
	Params   []string      // Receiver parameter names
	Duration time.Duration // Total length
	Period   time.Duration // Time for one rise and fall of a parameter
	Interval time.Duration // Spacing between frames
}

// Sweep generates a triangle wave per parameter, each phase shifted so
// that contact travels across the parameters in order.
func Sweep(cfg SweepConfig) ([]Sample, error) {
	if len(cfg.Params) == 0 || cfg.Duration <= 0 || cfg.Period <= 0 || cfg.Interval <= 0 {
		return nil, ErrBadSweep
	}
	n := len(cfg.Params)
	frames := int(cfg.Duration/cfg.Interval) + 1
	out := make([]Sample, 0, frames*n)
	for f := 0; f < frames; f++ {
		at := time.Duration(f) * cfg.Interval
		cycle := float64(at) / float64(cfg.Period)
		for i, p := range cfg.Params {
			phase := math.Mod(cycle+float64(i)/float64(n), 1)
			out = append(out, Sample{
				Offset:  at,
				Address: ParameterPrefix + p,
				Value:   float32(1 - math.Abs(2*phase-1)),
			})
		}
	}
	return out, nil
}
