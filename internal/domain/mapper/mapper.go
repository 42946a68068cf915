// Package mapper converts solver results into per-motor PWM values.
package mapper

import (
	"fmt"
	"math"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/solver"
)

// MaxOutput is the largest value of the motor frame protocol.
const MaxOutput = 255

// MapToMotors returns one PWM value per motor, index-aligned with motors.
//
// Point results use linear falloff, 1 - clamp(d/radius, 0, 1). Vector
// results must have exactly one entry per motor. None yields zeros. scale
// is applied to the PWM value last and the result is clamped to 0..255.
func MapToMotors(res solver.Result, motors []model.MotorSpec, scale float64) ([]uint8, error) {
	out := make([]uint8, len(motors))

	switch res.Kind {
	case solver.ResultNone:
		return out, nil
	case solver.ResultPoint:
		for i, m := range motors {
			out[i] = finish(PWM(Falloff(res.Point, m), m), scale)
		}
		return out, nil
	case solver.ResultVector:
		if len(res.Vector) != len(motors) {
			return nil, fmt.Errorf("%w: %d values for %d motors", model.ErrTopologyMismatch, len(res.Vector), len(motors))
		}
		for i, m := range motors {
			out[i] = finish(PWM(res.Vector[i], m), scale)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown result kind %d", int(res.Kind))
	}
}

// Falloff is the normalized intensity of motor m for a contact at p.
// A motor without a radius only fires on an exact hit.
func Falloff(p model.Vec3, m model.MotorSpec) float64 {
	d := p.Distance(m.Position)
	if m.Radius <= 0 {
		if d == 0 {
			return 1
		}
		return 0
	}
	return 1 - clamp(d/m.Radius, 0, 1)
}

// PWM converts a normalized speed to the motor's PWM range. Values between
// zero and MinPWM are raised to MinPWM so the motor overcomes its dead band.
func PWM(speed float64, m model.MotorSpec) float64 {
	if math.IsNaN(speed) || speed <= 0 {
		return 0
	}
	maxPWM := float64(m.MaxPWM)
	if m.MaxPWM == 0 {
		maxPWM = MaxOutput
	}
	pwm := math.Min(math.Ceil(maxPWM*speed), maxPWM)
	if pwm > 0 && pwm < float64(m.MinPWM) {
		pwm = float64(m.MinPWM)
	}
	return pwm
}

func finish(pwm, scale float64) uint8 {
	v := pwm * scale
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.Round(clamp(v, 0, MaxOutput)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
