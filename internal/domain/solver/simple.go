package solver

import (
	"fmt"
	"math"

	"github.com/okian/patpat/internal/domain/model"
)

// SimpleDistance forwards proximity values as motor intensities.
type SimpleDistance struct{}

func (*SimpleDistance) Kind() Kind { return KindSimpleDistance }

func (*SimpleDistance) Solve(samples map[int]model.Sample, anchors []model.AnchorPoint, opts Options) (Result, error) {
	vals, err := values(samples, anchors, opts)
	if err != nil {
		return Result{}, err
	}
	for i, v := range vals {
		if math.IsNaN(v) || v < 0 {
			v = 0
		}
		if opts.ContactOnly {
			if v > 0 {
				v = 1
			} else {
				v = 0
			}
		}
		vals[i] = v
	}

	switch opts.Mapping {
	case MappingOneToOne:
		return Result{Kind: ResultVector, Vector: vals}, nil
	case MappingNearestAnchor:
		if len(opts.MotorPositions) == 0 {
			return Result{}, fmt.Errorf("%w: nearest-anchor mapping without motor positions", ErrInsufficientData)
		}
		out := make([]float64, len(opts.MotorPositions))
		for m, pos := range opts.MotorPositions {
			out[m] = nearestAnchorValue(pos, anchors, vals, opts.Aggregate)
		}
		return Result{Kind: ResultVector, Vector: out}, nil
	default:
		return Result{}, fmt.Errorf("unknown motor mapping %d", int(opts.Mapping))
	}
}

// nearestAnchorValue returns the value a motor at pos takes. With max or mean
// aggregation every anchor whose radius reaches pos contributes; a motor no
// anchor reaches falls back to its nearest anchor.
func nearestAnchorValue(pos model.Vec3, anchors []model.AnchorPoint, vals []float64, agg Aggregate) float64 {
	best, bestDist := 0, math.Inf(1)
	covered, sum, peak := 0, 0.0, 0.0
	for i, a := range anchors {
		d := pos.Distance(a.Position)
		if d < bestDist {
			best, bestDist = i, d
		}
		if agg != AggregateNearest && d <= a.Radius {
			covered++
			sum += vals[i]
			peak = math.Max(peak, vals[i])
		}
	}
	switch {
	case covered == 0:
		return vals[best]
	case agg == AggregateMax:
		return peak
	default:
		return sum / float64(covered)
	}
}
