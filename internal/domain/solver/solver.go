// Package solver turns contact samples into a contact estimate.
//
// Two solvers exist. Multilateration estimates a 3D point from the
// proximity of several calibrated anchors. SimpleDistance forwards the
// proximity values as a per-motor intensity vector.
package solver

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/patpat/internal/domain/contact"
	"github.com/okian/patpat/internal/domain/model"
)

// DefaultBoundsTolerance is the RMS distance residual accepted for a point
// re-solved onto the equatorial plane.
const DefaultBoundsTolerance = 0.25

// DefaultRadius is used for anchors configured without a radius.
const DefaultRadius = 1.0

// Kind selects a solver implementation.
type Kind int

const (
	KindUnknown Kind = iota
	KindMultilateration
	KindSimpleDistance
)

func (k Kind) String() string {
	switch k {
	case KindMultilateration:
		return "MLat"
	case KindSimpleDistance:
		return "SimpleDistance"
	default:
		return "Unknown"
	}
}

// ParseKind maps a configured solver name to a Kind. Older configuration
// files name the solvers "Mlat", "Linear" and "Single n:n".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mlat", "multilateration":
		return KindMultilateration, nil
	case "simpledistance", "simple", "linear", "single n:n":
		return KindSimpleDistance, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownSolver, s)
	}
}

// ResultKind tags the shape of a Result.
type ResultKind int

const (
	// ResultNone means no contact: every proximity value is zero.
	ResultNone ResultKind = iota
	// ResultPoint carries a 3D point in the group frame.
	ResultPoint
	// ResultVector carries one intensity per motor.
	ResultVector
)

func (k ResultKind) String() string {
	switch k {
	case ResultPoint:
		return "point"
	case ResultVector:
		return "vector"
	default:
		return "none"
	}
}

// Result is the output of a solve.
type Result struct {
	Kind   ResultKind
	Point  model.Vec3
	Vector []float64
}

// Mapping selects how SimpleDistance assigns point values to motors.
type Mapping int

const (
	// MappingOneToOne gives motor i the value of point i.
	MappingOneToOne Mapping = iota
	// MappingNearestAnchor gives each motor the value of the anchor closest to it.
	MappingNearestAnchor
)

// ParseMapping maps a configured mapping name to a Mapping. Empty selects one-to-one.
func ParseMapping(s string) (Mapping, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "one_to_one", "onetoone", "1:1":
		return MappingOneToOne, nil
	case "nearest_anchor", "nearestanchor", "nearest":
		return MappingNearestAnchor, nil
	default:
		return MappingOneToOne, fmt.Errorf("unknown motor mapping %q", s)
	}
}

// Aggregate selects how nearest-anchor mapping combines the anchors whose
// radius reaches a motor.
type Aggregate int

const (
	// AggregateNearest ignores coverage and takes the nearest anchor only.
	AggregateNearest Aggregate = iota
	// AggregateMax takes the strongest covering anchor.
	AggregateMax
	// AggregateMean averages the covering anchors.
	AggregateMean
)

// ParseAggregate maps a configured aggregate name. Empty selects nearest.
func ParseAggregate(s string) (Aggregate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest":
		return AggregateNearest, nil
	case "max":
		return AggregateMax, nil
	case "mean", "avg", "average":
		return AggregateMean, nil
	default:
		return AggregateNearest, fmt.Errorf("unknown aggregate %q", s)
	}
}

// Options tune a solve.
type Options struct {
	// UpperHemisphereOnly rejects points below the group's z = 0 plane.
	UpperHemisphereOnly bool
	// BoundsTolerance is the RMS residual allowed after re-solving onto z = 0.
	BoundsTolerance float64
	// ContactOnly quantizes SimpleDistance output to 0 or 1.
	ContactOnly bool
	// Mapping selects the SimpleDistance motor assignment.
	Mapping Mapping
	// Aggregate combines covering anchors under MappingNearestAnchor.
	Aggregate Aggregate
	// MotorPositions is required by MappingNearestAnchor.
	MotorPositions []model.Vec3
	// Now and MaxAge enable the freshness re-check when MaxAge > 0.
	Now    time.Time
	MaxAge time.Duration
}

// Solver estimates contact from samples and anchors.
type Solver interface {
	Kind() Kind
	Solve(samples map[int]model.Sample, anchors []model.AnchorPoint, opts Options) (Result, error)
}

// New returns the solver for kind.
func New(kind Kind) (Solver, error) {
	switch kind {
	case KindMultilateration:
		return &Multilateration{}, nil
	case KindSimpleDistance:
		return &SimpleDistance{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownSolver, int(kind))
	}
}

// values checks that every anchor has a valid (and, if requested, fresh)
// sample and returns the values in anchor order.
func values(samples map[int]model.Sample, anchors []model.AnchorPoint, opts Options) ([]float64, error) {
	if len(anchors) == 0 {
		return nil, fmt.Errorf("%w: no anchors", ErrInsufficientData)
	}
	out := make([]float64, len(anchors))
	for i, a := range anchors {
		s, ok := samples[a.PointID]
		if !ok || !s.Valid {
			return nil, fmt.Errorf("%w: point %d has no sample", ErrInsufficientData, a.PointID)
		}
		if opts.MaxAge > 0 && !contact.IsFresh(s, opts.Now, opts.MaxAge) {
			return nil, fmt.Errorf("%w: point %d is stale", ErrInsufficientData, a.PointID)
		}
		out[i] = s.Value
	}
	return out, nil
}
