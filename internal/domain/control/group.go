package control

import (
	"fmt"
	"sync/atomic"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/solver"
	"github.com/okian/patpat/internal/domain/types"
)

// Group is one contact group: anchors in, motors out.
type Group struct {
	Key     string
	Name    string
	Anchors []model.AnchorPoint
	Motors  []model.MotorSpec
	Solver  solver.Solver
	Options solver.Options

	pointIDs []int
	strength atomic.Int32
	fresh    atomic.Bool
}

// NewGroup builds a group. strength is a percentage and is clamped to 0..100.
func NewGroup(key, name string, anchors []model.AnchorPoint, motors []model.MotorSpec, s solver.Solver, opts solver.Options, strength int) (*Group, error) {
	if s == nil {
		return nil, fmt.Errorf("group %q: %w", key, solver.ErrUnknownSolver)
	}
	if len(anchors) == 0 {
		return nil, fmt.Errorf("%w: group %q has no anchors", model.ErrTopologyMismatch, key)
	}
	ids := make([]int, len(anchors))
	seen := make(map[int]bool, len(anchors))
	for i, a := range anchors {
		if seen[a.PointID] {
			return nil, fmt.Errorf("%w: group %q uses point %d twice", model.ErrTopologyMismatch, key, a.PointID)
		}
		seen[a.PointID] = true
		ids[i] = a.PointID
	}
	if s.Kind() == solver.KindSimpleDistance {
		switch opts.Mapping {
		case solver.MappingOneToOne:
			if len(anchors) != len(motors) {
				return nil, fmt.Errorf("%w: group %q maps %d points one to one onto %d motors",
					model.ErrTopologyMismatch, key, len(anchors), len(motors))
			}
		case solver.MappingNearestAnchor:
			opts.MotorPositions = make([]model.Vec3, len(motors))
			for i, m := range motors {
				opts.MotorPositions[i] = m.Position
			}
		}
	}
	g := &Group{
		Key:      key,
		Name:     name,
		Anchors:  anchors,
		Motors:   motors,
		Solver:   s,
		Options:  opts,
		pointIDs: ids,
	}
	g.SetStrength(strength)
	return g, nil
}

// PointIDs returns the contact point ids of the group in anchor order.
func (g *Group) PointIDs() []int {
	return g.pointIDs
}

// SetStrength sets the group's intensity slider in percent.
func (g *Group) SetStrength(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	g.strength.Store(int32(pct))
}

// Strength returns the group's intensity slider in percent.
func (g *Group) Strength() int {
	return int(g.strength.Load())
}

// Fresh reports whether the last tick found every point fresh.
func (g *Group) Fresh() bool {
	return g.fresh.Load()
}

// Status returns the externally visible state of the group.
func (g *Group) Status() types.GroupStatus {
	return types.GroupStatus{
		Key:      g.Key,
		Name:     g.Name,
		Solver:   g.Solver.Kind().String(),
		Points:   len(g.Anchors),
		Motors:   len(g.Motors),
		Strength: g.Strength(),
		Fresh:    g.Fresh(),
	}
}
