// Package model contains domain models passed between layers.
package model

import "gonum.org/v1/gonum/spatial/r3"

// Vec3 is a point or direction in a contact group's body-local frame.
// +Z points away from the body surface ("up"). The arithmetic is r3's;
// the struct only adds configuration and JSON tags.
type Vec3 struct {
	X float64 `json:"x" koanf:"x"`
	Y float64 `json:"y" koanf:"y"`
	Z float64 `json:"z" koanf:"z"`
}

// V3 builds a Vec3.
func V3(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

// FromR3 converts an r3 vector.
func FromR3(p r3.Vec) Vec3 { return Vec3(p) }

// R3 returns v as an r3 vector.
func (v Vec3) R3() r3.Vec { return r3.Vec(v) }

// Vec3FromSlice converts a [x, y, z] triple as found in configuration files.
// Missing components are zero.
func Vec3FromSlice(xyz []float64) Vec3 {
	var v Vec3
	if len(xyz) > 0 {
		v.X = xyz[0]
	}
	if len(xyz) > 1 {
		v.Y = xyz[1]
	}
	if len(xyz) > 2 {
		v.Z = xyz[2]
	}
	return v
}

func (v Vec3) Add(o Vec3) Vec3         { return FromR3(r3.Add(v.R3(), o.R3())) }
func (v Vec3) Sub(o Vec3) Vec3         { return FromR3(r3.Sub(v.R3(), o.R3())) }
func (v Vec3) Scale(s float64) Vec3    { return FromR3(r3.Scale(s, v.R3())) }
func (v Vec3) Dot(o Vec3) float64      { return r3.Dot(v.R3(), o.R3()) }
func (v Vec3) Norm() float64           { return r3.Norm(v.R3()) }
func (v Vec3) Distance(o Vec3) float64 { return r3.Norm(r3.Sub(v.R3(), o.R3())) }

// Cross returns v × o.
func (v Vec3) Cross(o Vec3) Vec3 { return FromR3(r3.Cross(v.R3(), o.R3())) }

// Unit returns v scaled to length 1, or the zero vector when v is zero.
func (v Vec3) Unit() Vec3 {
	if v == (Vec3{}) {
		return Vec3{}
	}
	return FromR3(r3.Unit(v.R3()))
}
