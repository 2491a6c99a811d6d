// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Side is the pocket the device is carried in. It decides the sign of the
// mediolateral axis so that positive ML always means the subject's left.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// degenerateNorm is the length below which a vector is treated as zero.
const degenerateNorm = 1e-6

var (
	refAxis    = r3.Vec{Z: 1}
	altRefAxis = r3.Vec{X: 1}
)

// BodyTransform maps device coordinates into the body frame. Rows are the
// forward, mediolateral and up unit vectors expressed in device axes.
//
// A BodyTransform is immutable; recalibration builds a new one.
type BodyTransform struct {
	forward r3.Vec
	ml      r3.Vec
	up      r3.Vec
}

// Identity is the pass-through transform used when no calibration exists.
var Identity = BodyTransform{
	forward: r3.Vec{X: 1},
	ml:      r3.Vec{Y: 1},
	up:      r3.Vec{Z: 1},
}

// NewBodyTransform builds an orthonormal transform from a forward estimate
// and an up estimate. Forward is Gram-Schmidt projected off up, ML is
// up × forward (negated for the right pocket) and forward is re-derived.
func NewBodyTransform(forward, up r3.Vec, side Side) BodyTransform {
	sign := 1.0
	if side == SideRight {
		sign = -1
	}
	return orthonormalize(forward, up, sign)
}

func orthonormalize(forward, up r3.Vec, mlSign float64) BodyTransform {
	u := unitOr(up, r3.Vec{Z: 1})

	f := r3.Sub(forward, r3.Scale(r3.Dot(forward, u), u))
	if r3.Norm(f) < degenerateNorm {
		f = horizontalReference(u)
	}
	f = r3.Unit(f)

	left := r3.Unit(r3.Cross(u, f))
	f = r3.Unit(r3.Cross(left, u))

	return BodyTransform{
		forward: f,
		ml:      r3.Scale(mlSign, left),
		up:      u,
	}
}

// Orthonormalize rebuilds the basis from its forward and up rows, keeping
// the ML orientation. Applying it to an already orthonormal transform
// returns the same transform.
func (t BodyTransform) Orthonormalize() BodyTransform {
	sign := 1.0
	if r3.Dot(t.ml, r3.Cross(t.up, t.forward)) < 0 {
		sign = -1
	}
	return orthonormalize(t.forward, t.up, sign)
}

// IsZero reports whether t is the zero value, i.e. no calibration.
func (t BodyTransform) IsZero() bool {
	return t == BodyTransform{}
}

// Forward, Mediolateral and Up return the basis rows.
func (t BodyTransform) Forward() r3.Vec      { return t.forward }
func (t BodyTransform) Mediolateral() r3.Vec { return t.ml }
func (t BodyTransform) Up() r3.Vec           { return t.up }

// Apply rotates a device-frame vector into the body frame:
// X is forward, Y is mediolateral (positive left), Z is up.
func (t BodyTransform) Apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: r3.Dot(t.forward, v),
		Y: r3.Dot(t.ml, v),
		Z: r3.Dot(t.up, v),
	}
}

// Matrix returns the rows as a row-major 3x3 array.
func (t BodyTransform) Matrix() [9]float64 {
	return [9]float64{
		t.forward.X, t.forward.Y, t.forward.Z,
		t.ml.X, t.ml.Y, t.ml.Z,
		t.up.X, t.up.Y, t.up.Z,
	}
}

// horizontalBasis returns two unit vectors orthogonal to u and to each
// other. The fixed reference axis is swapped when it is nearly parallel
// to u.
func horizontalBasis(u r3.Vec) (h1, h2 r3.Vec) {
	h1 = horizontalReference(u)
	h2 = r3.Unit(r3.Cross(u, h1))
	return h1, h2
}

func horizontalReference(u r3.Vec) r3.Vec {
	c := r3.Cross(u, refAxis)
	if r3.Norm(c) < 1e-3 {
		c = r3.Cross(u, altRefAxis)
	}
	return r3.Unit(c)
}

func unitOr(v, fallback r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < degenerateNorm || math.IsNaN(n) {
		return fallback
	}
	return r3.Scale(1/n, v)
}
