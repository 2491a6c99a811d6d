// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/gait_computer/internal/motion"
)

// MinCalibrationSamples is the floor below which a capture is rejected.
const MinCalibrationSamples = 10

// ErrInsufficientSamples is returned when a capture ended with fewer than
// MinCalibrationSamples samples.
var ErrInsufficientSamples = errors.New("orientation: insufficient samples for calibration")

// Result is the outcome of a calibration capture.
type Result struct {
	Transform BodyTransform
	Quality   Quality
	Side      Side
	Hz        float64
}

// Calibrator estimates the body frame from a walking capture. Gravity is
// averaged to find up; the horizontal user acceleration is accumulated into
// a 2x2 covariance whose principal axis is the walking direction.
//
// A Calibrator is not safe for concurrent use.
type Calibrator struct {
	hz   float64
	side Side

	n           int
	meanGravity r3.Vec

	// running sums of the horizontal projection
	sx, sy, sxx, sxy, syy float64
}

// NewCalibrator returns a calibrator for a capture at hz samples/second.
func NewCalibrator(hz float64, side Side) *Calibrator {
	return &Calibrator{hz: hz, side: side}
}

// Count returns the number of samples accumulated so far.
func (c *Calibrator) Count() int { return c.n }

// Add accumulates one sample.
func (c *Calibrator) Add(s motion.Sample) {
	c.n++
	g := s.Gravity.R3()
	c.meanGravity = r3.Add(c.meanGravity, r3.Scale(1/float64(c.n), r3.Sub(g, c.meanGravity)))

	up := unitOr(r3.Scale(-1, c.meanGravity), r3.Vec{Z: 1})
	h1, h2 := horizontalBasis(up)

	a := s.UserAccel.R3()
	x, y := r3.Dot(a, h1), r3.Dot(a, h2)
	c.sx += x
	c.sy += y
	c.sxx += x * x
	c.sxy += x * y
	c.syy += y * y
}

// Finish solves for the body frame. With fewer than MinCalibrationSamples
// it returns ErrInsufficientSamples with a zero transform and a zero
// Quality.
func (c *Calibrator) Finish() (Result, error) {
	if c.n < MinCalibrationSamples {
		return Result{Side: c.side, Hz: c.hz}, ErrInsufficientSamples
	}

	up := unitOr(r3.Scale(-1, c.meanGravity), r3.Vec{Z: 1})
	h1, h2 := horizontalBasis(up)

	n := float64(c.n)
	mx, my := c.sx/n, c.sy/n
	a := c.sxx/n - mx*mx
	b := c.sxy/n - mx*my
	d := c.syy/n - my*my

	l1, l2, ex, ey := principalAxis(a, b, d)
	forward := r3.Add(r3.Scale(ex, h1), r3.Scale(ey, h2))

	dominance := 0.0
	if denom := l1 + math.Max(l2, 0); denom > 0 {
		dominance = l1 / denom
	}

	duration := 0.0
	if c.hz > 0 {
		duration = n / c.hz
	}

	return Result{
		Transform: NewBodyTransform(forward, up, c.side),
		Quality: Quality{
			DurationSeconds:  duration,
			SampleCount:      c.n,
			UpStability:      clamp01(r3.Norm(c.meanGravity)),
			ForwardDominance: clamp01(dominance),
		},
		Side: c.side,
		Hz:   c.hz,
	}, nil
}

// principalAxis returns the eigenvalues (λ1 ≥ λ2) of the symmetric matrix
// [[a b] [b d]] and the unit eigenvector of λ1, solved in closed form.
// A zero-length eigenvector falls back to (1, 0).
func principalAxis(a, b, d float64) (l1, l2, ex, ey float64) {
	half := (a + d) / 2
	det := a*d - b*b
	disc := math.Sqrt(math.Max(half*half-det, 0))
	l1, l2 = half+disc, half-disc

	// (A - λ1 I) v = 0 has two equivalent row forms; use the longer one.
	vx, vy := l1-d, b
	if wx, wy := b, l1-a; math.Hypot(wx, wy) > math.Hypot(vx, vy) {
		vx, vy = wx, wy
	}
	norm := math.Hypot(vx, vy)
	if norm < 1e-12 || math.IsNaN(norm) {
		return l1, l2, 1, 0
	}
	return l1, l2, vx / norm, vy / norm
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
