package motion

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// GravitySplitter separates a total-acceleration reading (what a bare
// accelerometer reports) into a gravity estimate and user acceleration with
// a first-order low-pass filter.
type GravitySplitter struct {
	alpha   float64
	gravity r3.Vec
	primed  bool
}

// NewGravitySplitter returns a splitter with smoothing factor alpha in (0,1].
// Smaller alpha tracks gravity more slowly.
func NewGravitySplitter(alpha float64) *GravitySplitter {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &GravitySplitter{alpha: alpha}
}

// Split consumes one total-acceleration reading in g.
func (g *GravitySplitter) Split(total r3.Vec, t time.Time) Sample {
	if !g.primed {
		g.gravity = total
		g.primed = true
	} else {
		g.gravity = r3.Add(g.gravity, r3.Scale(g.alpha, r3.Sub(total, g.gravity)))
	}
	return Sample{
		Gravity:   FromR3(g.gravity),
		UserAccel: FromR3(r3.Sub(total, g.gravity)),
		Time:      t,
	}
}
