package stream

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ring is a fixed-capacity float window. Once full, each push evicts the
// oldest value.
type ring struct {
	buf  []float64
	next int
	full bool
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// values returns the filled part of the buffer; order is not preserved.
func (r *ring) values() []float64 {
	return r.buf[:r.len()]
}

func (r *ring) rms() float64 {
	v := r.values()
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(v, v) / float64(len(v)))
}
