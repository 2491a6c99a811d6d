package gps

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

const (
	speedWindow = 30
	// Faster than this is not walking (cycling, transit, GPS jumps).
	maxWalkingMps = 3.0
)

// SpeedTracker keeps the last few walking speeds from valid fixes. It is
// safe for concurrent use: the GPS loop adds, the recorder reads.
type SpeedTracker struct {
	mu     sync.Mutex
	speeds []float64
}

func NewSpeedTracker() *SpeedTracker {
	return &SpeedTracker{speeds: make([]float64, 0, speedWindow)}
}

// Add records f if it is valid and at walking pace. It reports whether the
// fix was used.
func (t *SpeedTracker) Add(f Fix) bool {
	v := f.SpeedMps()
	if !f.Valid() || v < 0 || v > maxWalkingMps {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.speeds) == speedWindow {
		copy(t.speeds, t.speeds[1:])
		t.speeds = t.speeds[:speedWindow-1]
	}
	t.speeds = append(t.speeds, v)
	return true
}

// MeanSpeed returns the mean of the window, false when empty.
func (t *SpeedTracker) MeanSpeed() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.speeds) == 0 {
		return 0, false
	}
	return stat.Mean(t.speeds, nil), true
}

// Reset empties the window, e.g. at the start of a session.
func (t *SpeedTracker) Reset() {
	t.mu.Lock()
	t.speeds = t.speeds[:0]
	t.mu.Unlock()
}
