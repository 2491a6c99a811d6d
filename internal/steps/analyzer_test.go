package steps

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gait_computer/internal/gait"
)

var t0 = time.Unix(1700000000, 0)

// stepper emits events separated by the given intervals.
type stepper struct {
	a   *Analyzer
	now time.Time
}

func newStepper() *stepper {
	s := &stepper{a: NewAnalyzer(), now: t0}
	s.a.Add(gait.StepEvent{Time: s.now})
	return s
}

func (s *stepper) step(interval time.Duration, ml float64) bool {
	s.now = s.now.Add(interval)
	return s.a.Add(gait.StepEvent{Time: s.now, MediolateralG: ml})
}

func TestAnalyzerAlternatingIsSymmetric(t *testing.T) {
	t.Parallel()

	s := newStepper()
	for i := 0; i < 20; i++ {
		ml := 0.2
		if i%2 == 1 {
			ml = -0.2
		}
		require.True(t, s.step(550*time.Millisecond, ml))
	}

	st := s.a.Stats()
	assert.Equal(t, 20, st.Intervals)
	assert.Equal(t, 10, st.LeftCount)
	assert.Equal(t, 10, st.RightCount)
	assert.InDelta(t, 0.55, st.AvgStepTime, 1e-9)
	assert.InDelta(t, 0, st.StepTimeCV, 1e-9)
	assert.InDelta(t, 0, st.AsymStepTimePct, 1e-9)
}

func TestAnalyzerAsymmetry(t *testing.T) {
	t.Parallel()

	s := newStepper()
	for i := 0; i < 10; i++ {
		s.step(600*time.Millisecond, 0.1)
		s.step(400*time.Millisecond, -0.1)
	}
	// |0.6-0.4| / 0.5 = 40%
	assert.InDelta(t, 40, s.a.Stats().AsymStepTimePct, 1e-6)
}

func TestAnalyzerOneSidedReportsZeroAsymmetry(t *testing.T) {
	t.Parallel()

	s := newStepper()
	for i := 0; i < 12; i++ {
		s.step(time.Duration(500+10*i)*time.Millisecond, 0.3)
	}
	st := s.a.Stats()
	assert.Equal(t, 12, st.LeftCount)
	assert.Zero(t, st.RightCount)
	assert.Zero(t, st.AsymStepTimePct)
}

func TestAnalyzerCV(t *testing.T) {
	t.Parallel()

	s := newStepper()
	intervals := []time.Duration{500, 600, 500, 600}
	for _, ms := range intervals {
		s.step(ms*time.Millisecond, 0.2)
	}
	assert.Zero(t, s.a.Stats().StepTimeCV, "fewer than 5 intervals")

	s.step(550*time.Millisecond, 0.2)
	// values 0.5 0.6 0.5 0.6 0.55: mean 0.55, sample sd 0.05
	st := s.a.Stats()
	assert.InDelta(t, 0.55, st.AvgStepTime, 1e-9)
	assert.InDelta(t, 0.05/0.55, st.StepTimeCV, 1e-9)
}

func TestAnalyzerRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	s := newStepper()
	require.True(t, s.step(500*time.Millisecond, 0.2))

	t.Run("double count is ignored", func(t *testing.T) {
		assert.False(t, s.step(100*time.Millisecond, -0.2))
		assert.Equal(t, 1, s.a.Stats().Intervals)
		// timing still runs from the last real step
		assert.True(t, s.step(400*time.Millisecond, -0.2))
		assert.InDelta(t, 0.5, s.a.Intervals()[1], 1e-9)
	})

	t.Run("pause restarts timing", func(t *testing.T) {
		before := s.a.Stats()
		assert.False(t, s.step(3*time.Second, 0.2))
		assert.Equal(t, before, s.a.Stats())
		assert.True(t, s.step(500*time.Millisecond, -0.2))
	})

	assert.Equal(t, 2, s.a.Dropped())
}

func TestAnalyzerBoundaries(t *testing.T) {
	t.Parallel()

	s := newStepper()
	assert.True(t, s.step(250*time.Millisecond, 0.2))
	assert.True(t, s.step(1600*time.Millisecond, 0.2))
	assert.False(t, s.step(1601*time.Millisecond, 0.2))
}

func TestAnalyzerDeadbandKeepsLabel(t *testing.T) {
	t.Parallel()

	s := newStepper()
	s.step(500*time.Millisecond, -0.2)
	assert.Equal(t, Right, s.a.Label())

	s.step(500*time.Millisecond, 0.005)
	assert.Equal(t, Right, s.a.Label())
	s.step(500*time.Millisecond, -0.01)
	assert.Equal(t, Right, s.a.Label())
	assert.Equal(t, 3, s.a.Stats().RightCount)

	s.step(500*time.Millisecond, 0.011)
	assert.Equal(t, Left, s.a.Label())
	assert.Equal(t, "left", s.a.Label().String())
}

func TestAnalyzerUnlabelledStart(t *testing.T) {
	t.Parallel()

	s := newStepper()
	s.step(500*time.Millisecond, 0)
	st := s.a.Stats()
	assert.Equal(t, 1, st.Intervals)
	assert.Zero(t, st.LeftCount+st.RightCount)
	assert.Equal(t, Unknown, s.a.Label())
}

func TestAnalyzerWindowsAreBounded(t *testing.T) {
	t.Parallel()

	s := newStepper()
	for i := 0; i < 200; i++ {
		ml := 0.2
		if i%2 == 1 {
			ml = -0.2
		}
		s.step(time.Duration(300+i)*time.Millisecond, ml)
	}
	st := s.a.Stats()
	assert.Equal(t, allCapacity, st.Intervals)
	assert.Equal(t, sideCapacity, st.LeftCount)
	assert.Equal(t, sideCapacity, st.RightCount)

	got := s.a.Intervals()
	assert.InDelta(t, 0.420, got[0], 1e-9, "oldest retained is the 121st interval")
	assert.InDelta(t, 0.499, got[len(got)-1], 1e-9)
	assert.False(t, math.IsNaN(st.StepTimeCV))
}
