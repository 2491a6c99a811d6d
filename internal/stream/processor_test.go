package stream

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/orientation"
)

var t0 = time.Unix(1700000000, 0)

// walk builds n samples at 100Hz in device axes with forward on X, lateral
// on Y and gravity straight down Z.
func walk(n int, cadence, swayG float64) []motion.Sample {
	out := make([]motion.Sample, n)
	f := cadence / 60
	for i := range out {
		sec := float64(i) / 100
		out[i] = motion.Sample{
			Gravity: motion.Vec3{Z: -1},
			UserAccel: motion.Vec3{
				X: 1.1 * math.Sin(2*math.Pi*f*sec),
				Y: swayG * math.Sqrt2 * math.Sin(math.Pi*f*sec),
			},
			Time: t0.Add(time.Duration(i) * 10 * time.Millisecond),
		}
	}
	return out
}

func feed(p *Processor, samples []motion.Sample) (Snapshot, []gait.StepEvent) {
	var snap Snapshot
	var steps []gait.StepEvent
	for _, s := range samples {
		var ev *gait.StepEvent
		snap, ev = p.Process(s)
		if ev != nil {
			steps = append(steps, *ev)
		}
	}
	return snap, steps
}

func TestProcessorCadence(t *testing.T) {
	t.Parallel()

	p := NewProcessor(Config{})
	snap, steps := feed(p, walk(1000, 100, 0.05))

	assert.InDelta(t, 16, len(steps), 1)
	assert.InDelta(t, 100, snap.CadenceSPM, 3)
	assert.Equal(t, 1000, snap.Samples)
	assert.Equal(t, len(steps), snap.Steps)
	assert.False(t, snap.CalibrationOK)

	// lateral sign alternates between consecutive steps
	for i := 1; i < len(steps); i++ {
		assert.NotEqual(t, math.Signbit(steps[i-1].MediolateralG), math.Signbit(steps[i].MediolateralG), "step %d", i)
	}
}

func TestProcessorSwayRMS(t *testing.T) {
	t.Parallel()

	p := NewProcessor(Config{})
	snap, _ := feed(p, walk(1000, 100, 0.05))
	assert.InDelta(t, 0.05, snap.MLSwayRMS, 0.005)

	t.Run("window evicts oldest", func(t *testing.T) {
		p := NewProcessor(Config{SwayWindow: 10})
		var snap Snapshot
		for i := 0; i < 10; i++ {
			snap, _ = p.Process(motion.Sample{UserAccel: motion.Vec3{Y: 0.2}, Gravity: motion.Vec3{Z: -1}, Time: t0})
		}
		assert.InDelta(t, 0.2, snap.MLSwayRMS, 1e-12)
		for i := 0; i < 10; i++ {
			snap, _ = p.Process(motion.Sample{Gravity: motion.Vec3{Z: -1}, Time: t0})
		}
		assert.Zero(t, snap.MLSwayRMS)
	})
}

func TestProcessorRefractory(t *testing.T) {
	t.Parallel()

	p := NewProcessor(Config{})
	// two crossings 100ms apart, then one 600ms after the first
	fwd := map[int]float64{1: 1.0, 10: 1.0, 60: 1.0}
	var steps []gait.StepEvent
	for i := 0; i < 70; i++ {
		_, ev := p.Process(motion.Sample{
			UserAccel: motion.Vec3{X: fwd[i]},
			Gravity:   motion.Vec3{Z: -1},
			Time:      t0.Add(time.Duration(i) * 10 * time.Millisecond),
		})
		if ev != nil {
			steps = append(steps, *ev)
		}
	}
	require.Len(t, steps, 2)
	assert.Equal(t, t0.Add(10*time.Millisecond), steps[0].Time)
	assert.Equal(t, t0.Add(600*time.Millisecond), steps[1].Time)
}

func TestProcessorCadenceIgnoresLongGap(t *testing.T) {
	t.Parallel()

	p := NewProcessor(Config{})
	step := func(at time.Duration) Snapshot {
		p.Process(motion.Sample{Gravity: motion.Vec3{Z: -1}, Time: t0.Add(at - 10*time.Millisecond)})
		snap, ev := p.Process(motion.Sample{UserAccel: motion.Vec3{X: 1}, Gravity: motion.Vec3{Z: -1}, Time: t0.Add(at)})
		require.NotNil(t, ev)
		return snap
	}

	assert.Zero(t, step(time.Second).CadenceSPM)
	assert.InDelta(t, 120, step(1500*time.Millisecond).CadenceSPM, 1e-9)
	assert.InDelta(t, 120, step(5*time.Second).CadenceSPM, 1e-9, "3.5s gap must not change cadence")
	assert.InDelta(t, 60, step(6*time.Second).CadenceSPM, 1e-9)
}

func TestProcessorTilt(t *testing.T) {
	t.Parallel()

	tilted := motion.Vec3{Y: -math.Sin(math.Pi / 6), Z: -math.Cos(math.Pi / 6)}

	p := NewProcessor(Config{})
	snap, _ := p.Process(motion.Sample{Gravity: tilted, Time: t0})
	assert.InDelta(t, 30, snap.TiltDeg, 1e-9, "seeded by the first value")

	snap, _ = p.Process(motion.Sample{Gravity: motion.Vec3{Z: -1}, Time: t0})
	assert.InDelta(t, 30*(1-0.02), snap.TiltDeg, 1e-9)

	for i := 0; i < 2000; i++ {
		snap, _ = p.Process(motion.Sample{Gravity: motion.Vec3{Z: -1}, Time: t0})
	}
	assert.InDelta(t, 0, snap.TiltDeg, 1e-6)
}

func TestProcessorCalibration(t *testing.T) {
	t.Parallel()

	good := orientation.Quality{UpStability: 0.99, ForwardDominance: 0.9, SampleCount: 1000}
	// device +Z forward, +Y up
	bt := orientation.NewBodyTransform(r3.Vec{Z: 1}, r3.Vec{Y: 1}, orientation.SideLeft)

	t.Run("good calibration rotates", func(t *testing.T) {
		p := NewProcessor(Config{})
		p.SetCalibration(bt, good)
		require.True(t, p.CalibrationOK())

		p.Process(motion.Sample{Gravity: motion.Vec3{Y: -1}, Time: t0})
		snap, ev := p.Process(motion.Sample{
			Gravity:   motion.Vec3{Y: -1},
			UserAccel: motion.Vec3{Z: 1.0, X: 0.3},
			Time:      t0.Add(10 * time.Millisecond),
		})
		require.NotNil(t, ev)
		assert.True(t, snap.CalibrationOK)
		assert.InDelta(t, 0.3, math.Abs(ev.MediolateralG), 1e-9)
		assert.InDelta(t, 0, snap.TiltDeg, 1e-9)
	})

	t.Run("poor calibration stays in device axes", func(t *testing.T) {
		p := NewProcessor(Config{})
		p.SetCalibration(bt, orientation.Quality{UpStability: 0.5, ForwardDominance: 0.9, SampleCount: 1000})
		assert.False(t, p.CalibrationOK())
		snap, _ := p.Process(motion.Sample{Gravity: motion.Vec3{Y: -1}, Time: t0})
		assert.InDelta(t, 90, snap.TiltDeg, 1e-9)
	})

	t.Run("zero transform", func(t *testing.T) {
		p := NewProcessor(Config{})
		p.SetCalibration(orientation.BodyTransform{}, good)
		assert.False(t, p.CalibrationOK())
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	sub := hub.Subscribe(64)
	samples := walk(600, 100, 0.05)

	_, want := feed(NewProcessor(Config{}), samples)
	require.NotEmpty(t, want)

	errc := make(chan error, 1)
	go func() {
		errc <- Run(context.Background(), NewProcessor(Config{}), motion.NewReplaySource(samples), hub)
	}()

	var got []gait.StepEvent
	for ev := range sub.Steps {
		got = append(got, ev)
	}
	require.NoError(t, <-errc)
	assert.Equal(t, want, got)

	last, ok := <-sub.Snapshots
	if ok {
		assert.Equal(t, 600, last.Samples)
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub := NewHub()
	sub := hub.Subscribe(1)
	err := Run(ctx, NewProcessor(Config{}), motion.NewReplaySource(walk(10, 100, 0)), hub)
	assert.ErrorIs(t, err, context.Canceled)

	_, ok := <-sub.Steps
	assert.False(t, ok, "hub closed on return")
}
