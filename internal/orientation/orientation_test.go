package orientation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/gait_computer/internal/motion"
)

const tol = 1e-9

func assertOrthonormal(t *testing.T, bt BodyTransform) {
	t.Helper()
	axes := []r3.Vec{bt.Forward(), bt.Mediolateral(), bt.Up()}
	for i, a := range axes {
		assert.InDelta(t, 1.0, r3.Norm(a), tol, "axis %d not unit length", i)
		for j := i + 1; j < len(axes); j++ {
			assert.InDelta(t, 0.0, r3.Dot(a, axes[j]), tol, "axes %d,%d not orthogonal", i, j)
		}
	}
}

func TestNewBodyTransformOrthonormal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		forward, up r3.Vec
	}{
		{"aligned", r3.Vec{X: 1}, r3.Vec{Z: 1}},
		{"skewed", r3.Vec{X: 1, Y: 0.3, Z: 0.4}, r3.Vec{X: 0.1, Y: 0.2, Z: 0.9}},
		{"pocket", r3.Vec{Z: 2}, r3.Vec{Y: 1}},
		{"forward parallel to up", r3.Vec{Z: 1}, r3.Vec{Z: 1}},
		{"zero forward", r3.Vec{}, r3.Vec{X: -0.2, Y: 0.9}},
		{"zero up", r3.Vec{X: 1}, r3.Vec{}},
	}
	for _, tc := range cases {
		for _, side := range []Side{SideLeft, SideRight} {
			bt := NewBodyTransform(tc.forward, tc.up, side)
			t.Run(tc.name+"/"+string(side), func(t *testing.T) {
				assertOrthonormal(t, bt)
			})
		}
	}
}

func TestOrthonormalizeIdempotent(t *testing.T) {
	t.Parallel()

	for _, side := range []Side{SideLeft, SideRight} {
		bt := NewBodyTransform(r3.Vec{X: 0.7, Y: -0.2, Z: 0.4}, r3.Vec{X: 0.05, Y: 0.98, Z: 0.1}, side)
		again := bt.Orthonormalize()
		a, b := bt.Matrix(), again.Matrix()
		for i := range a {
			assert.InDelta(t, a[i], b[i], tol)
		}
		c := again.Orthonormalize().Matrix()
		assert.InDeltaSlice(t, a[:], c[:], tol)
	}
}

func TestSideFlipsMediolateral(t *testing.T) {
	t.Parallel()

	left := NewBodyTransform(r3.Vec{X: 1}, r3.Vec{Z: 1}, SideLeft)
	right := NewBodyTransform(r3.Vec{X: 1}, r3.Vec{Z: 1}, SideRight)

	assert.InDelta(t, 1.0, left.Mediolateral().Y, tol)
	assert.InDelta(t, -1.0, right.Mediolateral().Y, tol)
	assert.Equal(t, left.Forward(), right.Forward())
}

func TestApply(t *testing.T) {
	t.Parallel()

	// device +Z forward, +Y up
	bt := NewBodyTransform(r3.Vec{Z: 1}, r3.Vec{Y: 1}, SideLeft)
	got := bt.Apply(r3.Vec{X: 0.1, Y: -1, Z: 0.5})
	assert.InDelta(t, 0.5, got.X, tol)
	assert.InDelta(t, -1.0, got.Z, tol)
	assert.InDelta(t, 0.1, math.Abs(got.Y), tol)
}

func TestPrincipalAxis(t *testing.T) {
	t.Parallel()

	t.Run("diagonal", func(t *testing.T) {
		l1, l2, ex, ey := principalAxis(4, 0, 1)
		assert.InDelta(t, 4.0, l1, tol)
		assert.InDelta(t, 1.0, l2, tol)
		assert.InDelta(t, 1.0, math.Abs(ex), tol)
		assert.InDelta(t, 0.0, ey, tol)
	})

	t.Run("rotated", func(t *testing.T) {
		// eigenvalues 3 and 1 along (1,1)/√2 and (1,-1)/√2
		l1, l2, ex, ey := principalAxis(2, 1, 2)
		assert.InDelta(t, 3.0, l1, tol)
		assert.InDelta(t, 1.0, l2, tol)
		assert.InDelta(t, ex, ey, tol)
		assert.InDelta(t, 1.0, math.Hypot(ex, ey), tol)
	})

	t.Run("zero matrix falls back", func(t *testing.T) {
		l1, l2, ex, ey := principalAxis(0, 0, 0)
		assert.Zero(t, l1)
		assert.Zero(t, l2)
		assert.Equal(t, 1.0, ex)
		assert.Equal(t, 0.0, ey)
	})
}

func constantSamples(n int) []motion.Sample {
	start := time.Unix(1700000000, 0)
	out := make([]motion.Sample, n)
	for i := range out {
		out[i] = motion.Sample{
			Gravity: motion.Vec3{Z: -1},
			Time:    start.Add(time.Duration(i) * 10 * time.Millisecond),
		}
	}
	return out
}

func TestCalibratorStillDevice(t *testing.T) {
	t.Parallel()

	for _, n := range []int{10, 50, 400} {
		cal := NewCalibrator(100, SideLeft)
		for _, s := range constantSamples(n) {
			cal.Add(s)
		}
		res, err := cal.Finish()
		require.NoError(t, err)

		assert.Equal(t, n, res.Quality.SampleCount)
		assert.InDelta(t, 1.0, res.Quality.UpStability, tol)
		assert.InDelta(t, float64(n)/100, res.Quality.DurationSeconds, tol)
		assert.False(t, math.IsNaN(res.Quality.ForwardDominance))
		assert.False(t, res.Quality.IsGood())
		assertOrthonormal(t, res.Transform)
		assert.InDelta(t, 1.0, res.Transform.Up().Z, tol)
	}
}

func TestCalibratorInsufficientSamples(t *testing.T) {
	t.Parallel()

	cal := NewCalibrator(100, SideLeft)
	for _, s := range constantSamples(MinCalibrationSamples - 1) {
		cal.Add(s)
	}
	res, err := cal.Finish()
	require.ErrorIs(t, err, ErrInsufficientSamples)
	assert.True(t, res.Transform.IsZero())
	assert.Equal(t, Quality{}, res.Quality)
}

func TestCalibratorWalking(t *testing.T) {
	t.Parallel()

	cfg := motion.DefaultMockConfig
	cfg.Start = time.Unix(1700000000, 0)
	src := motion.NewMockSource(cfg)

	res, err := Capture(context.Background(), src, CaptureConfig{Hz: 100, Seconds: 10, Side: SideLeft}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1000, res.Quality.SampleCount)
	assert.True(t, res.Quality.IsGood(), "quality %+v", res.Quality)
	assertOrthonormal(t, res.Transform)

	// mock walks along device Z with device Y up
	assert.InDelta(t, 1.0, res.Transform.Up().Y, 1e-6)
	assert.InDelta(t, 1.0, math.Abs(res.Transform.Forward().Z), 1e-3)
}

func TestCaptureStopsEarly(t *testing.T) {
	t.Parallel()

	t.Run("source ends", func(t *testing.T) {
		src := motion.NewReplaySource(constantSamples(42))
		var last float64
		res, err := Capture(context.Background(), src, CaptureConfig{Hz: 100, Seconds: 5}, func(f float64) { last = f })
		require.NoError(t, err)
		assert.Equal(t, 42, res.Quality.SampleCount)
		assert.InDelta(t, 42.0/500, last, tol)
	})

	t.Run("cancelled before floor", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Capture(ctx, motion.NewReplaySource(constantSamples(100)), CaptureConfig{Hz: 100, Seconds: 5}, nil)
		assert.ErrorIs(t, err, ErrInsufficientSamples)
	})

	t.Run("invalid window", func(t *testing.T) {
		_, err := Capture(context.Background(), motion.NewReplaySource(nil), CaptureConfig{}, nil)
		assert.Error(t, err)
	})
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	bt := NewBodyTransform(r3.Vec{X: 0.2, Z: 1}, r3.Vec{Y: 1, X: 0.1}, SideRight)
	back := FromRecord(bt.Record())
	want, got := bt.Matrix(), back.Matrix()
	assert.InDeltaSlice(t, want[:], got[:], tol)

	res := Result{Quality: Quality{UpStability: 0.95, ForwardDominance: 0.7, DurationSeconds: 12}, Hz: 100}
	assert.Equal(t, QualityRecord{Confidence: 0.7, Hz: 100, DurationSec: 12}, res.QualityRecord())
}
