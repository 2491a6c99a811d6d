package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccel struct {
	x, y, z int16
	err     error
}

func (f *fakeAccel) GetAccelerationX() (int16, error) { return f.x, f.err }
func (f *fakeAccel) GetAccelerationY() (int16, error) { return f.y, nil }
func (f *fakeAccel) GetAccelerationZ() (int16, error) { return f.z, nil }

func TestIMUSourceScalesAndSplits(t *testing.T) {
	// ±4 g: 8192 counts per g, device resting with +Y up.
	src, err := NewIMUSource(&fakeAccel{y: 8192}, 1, 1000, 0.1)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s, err := src.Next(ctx)
		require.NoError(t, err)
		assert.InDelta(t, -1, s.Gravity.Y, 1e-9)
		assert.InDelta(t, 0, s.UserAccel.Y, 1e-9)
		assert.False(t, s.Time.IsZero())
	}
}

func TestIMUSourceErrors(t *testing.T) {
	_, err := NewIMUSource(&fakeAccel{}, 4, 100, 0.1)
	assert.Error(t, err)
	_, err = NewIMUSource(&fakeAccel{}, 0, 0, 0.1)
	assert.Error(t, err)

	boom := errors.New("spi")
	src, err := NewIMUSource(&fakeAccel{err: boom}, 0, 1000, 0.1)
	require.NoError(t, err)
	defer src.Close()
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	slow, err := NewIMUSource(&fakeAccel{}, 0, 0.01, 0.1)
	require.NoError(t, err)
	defer slow.Close()
	_, err = slow.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRangeG(t *testing.T) {
	assert.Equal(t, []int{2, 4, 8, 16}, []int{rangeG(0), rangeG(1), rangeG(2), rangeG(3)})
}
