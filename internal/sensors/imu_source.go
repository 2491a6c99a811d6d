// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/gait_computer/internal/motion"
)

// AccelReader is the part of the MPU9250 driver the source needs.
type AccelReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
}

// IMUSource polls an accelerometer at a fixed rate and turns each reading
// into a motion.Sample.
type IMUSource struct {
	dev       AccelReader
	countsPer float64 // raw counts per g
	period    time.Duration
	split     *motion.GravitySplitter
	now       func() time.Time

	ticker *time.Ticker
}

// NewIMUSource polls dev at hz. alpha is the gravity low-pass factor.
func NewIMUSource(dev AccelReader, accelRange byte, hz, alpha float64) (*IMUSource, error) {
	if hz <= 0 {
		return nil, fmt.Errorf("IMU: invalid sample rate %v", hz)
	}
	if accelRange > 3 {
		return nil, fmt.Errorf("IMU: accel range %d out of 0..3", accelRange)
	}
	return &IMUSource{
		dev:       dev,
		countsPer: 32768 / float64(rangeG(accelRange)),
		period:    time.Duration(float64(time.Second) / hz),
		split:     motion.NewGravitySplitter(alpha),
		now:       time.Now,
	}, nil
}

// Next waits for the next tick and reads one sample. The chip reports the
// reaction to gravity (+1 g up at rest); samples use the opposite sign so
// that gravity points down, like phone motion APIs.
func (s *IMUSource) Next(ctx context.Context) (motion.Sample, error) {
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.period)
	}
	select {
	case <-ctx.Done():
		return motion.Sample{}, ctx.Err()
	case <-s.ticker.C:
	}

	raw, err := s.read()
	if err != nil {
		return motion.Sample{}, err
	}
	total := r3.Scale(-1/s.countsPer, raw)
	return s.split.Split(total, s.now()), nil
}

func (s *IMUSource) read() (r3.Vec, error) {
	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return r3.Vec{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return r3.Vec{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return r3.Vec{}, fmt.Errorf("IMU accel Z: %w", err)
	}
	return r3.Vec{X: float64(ax), Y: float64(ay), Z: float64(az)}, nil
}

// Close stops the poll ticker.
func (s *IMUSource) Close() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
}
