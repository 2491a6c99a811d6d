// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// MockConfig shapes the synthetic walk produced by NewMockSource.
type MockConfig struct {
	Hz         float64 // sample rate
	CadenceSPM float64 // steps per minute
	ForwardG   float64 // peak forward acceleration, g
	SwayG      float64 // RMS mediolateral acceleration, g
	VerticalG  float64 // peak vertical bounce, g
	Paced      bool    // deliver in real time instead of as fast as possible
	Start      time.Time
}

// DefaultMockConfig is a steady 100 spm walk at 100Hz.
var DefaultMockConfig = MockConfig{
	Hz:         100,
	CadenceSPM: 100,
	ForwardG:   1.1,
	SwayG:      0.05,
	VerticalG:  0.3,
}

type mockSource struct {
	cfg    MockConfig
	n      int
	ticker *time.Ticker
}

// NewMockSource creates a source that generates a smooth walking pattern.
// The phone is modelled upright in a trouser pocket: body forward maps to
// device +Z, subject's left to device +X and up to device +Y.
func NewMockSource(cfg MockConfig) Source {
	if cfg.Hz <= 0 {
		cfg.Hz = DefaultMockConfig.Hz
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}
	m := &mockSource{cfg: cfg}
	if cfg.Paced {
		m.ticker = time.NewTicker(time.Duration(float64(time.Second) / cfg.Hz))
	}
	return m
}

// pocketToDevice maps body (forward, left, up) into device axes.
func pocketToDevice(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.Y, Y: v.Z, Z: v.X}
}

func (m *mockSource) Next(ctx context.Context) (Sample, error) {
	if m.ticker != nil {
		select {
		case <-ctx.Done():
			m.ticker.Stop()
			return Sample{}, ctx.Err()
		case <-m.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	elapsed := float64(m.n) / m.cfg.Hz
	m.n++

	// One forward peak per step; the lateral shift alternates at stride
	// frequency so successive steps land on opposite sides.
	stepHz := m.cfg.CadenceSPM / 60.0
	body := r3.Vec{
		X: m.cfg.ForwardG * math.Sin(2*math.Pi*stepHz*elapsed),
		Y: m.cfg.SwayG * math.Sqrt2 * math.Sin(math.Pi*stepHz*elapsed),
		Z: m.cfg.VerticalG * math.Sin(2*math.Pi*stepHz*elapsed+math.Pi/2),
	}

	return Sample{
		Gravity:   FromR3(pocketToDevice(r3.Vec{Z: -1})),
		UserAccel: FromR3(pocketToDevice(body)),
		Time:      m.cfg.Start.Add(time.Duration(math.Round(elapsed * float64(time.Second)))),
	}, nil
}
