// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stream turns live motion samples into body-frame gait signals:
// steps, cadence, lateral sway and trunk tilt.
package stream

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/orientation"
)

// Config tunes the processor. Zero fields take DefaultConfig values.
type Config struct {
	SwayWindow     int           // samples in the ML RMS window
	TiltAlpha      float64       // EMA smoothing for tilt
	StepThresholdG float64       // forward acceleration rising-edge threshold
	Refractory     time.Duration // minimum time between steps
	MinInterval    time.Duration // step intervals accepted for cadence
	MaxInterval    time.Duration
	MaxCadenceSPM  float64
}

// DefaultConfig is tuned for 100Hz phone motion.
var DefaultConfig = Config{
	SwayWindow:     300,
	TiltAlpha:      0.02,
	StepThresholdG: 0.9,
	Refractory:     250 * time.Millisecond,
	MinInterval:    250 * time.Millisecond,
	MaxInterval:    2 * time.Second,
	MaxCadenceSPM:  200,
}

func (c Config) withDefaults() Config {
	d := DefaultConfig
	if c.SwayWindow > 0 {
		d.SwayWindow = c.SwayWindow
	}
	if c.TiltAlpha > 0 {
		d.TiltAlpha = c.TiltAlpha
	}
	if c.StepThresholdG > 0 {
		d.StepThresholdG = c.StepThresholdG
	}
	if c.Refractory > 0 {
		d.Refractory = c.Refractory
	}
	if c.MinInterval > 0 {
		d.MinInterval = c.MinInterval
	}
	if c.MaxInterval > 0 {
		d.MaxInterval = c.MaxInterval
	}
	if c.MaxCadenceSPM > 0 {
		d.MaxCadenceSPM = c.MaxCadenceSPM
	}
	return d
}

// Snapshot is an immutable copy of the live outputs after one sample.
type Snapshot struct {
	Time          time.Time `json:"time"`
	CadenceSPM    float64   `json:"cadence_spm"`
	MLSwayRMS     float64   `json:"ml_sway_rms"`
	TiltDeg       float64   `json:"tilt_deg"`
	CalibrationOK bool      `json:"calibration_ok"`
	Samples       int       `json:"samples"`
	Steps         int       `json:"steps"`
}

// Processor holds all per-stream state. It must only be driven from one
// goroutine; readers get Snapshots, never the live buffers.
type Processor struct {
	cfg Config

	transform orientation.BodyTransform
	calOK     bool

	sway *ring

	tilt       float64
	tiltPrimed bool

	prevForward   float64
	forwardPrimed bool
	lastStep      time.Time
	cadence       float64

	samples int
	steps   int
}

// NewProcessor returns a processor running in degraded (device axes) mode
// until SetCalibration supplies a good transform.
func NewProcessor(cfg Config) *Processor {
	cfg = cfg.withDefaults()
	return &Processor{
		cfg:  cfg,
		sway: newRing(cfg.SwayWindow),
	}
}

// SetCalibration installs a transform and its quality. A transform whose
// quality is not good is ignored for rotation and reported as not OK.
func (p *Processor) SetCalibration(t orientation.BodyTransform, q orientation.Quality) {
	p.transform = t
	p.calOK = !t.IsZero() && q.IsGood()
}

// CalibrationOK reports whether samples are being rotated into the body frame.
func (p *Processor) CalibrationOK() bool { return p.calOK }

func (p *Processor) toBody(v r3.Vec) r3.Vec {
	if !p.calOK {
		return v
	}
	return p.transform.Apply(v)
}

// Process consumes one sample. It returns the updated snapshot and, when
// a step was detected on this sample, the step event.
func (p *Processor) Process(s motion.Sample) (Snapshot, *gait.StepEvent) {
	p.samples++
	accel := p.toBody(s.UserAccel.R3())
	grav := p.toBody(s.Gravity.R3())

	p.sway.push(accel.Y)

	tilt := tiltDegrees(grav)
	if !p.tiltPrimed {
		p.tilt = tilt
		p.tiltPrimed = true
	} else {
		p.tilt += p.cfg.TiltAlpha * (tilt - p.tilt)
	}

	var step *gait.StepEvent
	fwd := accel.X
	rising := p.forwardPrimed && p.prevForward < p.cfg.StepThresholdG && fwd >= p.cfg.StepThresholdG
	p.prevForward = fwd
	p.forwardPrimed = true

	if rising && (p.lastStep.IsZero() || s.Time.Sub(p.lastStep) >= p.cfg.Refractory) {
		step = &gait.StepEvent{Time: s.Time, MediolateralG: accel.Y}
		p.steps++
		if !p.lastStep.IsZero() {
			interval := s.Time.Sub(p.lastStep)
			if interval >= p.cfg.MinInterval && interval <= p.cfg.MaxInterval {
				p.cadence = math.Max(0, math.Min(p.cfg.MaxCadenceSPM, 60/interval.Seconds()))
			}
		}
		p.lastStep = s.Time
	}

	return p.snapshot(s.Time), step
}

func (p *Processor) snapshot(t time.Time) Snapshot {
	return Snapshot{
		Time:          t,
		CadenceSPM:    p.cadence,
		MLSwayRMS:     p.sway.rms(),
		TiltDeg:       p.tilt,
		CalibrationOK: p.calOK,
		Samples:       p.samples,
		Steps:         p.steps,
	}
}

// tiltDegrees is the angle between a body-frame gravity vector and pure
// vertical.
func tiltDegrees(g r3.Vec) float64 {
	horizontal := math.Hypot(g.X, g.Y)
	return math.Atan2(horizontal, math.Abs(g.Z)) * 180 / math.Pi
}
