// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package target decides which reference walk a session is compared
// against and how far recent sessions have moved toward it.
package target

import (
	"fmt"
	"math"

	"github.com/relabs-tech/gait_computer/internal/gait"
)

// Policy selects the comparison reference.
type Policy string

const (
	PolicyNorms    Policy = "norms"
	PolicyPersonal Policy = "personal"
	PolicyRamped   Policy = "ramped"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyNorms, PolicyPersonal, PolicyRamped:
		return p, nil
	default:
		return "", fmt.Errorf("target: unknown policy %q", s)
	}
}

// Norms are typical adult walking figures.
var Norms = gait.Baseline{
	AvgStepTime:     0.55,
	CVStepTime:      0.03,
	MLSwayRMS:       0.05,
	AsymStepTimePct: 3.0,
}

// Resolver holds the inputs needed to resolve a target. It is a value;
// callers build one from whatever store they keep settings in.
type Resolver struct {
	Policy   Policy
	Personal *gait.Baseline
	Ramp     float64 // 0 = personal baseline, 1 = norms
}

// Resolve returns the active comparison baseline. Personal and ramped
// policies fall back to the norms when no personal baseline has been saved.
func (r Resolver) Resolve() gait.Baseline {
	if r.Personal == nil || r.Policy == PolicyNorms {
		return Norms
	}
	if r.Policy == PolicyRamped {
		return Interpolate(*r.Personal, Norms, r.Ramp)
	}
	return *r.Personal
}

// Comparison is the resolved reference handed to the classifier and
// scorer. It is never nil: the norms policy compares against Norms the same
// way a fully ramped target does.
func (r Resolver) Comparison() *gait.Baseline {
	b := r.Resolve()
	return &b
}

// Interpolate moves each field from personal toward norms by fraction f,
// clamped to [0,1]. The result keeps the personal baseline's date.
func Interpolate(personal, norms gait.Baseline, f float64) gait.Baseline {
	f = math.Max(0, math.Min(1, f))
	lerp := func(a, b float64) float64 {
		switch f {
		case 0:
			return a
		case 1:
			return b
		}
		return a + (b-a)*f
	}
	return gait.Baseline{
		Date:            personal.Date,
		AvgStepTime:     lerp(personal.AvgStepTime, norms.AvgStepTime),
		CVStepTime:      lerp(personal.CVStepTime, norms.CVStepTime),
		MLSwayRMS:       lerp(personal.MLSwayRMS, norms.MLSwayRMS),
		AsymStepTimePct: lerp(personal.AsymStepTimePct, norms.AsymStepTimePct),
	}
}
