// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package steps times consecutive steps and derives rhythm variability and
// left/right asymmetry.
package steps

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/gait_computer/internal/gait"
)

const (
	minInterval = 250 * time.Millisecond
	maxInterval = 1600 * time.Millisecond

	// |ml| at or below this keeps the previous side label.
	sideDeadband = 0.01

	allCapacity  = 80
	sideCapacity = 40
	asymWindow   = 10

	minForCV   = 5
	minPerSide = 2
)

// Side labels a step interval by which foot it ended on.
type Side int

const (
	Unknown Side = iota
	Left
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Stats is the analyzer output after the latest accepted interval.
type Stats struct {
	Intervals       int     `json:"intervals"`
	AvgStepTime     float64 `json:"avg_step_time"`
	StepTimeCV      float64 `json:"step_time_cv"`
	AsymStepTimePct float64 `json:"asym_step_time_pct"`
	LeftCount       int     `json:"left_count"`
	RightCount      int     `json:"right_count"`
}

// Analyzer consumes step events in arrival order. It is a plain value
// type with no I/O and is not safe for concurrent use.
type Analyzer struct {
	last    time.Time
	label   Side
	all     []float64
	left    []float64
	right   []float64
	stats   Stats
	dropped int
}

// NewAnalyzer returns an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Add consumes one step event and reports whether it produced an accepted
// interval. Intervals shorter than 0.25s are detector double-counts and
// the event is ignored entirely. Intervals longer than 1.6s are pauses:
// nothing is recorded but timing restarts from this event.
func (a *Analyzer) Add(ev gait.StepEvent) bool {
	if a.last.IsZero() {
		a.last = ev.Time
		a.updateLabel(ev.MediolateralG)
		return false
	}

	interval := ev.Time.Sub(a.last)
	if interval < minInterval {
		a.dropped++
		return false
	}
	a.last = ev.Time
	if interval > maxInterval {
		a.dropped++
		a.updateLabel(ev.MediolateralG)
		return false
	}

	a.updateLabel(ev.MediolateralG)
	sec := interval.Seconds()
	a.all = pushBounded(a.all, sec, allCapacity)
	switch a.label {
	case Left:
		a.left = pushBounded(a.left, sec, sideCapacity)
	case Right:
		a.right = pushBounded(a.right, sec, sideCapacity)
	}
	a.recompute()
	return true
}

func (a *Analyzer) updateLabel(ml float64) {
	switch {
	case ml > sideDeadband:
		a.label = Left
	case ml < -sideDeadband:
		a.label = Right
	}
}

// pushBounded appends v and trims the oldest values past capacity.
func pushBounded(window []float64, v float64, capacity int) []float64 {
	window = append(window, v)
	if over := len(window) - capacity; over > 0 {
		window = append(window[:0], window[over:]...)
	}
	return window
}

func (a *Analyzer) recompute() {
	s := Stats{
		Intervals:  len(a.all),
		LeftCount:  len(a.left),
		RightCount: len(a.right),
	}
	s.AvgStepTime = stat.Mean(a.all, nil)
	if len(a.all) >= minForCV && s.AvgStepTime > 0 {
		s.StepTimeCV = stat.StdDev(a.all, nil) / s.AvgStepTime
	}
	s.AsymStepTimePct = asymmetry(tail(a.left, asymWindow), tail(a.right, asymWindow))
	a.stats = s
}

func tail(v []float64, n int) []float64 {
	if len(v) > n {
		return v[len(v)-n:]
	}
	return v
}

func asymmetry(left, right []float64) float64 {
	if len(left) < minPerSide || len(right) < minPerSide {
		return 0
	}
	ml, mr := stat.Mean(left, nil), stat.Mean(right, nil)
	mid := (ml + mr) / 2
	if mid <= 0 {
		return 0
	}
	return math.Abs(ml-mr) / mid * 100
}

// Stats returns the figures after the latest accepted interval.
func (a *Analyzer) Stats() Stats { return a.stats }

// Label is the side the most recent step was attributed to.
func (a *Analyzer) Label() Side { return a.label }

// Dropped counts intervals rejected as out of range.
func (a *Analyzer) Dropped() int { return a.dropped }

// Intervals returns a copy of the all-intervals window, oldest first.
func (a *Analyzer) Intervals() []float64 {
	return append([]float64(nil), a.all...)
}
