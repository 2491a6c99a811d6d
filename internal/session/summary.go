// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"errors"
	"time"

	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/steps"
	"github.com/relabs-tech/gait_computer/internal/stream"
)

// A session must time at least this many intervals to become a baseline.
const minScreeningIntervals = 20

// ErrNotScreened is returned when a session does not qualify as a baseline.
var ErrNotScreened = errors.New("session: does not qualify as a baseline screening")

// Summary is the immutable record of one finished walking session.
type Summary struct {
	ID              string              `json:"id"`
	StartedAt       time.Time           `json:"started_at"`
	EndedAt         time.Time           `json:"ended_at"`
	Steps           int                 `json:"steps"`
	Intervals       int                 `json:"intervals"`
	LeftCount       int                 `json:"left_count"`
	RightCount      int                 `json:"right_count"`
	Metrics         gait.SessionMetrics `json:"metrics"`
	AsymStepTimePct float64             `json:"asym_step_time_pct"`
	TiltDeg         float64             `json:"tilt_deg"`
	CalibrationOK   bool                `json:"calibration_ok"`
	GaitSpeedMps    *float64            `json:"gait_speed_mps,omitempty"`
	Tags            []gait.Tag          `json:"tags"`
	CoachingTags    []gait.Tag          `json:"coaching_tags"`
	Score           gait.ScoreResult    `json:"score"`
}

// Input gathers what Summarize needs from a finished recording.
type Input struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	Snapshot   stream.Snapshot
	Steps      steps.Stats
	Comparison *gait.Baseline // nil compares against built-in norms
	GaitSpeed  *float64
}

// Summarize builds metrics, tags and the score for a session. Cadence is
// taken from the mean step time when steps were timed, otherwise from the
// live detector.
func Summarize(in Input) Summary {
	m := gait.SessionMetrics{
		CadenceSPM: in.Snapshot.CadenceSPM,
		MLSwayRMS:  in.Snapshot.MLSwayRMS,
	}
	if in.Steps.Intervals > 0 && in.Steps.AvgStepTime > 0 {
		m.AvgStepTime = gait.Float(in.Steps.AvgStepTime)
		m.CadenceSPM = 60 / in.Steps.AvgStepTime
	}
	if in.Steps.Intervals >= 5 {
		m.CVStepTime = gait.Float(in.Steps.StepTimeCV)
	}

	var baseAsym, baseSway *float64
	if in.Comparison != nil {
		baseAsym = gait.Float(in.Comparison.AsymStepTimePct)
		baseSway = gait.Float(in.Comparison.MLSwayRMS)
	}

	return Summary{
		ID:              in.ID,
		StartedAt:       in.StartedAt,
		EndedAt:         in.EndedAt,
		Steps:           in.Snapshot.Steps,
		Intervals:       in.Steps.Intervals,
		LeftCount:       in.Steps.LeftCount,
		RightCount:      in.Steps.RightCount,
		Metrics:         m,
		AsymStepTimePct: in.Steps.AsymStepTimePct,
		TiltDeg:         in.Snapshot.TiltDeg,
		CalibrationOK:   in.Snapshot.CalibrationOK,
		GaitSpeedMps:    in.GaitSpeed,
		Tags:            gait.ClassifySession(m, in.Comparison),
		CoachingTags: gait.ClassifyCoaching(gait.CoachingInput{
			AsymPct:    in.Steps.AsymStepTimePct,
			MLSwayRMS:  m.MLSwayRMS,
			CadenceSPM: m.CadenceSPM,
			CV:         in.Steps.StepTimeCV,
		}),
		Score: gait.Score(in.Steps.AsymStepTimePct, m.MLSwayRMS, m.CadenceSPM, baseAsym, baseSway),
	}
}

// QualifiesAsBaseline reports whether the session passed screening: a good
// calibration, enough timed steps, and both sides represented.
func (s Summary) QualifiesAsBaseline() bool {
	return s.CalibrationOK &&
		s.Intervals >= minScreeningIntervals &&
		s.LeftCount >= 2 && s.RightCount >= 2 &&
		s.Metrics.AvgStepTime != nil && s.Metrics.CVStepTime != nil
}

// Baseline turns a screened session into a personal baseline dated now.
func (s Summary) Baseline(now time.Time) (gait.Baseline, error) {
	if !s.QualifiesAsBaseline() {
		return gait.Baseline{}, ErrNotScreened
	}
	return gait.Baseline{
		Date:            now,
		AvgStepTime:     *s.Metrics.AvgStepTime,
		CVStepTime:      *s.Metrics.CVStepTime,
		MLSwayRMS:       s.Metrics.MLSwayRMS,
		AsymStepTimePct: s.AsymStepTimePct,
	}, nil
}
