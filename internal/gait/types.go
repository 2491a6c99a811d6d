// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gait holds the walking metrics shared across the pipeline and
// the pure rule engines that interpret them: pattern classification and
// the 0-100 session score.
package gait

import "time"

// StepEvent is one detected heel strike. MediolateralG is the body-frame
// lateral acceleration at detection; positive means the subject's left.
type StepEvent struct {
	Time          time.Time `json:"time"`
	MediolateralG float64   `json:"ml_g"`
}

// SessionMetrics aggregates one walking session. Step-time fields are nil
// until enough steps have been timed.
type SessionMetrics struct {
	CadenceSPM  float64  `json:"cadence_spm"`
	MLSwayRMS   float64  `json:"ml_sway_rms"`
	AvgStepTime *float64 `json:"avg_step_time,omitempty"`
	CVStepTime  *float64 `json:"cv_step_time,omitempty"`
}

// Baseline is a personal (or population) reference walk. Records are
// replaced wholesale, never edited.
type Baseline struct {
	Date            time.Time `json:"date"`
	AvgStepTime     float64   `json:"avgStepTime"`     // seconds
	CVStepTime      float64   `json:"cvStepTime"`      // 0..1
	MLSwayRMS       float64   `json:"mlSwayRMS"`       // g
	AsymStepTimePct float64   `json:"asymStepTimePct"` // percent
}

// Tag is a semantic gait pattern label.
type Tag string

const (
	TrendelenburgLike   Tag = "trendelenburgLike"
	Antalgic            Tag = "antalgic"
	AtaxicWideBased     Tag = "ataxicWideBased"
	ShufflingShortSteps Tag = "shufflingShortSteps"
	IrregularRhythm     Tag = "irregularRhythm"
)

// Float returns a pointer to v, for the optional SessionMetrics fields.
func Float(v float64) *float64 { return &v }

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
