package gait

import (
	"fmt"
	"math"
)

// Penalty component names in ScoreResult.ComponentPenalties.
const (
	ComponentAsymmetry = "asymmetry"
	ComponentSway      = "sway"
	ComponentCadence   = "cadence"
)

const (
	asymMaxPenalty = 40.0
	asymFree       = 4.0  // percent
	asymFull       = 20.0 // percent

	swayMaxPenalty   = 35.0
	swayDefaultRef   = 0.06 // g
	swayBaselineCap  = 0.08 // g
	swayBaselineGain = 1.25
	swayFull         = 0.14 // g

	cadenceMaxPenalty = 25.0
	cadenceLow        = 90.0
	cadenceHigh       = 120.0
	cadenceFloor      = 50.0
	cadenceCeil       = 160.0
)

// ScoreResult is a 0-100 session score with the penalty behind each part.
type ScoreResult struct {
	Total              int            `json:"total"`
	ComponentPenalties map[string]int `json:"component_penalties"`
	Notes              []string       `json:"notes"`
}

// ramp is 0 at or below lo, 1 at or above hi and linear between.
func ramp(v, lo, hi float64) float64 {
	if hi <= lo {
		if v >= hi {
			return 1
		}
		return 0
	}
	return math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
}

// Score grades a session. Baseline values are optional; a nil or
// non-positive baseline sway falls back to the population reference.
func Score(asymPct, mlSwayRMS, cadenceSPM float64, baselineAsym, baselineMLSway *float64) ScoreResult {
	asym := asymMaxPenalty * ramp(asymPct, asymFree, asymFull)

	swayRef := swayDefaultRef
	if baselineMLSway != nil && *baselineMLSway > 0 {
		swayRef = math.Min(swayBaselineCap, *baselineMLSway*swayBaselineGain)
	}
	sway := swayMaxPenalty * ramp(mlSwayRMS, swayRef, swayFull)

	var cadence float64
	switch {
	case cadenceSPM < cadenceLow:
		cadence = cadenceMaxPenalty * ramp(cadenceLow-cadenceSPM, 0, cadenceLow-cadenceFloor)
	case cadenceSPM > cadenceHigh:
		cadence = cadenceMaxPenalty * ramp(cadenceSPM-cadenceHigh, 0, cadenceCeil-cadenceHigh)
	}

	res := ScoreResult{
		Total: int(math.Round(math.Max(0, math.Min(100, 100-(asym+sway+cadence))))),
		ComponentPenalties: map[string]int{
			ComponentAsymmetry: int(math.Round(asym)),
			ComponentSway:      int(math.Round(sway)),
			ComponentCadence:   int(math.Round(cadence)),
		},
		Notes: []string{},
	}

	if asym > 0 {
		note := fmt.Sprintf("step-time asymmetry %.1f%% (-%d)", asymPct, res.ComponentPenalties[ComponentAsymmetry])
		if baselineAsym != nil {
			note += fmt.Sprintf(", baseline %.1f%%", *baselineAsym)
		}
		res.Notes = append(res.Notes, note)
	}
	if sway > 0 {
		res.Notes = append(res.Notes, fmt.Sprintf("lateral sway %.3fg above %.3fg reference (-%d)",
			mlSwayRMS, swayRef, res.ComponentPenalties[ComponentSway]))
	}
	if cadence > 0 {
		res.Notes = append(res.Notes, fmt.Sprintf("cadence %.0f spm outside %.0f-%.0f (-%d)",
			cadenceSPM, cadenceLow, cadenceHigh, res.ComponentPenalties[ComponentCadence]))
	}
	return res
}
