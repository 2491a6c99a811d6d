package target

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/gait_computer/internal/gait"
)

// progressWindow is how many of the most recent sessions are considered.
const progressWindow = 5

// Progress is how close recent sessions are to the two references, each
// as a fraction in [0,1].
type Progress struct {
	TowardTypical       float64 `json:"toward_typical"`
	ConsistencyBaseline float64 `json:"consistency_to_baseline"`
	Sessions            int     `json:"sessions"`
}

// ComputeProgress scores the latest sessions (oldest first) against the
// norms and against the personal baseline, or the norms if none is saved.
func ComputeProgress(sessions []gait.SessionMetrics, personal *gait.Baseline) Progress {
	if len(sessions) > progressWindow {
		sessions = sessions[len(sessions)-progressWindow:]
	}
	ref := Norms
	if personal != nil {
		ref = *personal
	}
	return Progress{
		TowardTypical:       closeness(sessions, Norms),
		ConsistencyBaseline: closeness(sessions, ref),
		Sessions:            len(sessions),
	}
}

// mapRatio folds target/actual onto (0,1]: 1 is a perfect match, and
// undershooting is penalised half as hard as overshooting.
func mapRatio(r float64) float64 {
	if r >= 1 {
		return 1 / r
	}
	return 1 - (1-r)*0.5
}

func closeness(sessions []gait.SessionMetrics, ref gait.Baseline) float64 {
	var perSession []float64
	for _, s := range sessions {
		var mapped []float64
		add := func(target float64, actual *float64) {
			if actual == nil || *actual <= 0 || target <= 0 {
				return
			}
			mapped = append(mapped, mapRatio(target/(*actual)))
		}
		add(ref.AvgStepTime, s.AvgStepTime)
		add(ref.CVStepTime, s.CVStepTime)
		sway := s.MLSwayRMS
		add(ref.MLSwayRMS, &sway)

		if len(mapped) > 0 {
			perSession = append(perSession, stat.Mean(mapped, nil))
		}
	}
	if len(perSession) == 0 {
		return 0
	}
	raw := stat.Mean(perSession, nil) * 100
	return math.Max(0, math.Min(1, (raw-50)/50))
}
