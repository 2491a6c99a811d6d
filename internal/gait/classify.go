package gait

// Thresholds for the session rule set. They are clinically tuned and shared
// with stored results; changing any of them changes historical tags.
const (
	minClassifiableCadence = 60.0

	swayAbsolute        = 0.10
	swayBaselineFloor   = 0.07
	swayElevatedRatio   = 1.25
	swayWideBasedRatio  = 1.40
	cvAntalgic          = 0.07
	cadenceAntalgicMax  = 110.0
	cvAtaxic            = 0.12
	cadenceShufflingMin = 110.0
	cvShuffling         = 0.07
	cvIrregular         = 0.12
)

// tagSet collects tags once each, in first-seen order.
type tagSet struct {
	tags []Tag
}

func (s *tagSet) add(t Tag) {
	for _, have := range s.tags {
		if have == t {
			return
		}
	}
	s.tags = append(s.tags, t)
}

func (s *tagSet) list() []Tag {
	if s.tags == nil {
		return []Tag{}
	}
	return s.tags
}

// swayElevated reports whether sway is at least ratio times the baseline
// sway. A missing or non-positive baseline is never elevated.
func swayElevated(sway float64, baseline *Baseline, ratio float64) bool {
	if baseline == nil || baseline.MLSwayRMS <= 0 {
		return false
	}
	return sway >= baseline.MLSwayRMS*ratio
}

// ClassifySession maps a finished session (and optional personal baseline)
// to gait pattern tags. Sessions slower than 60 spm are not classified.
func ClassifySession(m SessionMetrics, baseline *Baseline) []Tag {
	var out tagSet
	if m.CadenceSPM < minClassifiableCadence {
		return out.list()
	}

	sway := m.MLSwayRMS
	cv := valueOr(m.CVStepTime, 0)

	if sway >= swayAbsolute ||
		(baseline != nil && sway >= swayBaselineFloor && swayElevated(sway, baseline, swayElevatedRatio)) {
		out.add(TrendelenburgLike)
	}
	if cv >= cvAntalgic && m.CadenceSPM <= cadenceAntalgicMax {
		out.add(Antalgic)
	}
	if (sway >= swayAbsolute || swayElevated(sway, baseline, swayWideBasedRatio)) && cv >= cvAtaxic {
		out.add(AtaxicWideBased)
	}
	if m.CadenceSPM >= cadenceShufflingMin && (cv >= cvShuffling || swayElevated(sway, baseline, swayElevatedRatio)) {
		out.add(ShufflingShortSteps)
	}
	if cv >= cvIrregular {
		out.add(IrregularRhythm)
	}
	return out.list()
}

// CoachingInput feeds the coaching rule set.
type CoachingInput struct {
	AsymPct    float64 `json:"asym_pct"`
	MLSwayRMS  float64 `json:"ml_sway_rms"`
	CadenceSPM float64 `json:"cadence_spm"`
	CV         float64 `json:"cv"`
}

// ClassifyCoaching is the rule set used when picking coaching content. Its
// thresholds are independent of ClassifySession and the two are not
// expected to agree on the same input.
func ClassifyCoaching(in CoachingInput) []Tag {
	var out tagSet
	if in.AsymPct >= 12 {
		out.add(Antalgic)
	}
	if in.MLSwayRMS >= 0.14 || (in.MLSwayRMS >= 0.10 && in.CV >= 0.16) {
		out.add(AtaxicWideBased)
	}
	if in.CV >= 0.18 {
		out.add(IrregularRhythm)
	}
	if in.CadenceSPM >= 115 && in.AsymPct < 12 && in.MLSwayRMS < 0.12 {
		out.add(ShufflingShortSteps)
	}
	return out.list()
}
