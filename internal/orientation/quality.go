package orientation

// Thresholds a calibration has to clear before it is trusted.
const (
	minUpStability      = 0.90
	minForwardDominance = 0.60
	minGoodSamples      = 300
)

// Quality describes how trustworthy a calibration capture was. It always
// travels with the BodyTransform it was computed for.
type Quality struct {
	DurationSeconds  float64 `json:"duration_seconds"`
	SampleCount      int     `json:"sample_count"`
	UpStability      float64 `json:"up_stability"`      // |mean gravity|, 0..1
	ForwardDominance float64 `json:"forward_dominance"` // λ1/(λ1+λ2), 0..1
}

// IsGood reports whether the capture is good enough to apply.
func (q Quality) IsGood() bool {
	return q.UpStability > minUpStability &&
		q.ForwardDominance > minForwardDominance &&
		q.SampleCount >= minGoodSamples
}

// Confidence folds the quality into a single 0..1 figure for persistence.
func (q Quality) Confidence() float64 {
	return min(q.UpStability, q.ForwardDominance)
}
