package orientation

import "gonum.org/v1/gonum/spatial/r3"

// TransformRecord is the persisted shape of a BodyTransform: a row-major
// 3x3 matrix with rows forward, mediolateral, up.
type TransformRecord struct {
	M00 float64 `json:"m00"`
	M01 float64 `json:"m01"`
	M02 float64 `json:"m02"`
	M10 float64 `json:"m10"`
	M11 float64 `json:"m11"`
	M12 float64 `json:"m12"`
	M20 float64 `json:"m20"`
	M21 float64 `json:"m21"`
	M22 float64 `json:"m22"`
}

// QualityRecord is the persisted summary of a calibration's quality.
type QualityRecord struct {
	Confidence  float64 `json:"confidence"`
	Hz          float64 `json:"hz"`
	DurationSec float64 `json:"durationSec"`
}

// Record returns the persisted form of t.
func (t BodyTransform) Record() TransformRecord {
	m := t.Matrix()
	return TransformRecord{
		M00: m[0], M01: m[1], M02: m[2],
		M10: m[3], M11: m[4], M12: m[5],
		M20: m[6], M21: m[7], M22: m[8],
	}
}

// FromRecord rebuilds a transform from its persisted rows. The result is
// re-orthonormalized so that rounding in storage cannot skew the basis.
func FromRecord(r TransformRecord) BodyTransform {
	t := BodyTransform{
		forward: r3.Vec{X: r.M00, Y: r.M01, Z: r.M02},
		ml:      r3.Vec{X: r.M10, Y: r.M11, Z: r.M12},
		up:      r3.Vec{X: r.M20, Y: r.M21, Z: r.M22},
	}
	return t.Orthonormalize()
}

// QualityRecord returns the persisted quality summary of r.
func (r Result) QualityRecord() QualityRecord {
	return QualityRecord{
		Confidence:  r.Quality.Confidence(),
		Hz:          r.Hz,
		DurationSec: r.Quality.DurationSeconds,
	}
}
