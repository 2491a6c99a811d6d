package orientation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/relabs-tech/gait_computer/internal/motion"
)

// CaptureConfig bounds a calibration capture.
type CaptureConfig struct {
	Hz      float64
	Seconds float64
	Side    Side
}

// SampleLimit is the number of samples a full capture collects.
func (c CaptureConfig) SampleLimit() int {
	return int(math.Round(c.Hz * c.Seconds))
}

// Capture pulls samples from src into a Calibrator until the sample limit
// is reached, the source ends, or ctx is cancelled. Stopping early is not
// an error: the capture finishes with whatever was collected, subject to
// the MinCalibrationSamples floor. progress, if non-nil, receives the
// completed fraction after every sample.
func Capture(ctx context.Context, src motion.Source, cfg CaptureConfig, progress func(float64)) (Result, error) {
	limit := cfg.SampleLimit()
	if limit <= 0 {
		return Result{}, fmt.Errorf("orientation: invalid capture window %.1fHz x %.1fs", cfg.Hz, cfg.Seconds)
	}

	cal := NewCalibrator(cfg.Hz, cfg.Side)
	for cal.Count() < limit {
		s, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return Result{}, fmt.Errorf("orientation: capture read: %w", err)
		}
		cal.Add(s)
		if progress != nil {
			progress(float64(cal.Count()) / float64(limit))
		}
	}
	return cal.Finish()
}
