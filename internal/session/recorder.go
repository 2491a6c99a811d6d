package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/metrics"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/orientation"
	"github.com/relabs-tech/gait_computer/internal/steps"
	"github.com/relabs-tech/gait_computer/internal/stream"
)

// SpeedSource reports a walking speed measured outside the motion stream,
// e.g. from GPS.
type SpeedSource interface {
	MeanSpeed() (float64, bool)
}

// Recorder runs one walking session: it drives a stream Processor from a
// motion source and feeds detected steps to a steps Analyzer.
type Recorder struct {
	id    string
	hub   *stream.Hub
	proc  *stream.Processor
	steps *steps.Analyzer
	speed SpeedSource
	mx    *metrics.Metrics
	now   func() time.Time

	started time.Time
	ended   time.Time
	last    stream.Snapshot
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithSpeedSource attaches an external walking-speed source.
func WithSpeedSource(s SpeedSource) Option {
	return func(r *Recorder) { r.speed = s }
}

// WithMetrics reports live values and step outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.mx = m }
}

// WithClock overrides time.Now for session start and end stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder prepares a session. The calibration may be the zero
// transform, in which case the processor runs on device axes.
func NewRecorder(cfg stream.Config, bt orientation.BodyTransform, q orientation.Quality, opts ...Option) *Recorder {
	r := &Recorder{
		id:    uuid.NewString(),
		hub:   stream.NewHub(),
		proc:  stream.NewProcessor(cfg),
		steps: steps.NewAnalyzer(),
		now:   time.Now,
	}
	r.proc.SetCalibration(bt, q)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID is the session identifier.
func (r *Recorder) ID() string { return r.id }

// Hub exposes the live output. Subscribe before calling Run to see every
// step.
func (r *Recorder) Hub() *stream.Hub { return r.hub }

// Run records until src ends or ctx is cancelled. Cancellation is the
// normal way to stop a live session and is not reported as an error.
func (r *Recorder) Run(ctx context.Context, src motion.Source) error {
	r.started = r.now()
	r.mx.ResetLive()
	sub := r.hub.Subscribe(256)
	defer sub.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- stream.Run(ctx, r.proc, src, r.hub)
	}()

	sub.Each(
		func(snap stream.Snapshot) {
			r.last = snap
			r.mx.Live(snap.CadenceSPM, snap.MLSwayRMS, snap.Samples)
		},
		func(ev gait.StepEvent) {
			dropped := r.steps.Dropped()
			r.steps.Add(ev)
			r.mx.Step(r.steps.Dropped() == dropped)
		},
	)

	r.ended = r.now()
	err := <-errc
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Live returns the most recent snapshot seen by the recorder. It is only
// safe to call once Run has returned; live readers subscribe to Hub.
func (r *Recorder) Live() stream.Snapshot { return r.last }

// StepStats returns the analyzer output so far.
func (r *Recorder) StepStats() steps.Stats { return r.steps.Stats() }

// Summary builds the session record. Call it after Run has returned.
func (r *Recorder) Summary(comparison *gait.Baseline) Summary {
	var speed *float64
	if r.speed != nil {
		if v, ok := r.speed.MeanSpeed(); ok {
			speed = gait.Float(v)
		}
	}
	return Summarize(Input{
		ID:         r.id,
		StartedAt:  r.started,
		EndedAt:    r.ended,
		Snapshot:   r.last,
		Steps:      r.steps.Stats(),
		Comparison: comparison,
		GaitSpeed:  speed,
	})
}
