// Package metrics exposes Prometheus instrumentation for the gait
// pipeline. Every method is safe on a nil *Metrics so callers can run
// without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Calibration outcomes.
const (
	CalibrationGood         = "good"
	CalibrationPoor         = "poor"
	CalibrationInsufficient = "insufficient"
)

type Metrics struct {
	reg *prometheus.Registry

	samples           prometheus.Counter
	samplesDropped    prometheus.Counter
	steps             prometheus.Counter
	intervalsRejected prometheus.Counter
	calibrations      *prometheus.CounterVec
	sessions          prometheus.Counter
	cadence           prometheus.Gauge
	sway              prometheus.Gauge
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	mu          sync.Mutex
	lastSamples int
}

// New builds the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gait_samples_processed_total",
			Help: "Motion samples run through the stream processor.",
		}),
		samplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gait_samples_dropped_total",
			Help: "Motion samples dropped because the input queue was full.",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gait_steps_detected_total",
			Help: "Steps detected by the live step detector.",
		}),
		intervalsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gait_intervals_rejected_total",
			Help: "Step intervals dropped as out of range.",
		}),
		calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gait_calibrations_total",
			Help: "Calibration attempts by outcome.",
		}, []string{"outcome"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gait_sessions_recorded_total",
			Help: "Walking sessions summarised and saved.",
		}),
		cadence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gait_live_cadence_spm",
			Help: "Most recent live cadence in steps per minute.",
		}),
		sway: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gait_live_ml_sway_rms_g",
			Help: "Most recent mediolateral sway RMS in g.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.reg.MustRegister(
		m.samples, m.samplesDropped, m.steps, m.intervalsRejected,
		m.calibrations, m.sessions, m.cadence, m.sway,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Live records a snapshot. total is the processor's running sample count;
// only the increase since the last call is added to the counter.
func (m *Metrics) Live(cadence, sway float64, total int) {
	if m == nil {
		return
	}
	m.cadence.Set(cadence)
	m.sway.Set(sway)
	m.mu.Lock()
	if total > m.lastSamples {
		m.samples.Add(float64(total - m.lastSamples))
	}
	m.lastSamples = total
	m.mu.Unlock()
}

// ResetLive starts a new session's sample count.
func (m *Metrics) ResetLive() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lastSamples = 0
	m.mu.Unlock()
}

// Step records one detected step; ok is false when the analyzer dropped
// its interval as out of range.
func (m *Metrics) Step(ok bool) {
	if m == nil {
		return
	}
	m.steps.Inc()
	if !ok {
		m.intervalsRejected.Inc()
	}
}

func (m *Metrics) SamplesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.samplesDropped.Add(float64(n))
}

func (m *Metrics) Calibration(outcome string) {
	if m == nil {
		return
	}
	m.calibrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionRecorded() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
