package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Live(100, 0.05, 10)
	m.Step(false)
	m.Calibration(CalibrationGood)
	m.SessionRecorded()
	m.SamplesDropped(3)
	m.ResetLive()
	h := m.WrapHandler("x", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()

	m.Live(100, 0.05, 10)
	m.Live(101, 0.06, 25)
	assert.Equal(t, 25.0, testutil.ToFloat64(m.samples))
	assert.Equal(t, 101.0, testutil.ToFloat64(m.cadence))

	m.ResetLive()
	m.Live(0, 0, 5)
	assert.Equal(t, 30.0, testutil.ToFloat64(m.samples))

	m.Step(true)
	m.Step(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.steps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.intervalsRejected))

	m.Calibration(CalibrationPoor)
	m.Calibration(CalibrationPoor)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.calibrations.WithLabelValues(CalibrationPoor)))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.SessionRecorded()
	wrapped := m.WrapHandler("metrics", m.Handler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gait_sessions_recorded_total 1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("metrics", "200")))
}
