// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/metrics"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/orientation"
	"github.com/relabs-tech/gait_computer/internal/publish"
	"github.com/relabs-tech/gait_computer/internal/session"
	"github.com/relabs-tech/gait_computer/internal/store"
	"github.com/relabs-tech/gait_computer/internal/target"
)

const (
	staticDir           = "web"
	defaultSessionLimit = 20
	maxSessionLimit     = 500
)

// SourceFactory opens a fresh motion source; the func closes it.
type SourceFactory func() (motion.Source, func(), error)

// Server is the HTTP API. Store and Live are required.
type Server struct {
	Store     *store.Store
	Live      *LiveFeed
	Metrics   *metrics.Metrics
	Policy    target.Policy
	Capture   orientation.CaptureConfig
	Sources   SourceFactory
	StaticDir string
	Clock     func() time.Time
}

func (srv *Server) now() time.Time {
	if srv.Clock != nil {
		return srv.Clock()
	}
	return time.Now()
}

// Router wires every route with request metrics, CORS and access logging.
func (srv *Server) Router() http.Handler {
	r := mux.NewRouter()
	route := func(path, name string, h http.HandlerFunc, methods ...string) {
		r.Handle(path, srv.Metrics.WrapHandler(name, h)).Methods(methods...)
	}

	route("/health", "health", srv.handleHealth, http.MethodGet)
	route("/api/live", "live", srv.handleLive, http.MethodGet)
	route("/api/score", "score", srv.handleScore, http.MethodPost)
	route("/api/classify", "classify", srv.handleClassify, http.MethodPost)
	route("/api/classify/coaching", "classify_coaching", srv.handleCoaching, http.MethodPost)
	route("/api/baseline", "baseline_get", srv.handleGetBaseline, http.MethodGet)
	route("/api/baseline", "baseline_save", srv.handleSaveBaseline, http.MethodPost)
	route("/api/target", "target", srv.handleTarget, http.MethodGet)
	route("/api/target/ramp", "target_ramp", srv.handleSetRamp, http.MethodPut)
	route("/api/target/policy", "target_policy", srv.handleSetPolicy, http.MethodPut)
	route("/api/progress", "progress", srv.handleProgress, http.MethodGet)
	route("/api/sessions", "sessions", srv.handleSessions, http.MethodGet)
	route("/api/sessions/{id}", "session", srv.handleSession, http.MethodGet)
	route("/api/calibration", "calibration_get", srv.handleGetCalibration, http.MethodGet)
	route("/api/calibration", "calibration_delete", srv.handleDeleteCalibration, http.MethodDelete)
	r.HandleFunc("/ws/live", srv.handleLiveWS).Methods(http.MethodGet)
	r.HandleFunc("/ws/calibration", srv.handleCalibrationWS).Methods(http.MethodGet)
	r.Handle("/metrics", srv.Metrics.Handler()).Methods(http.MethodGet)

	if srv.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(srv.StaticDir)))
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.LoggingHandler(os.Stdout, cors(r))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (srv *Server) internalError(w http.ResponseWriter, err error) {
	log.Printf("web: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (srv *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	snap, ok := srv.Live.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type scoreRequest struct {
	AsymPct         float64  `json:"asym_pct"`
	MLSwayRMS       float64  `json:"ml_sway_rms"`
	CadenceSPM      float64  `json:"cadence_spm"`
	BaselineAsymPct *float64 `json:"baseline_asym_pct,omitempty"`
	BaselineMLSway  *float64 `json:"baseline_ml_sway_rms,omitempty"`
}

func (srv *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, gait.Score(req.AsymPct, req.MLSwayRMS, req.CadenceSPM, req.BaselineAsymPct, req.BaselineMLSway))
}

type classifyRequest struct {
	Metrics  gait.SessionMetrics `json:"metrics"`
	Baseline *gait.Baseline      `json:"baseline,omitempty"`
}

type tagsResponse struct {
	Tags []gait.Tag `json:"tags"`
}

// handleClassify runs the session rule set. Without an explicit baseline
// the active target comparison is used.
func (srv *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	baseline := req.Baseline
	if baseline == nil {
		res, err := srv.Store.Resolver(r.Context(), srv.Policy)
		if err != nil {
			srv.internalError(w, err)
			return
		}
		baseline = res.Comparison()
	}
	writeJSON(w, http.StatusOK, tagsResponse{gait.ClassifySession(req.Metrics, baseline)})
}

func (srv *Server) handleCoaching(w http.ResponseWriter, r *http.Request) {
	var in gait.CoachingInput
	if !decode(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, tagsResponse{gait.ClassifyCoaching(in)})
}

func (srv *Server) handleGetBaseline(w http.ResponseWriter, r *http.Request) {
	b, err := srv.Store.LatestBaseline(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no baseline saved")
		return
	}
	if err != nil {
		srv.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type saveBaselineRequest struct {
	SessionID string `json:"session_id"`
}

// handleSaveBaseline promotes a screened session to the personal baseline.
func (srv *Server) handleSaveBaseline(w http.ResponseWriter, r *http.Request) {
	var req saveBaselineRequest
	if !decode(w, r, &req) {
		return
	}
	sum, err := srv.Store.GetSession(r.Context(), req.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		srv.internalError(w, err)
		return
	}
	b, err := sum.Baseline(srv.now())
	if errors.Is(err, session.ErrNotScreened) {
		writeError(w, http.StatusUnprocessableEntity, "session does not qualify as a baseline: needs a good calibration, 20 timed steps and both sides")
		return
	}
	if err != nil {
		srv.internalError(w, err)
		return
	}
	if err := srv.Store.SaveBaseline(r.Context(), b, sum.ID); err != nil {
		srv.internalError(w, err)
		return
	}
	log.Printf("web: baseline saved from session %s", sum.ID)
	writeJSON(w, http.StatusCreated, b)
}

type targetView struct {
	Policy   target.Policy  `json:"policy"`
	Ramp     float64        `json:"ramp"`
	Target   gait.Baseline  `json:"target"`
	Personal *gait.Baseline `json:"personal,omitempty"`
}

func (srv *Server) currentTarget(ctx context.Context) (targetView, error) {
	res, err := srv.Store.Resolver(ctx, srv.Policy)
	if err != nil {
		return targetView{}, err
	}
	return targetView{Policy: res.Policy, Ramp: res.Ramp, Target: res.Resolve(), Personal: res.Personal}, nil
}

func (srv *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	view, err := srv.currentTarget(r.Context())
	if err != nil {
		srv.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (srv *Server) handleSetRamp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ramp *float64 `json:"ramp"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Ramp == nil {
		writeError(w, http.StatusBadRequest, "ramp is required")
		return
	}
	if err := srv.Store.SetRamp(r.Context(), *req.Ramp); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	srv.handleTarget(w, r)
}

func (srv *Server) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policy string `json:"policy"`
	}
	if !decode(w, r, &req) {
		return
	}
	p, err := target.ParsePolicy(req.Policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := srv.Store.SetPolicy(r.Context(), p); err != nil {
		srv.internalError(w, err)
		return
	}
	srv.handleTarget(w, r)
}

func (srv *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	recent, err := srv.Store.RecentSessions(r.Context(), 5)
	if err != nil {
		srv.internalError(w, err)
		return
	}
	var personal *gait.Baseline
	b, err := srv.Store.LatestBaseline(r.Context())
	switch {
	case err == nil:
		personal = &b
	case !errors.Is(err, store.ErrNotFound):
		srv.internalError(w, err)
		return
	}
	ms := make([]gait.SessionMetrics, len(recent))
	for i, s := range recent {
		ms[i] = s.Metrics
	}
	writeJSON(w, http.StatusOK, target.ComputeProgress(ms, personal))
}

func (srv *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSessionLimit {
			writeError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = n
	}
	sessions, err := srv.Store.RecentSessions(r.Context(), limit)
	if err != nil {
		srv.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (srv *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sum, err := srv.Store.GetSession(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		srv.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type calibrationView struct {
	ID        string                      `json:"id"`
	CreatedAt time.Time                   `json:"created_at"`
	Side      orientation.Side            `json:"side"`
	Transform orientation.TransformRecord `json:"transform"`
	Quality   orientation.QualityRecord   `json:"quality"`
	Good      bool                        `json:"good"`
}

func (srv *Server) handleGetCalibration(w http.ResponseWriter, r *http.Request) {
	cal, err := srv.Store.LatestCalibration(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not calibrated")
		return
	}
	if err != nil {
		srv.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calibrationView{
		ID:        cal.ID,
		CreatedAt: cal.CreatedAt,
		Side:      cal.Result.Side,
		Transform: cal.Result.Transform.Record(),
		Quality:   cal.Result.QualityRecord(),
		Good:      cal.Result.Quality.IsGood(),
	})
}

func (srv *Server) handleDeleteCalibration(w http.ResponseWriter, r *http.Request) {
	if err := srv.Store.DeleteCalibrations(r.Context()); err != nil {
		srv.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type liveMessage struct {
	Type string `json:"type"` // snapshot, step
	Data any    `json:"data"`
}

// handleLiveWS streams snapshots and steps until the client goes away.
func (srv *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := srv.Live.Subscribe()
	defer sub.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if snap, ok := srv.Live.Latest(); ok {
		if err := conn.WriteJSON(liveMessage{"snapshot", snap}); err != nil {
			return
		}
	}
	for {
		var msg liveMessage
		select {
		case <-gone:
			return
		case snap, ok := <-sub.Snapshots:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}
			msg = liveMessage{"snapshot", snap}
		case ev, ok := <-sub.Steps:
			if !ok {
				return
			}
			msg = liveMessage{"step", ev}
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// RunWeb serves the API. Live data comes from the recorder over MQTT;
// interactive calibration opens the configured motion source itself.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := publish.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientIDRecorder+"-web")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTT.Broker)

	live := NewLiveFeed()
	defer live.Close()
	if err := live.FollowMQTT(client, cfg.MQTT.TopicLive, cfg.MQTT.TopicSteps); err != nil {
		return err
	}
	log.Printf("subscribed to MQTT topics %s, %s", cfg.MQTT.TopicLive, cfg.MQTT.TopicSteps)

	m := metrics.New()
	srv := &Server{
		Store:   st,
		Live:    live,
		Metrics: m,
		Policy:  target.Policy(cfg.Target.Policy),
		Capture: captureConfig(cfg),
		Sources: func() (motion.Source, func(), error) {
			return openSource(cfg, client, m)
		},
	}
	if fi, err := os.Stat(staticDir); err == nil && fi.IsDir() {
		srv.StaticDir = staticDir
	}

	hs := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", cfg.Web.Listen)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}
