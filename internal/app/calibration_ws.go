// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gait_computer/internal/orientation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is sent by the calibration page.
type WSMessage struct {
	Action  string  `json:"action"` // start, cancel
	Side    string  `json:"side,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
}

// WSResponse is sent back to the calibration page.
type WSResponse struct {
	Type     string      `json:"type"` // phase, progress, complete, error
	Phase    string      `json:"phase,omitempty"`
	Progress float64     `json:"progress,omitempty"`
	Results  interface{} `json:"results,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// calibrationSession serialises writes to one calibration websocket.
type calibrationSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *calibrationSession) send(r WSResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(r); err != nil {
		log.Printf("calibration: websocket write error: %v", err)
	}
}

func (s *calibrationSession) sendError(message string) {
	s.send(WSResponse{Type: "error", Message: message})
}

// handleCalibrationWS runs interactive calibrations over a websocket. One
// capture runs at a time; "cancel" stops it early, which finishes the
// calibration with the samples gathered so far.
func (srv *Server) handleCalibrationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	sess := &calibrationSession{conn: conn}

	msgs := make(chan WSMessage)
	go func() {
		defer close(msgs)
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			msgs <- msg
		}
	}()

	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	stop := func() {
		if cancel != nil {
			cancel()
			<-done
			cancel = nil
		}
	}
	defer stop()

	for msg := range msgs {
		switch msg.Action {
		case "start":
			if done != nil {
				select {
				case <-done:
				default:
					sess.sendError("calibration already running")
					continue
				}
			}
			cc := srv.Capture
			if msg.Side != "" {
				cc.Side = orientation.Side(msg.Side)
			}
			if msg.Seconds > 0 {
				cc.Seconds = msg.Seconds
			}
			if cc.Side != orientation.SideLeft && cc.Side != orientation.SideRight {
				sess.sendError("side must be left or right")
				continue
			}

			if cancel != nil {
				cancel()
			}
			var ctx context.Context
			ctx, cancel = context.WithCancel(r.Context())
			done = make(chan struct{})
			go func(ctx context.Context, done chan struct{}) {
				defer close(done)
				srv.runCalibration(ctx, sess, cc)
			}(ctx, done)

		case "cancel":
			if cancel != nil {
				log.Printf("calibration: stopped early by user")
				cancel()
			}

		default:
			sess.sendError("unknown action " + msg.Action)
		}
	}
}

func (srv *Server) runCalibration(ctx context.Context, sess *calibrationSession, cc orientation.CaptureConfig) {
	if srv.Sources == nil {
		sess.sendError("no motion source configured")
		return
	}
	src, closeSrc, err := srv.Sources()
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	defer closeSrc()

	sess.send(WSResponse{Type: "phase", Phase: "capture"})
	last := -1
	out, err := Calibrate(ctx, src, cc, srv.Store, srv.Metrics, func(f float64) {
		if step := int(f * 20); step != last {
			last = step
			sess.send(WSResponse{Type: "progress", Progress: f})
		}
	})
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	sess.send(WSResponse{Type: "complete", Results: out})
}
