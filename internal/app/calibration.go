// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/metrics"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/orientation"
	"github.com/relabs-tech/gait_computer/internal/publish"
	"github.com/relabs-tech/gait_computer/internal/store"
)

// CalibrationOutcome reports one calibration attempt. Saved is only true
// for a good attempt; a poor one should be repeated.
type CalibrationOutcome struct {
	ID        string                      `json:"id,omitempty"`
	Saved     bool                        `json:"saved"`
	Good      bool                        `json:"good"`
	Side      orientation.Side            `json:"side"`
	Transform orientation.TransformRecord `json:"transform"`
	Quality   orientation.Quality         `json:"quality"`
	Summary   orientation.QualityRecord   `json:"summary"`
}

// Calibrate captures a calibration walk from src and saves it when its
// quality is good.
func Calibrate(ctx context.Context, src motion.Source, cc orientation.CaptureConfig,
	st *store.Store, m *metrics.Metrics, progress func(float64)) (CalibrationOutcome, error) {

	res, err := orientation.Capture(ctx, src, cc, progress)
	out := CalibrationOutcome{
		Side:      res.Side,
		Transform: res.Transform.Record(),
		Quality:   res.Quality,
		Summary:   res.QualityRecord(),
	}
	if errors.Is(err, orientation.ErrInsufficientSamples) {
		m.Calibration(metrics.CalibrationInsufficient)
		return out, err
	}
	if err != nil {
		return out, err
	}

	out.Good = res.Quality.IsGood()
	if !out.Good {
		m.Calibration(metrics.CalibrationPoor)
		log.Printf("calibration: poor quality (up %.2f, forward %.2f, %d samples), not saved",
			res.Quality.UpStability, res.Quality.ForwardDominance, res.Quality.SampleCount)
		return out, nil
	}
	m.Calibration(metrics.CalibrationGood)

	saved, err := st.SaveCalibration(context.WithoutCancel(ctx), res)
	if err != nil {
		return out, err
	}
	out.ID, out.Saved = saved.ID, true
	log.Printf("calibration: saved %s (%s pocket, confidence %.2f)", saved.ID, res.Side, res.Quality.Confidence())
	return out, nil
}

func captureConfig(cfg *config.Config) orientation.CaptureConfig {
	return orientation.CaptureConfig{
		Hz:      cfg.Sampling.Hz,
		Seconds: cfg.Calibration.Seconds,
		Side:    orientation.Side(cfg.Calibration.Side),
	}
}

// RunCalibration captures one calibration walk from the configured source
// and stores it. The wearer should walk straight at a normal pace.
func RunCalibration(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	var client mqtt.Client
	if cfg.Sampling.Source == config.SourceMQTT {
		client, err = publish.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientIDRecorder+"-calibration")
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
	}
	src, closeSrc, err := openSource(cfg, client, nil)
	if err != nil {
		return err
	}
	defer closeSrc()

	cc := captureConfig(cfg)
	log.Printf("calibration: walk normally for %.0f s (%s pocket)", cc.Seconds, cc.Side)
	last := -1
	out, err := Calibrate(ctx, src, cc, st, nil, func(f float64) {
		if pct := int(f * 10); pct != last {
			last = pct
			log.Printf("calibration: %3.0f%%", f*100)
		}
	})
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	if !out.Good {
		return fmt.Errorf("calibration: quality too low (confidence %.2f), please repeat", out.Summary.Confidence)
	}
	return nil
}
