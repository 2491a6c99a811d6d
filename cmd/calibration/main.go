// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Pocket calibration. Put the phone or sensor in a trouser pocket and walk
// normally in a straight line for the capture window. Gravity gives the up
// axis and the dominant horizontal acceleration gives the walking direction;
// the pocket side fixes which way is the subject's left.
//
// A good calibration is stored and used by every later recording. A poor
// one is reported and not stored.
//
// Run:
//
//	go run ./cmd/calibration -side right -seconds 15
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/gait_computer/internal/app"
	"github.com/relabs-tech/gait_computer/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file")
	side := flag.String("side", "", "pocket side, left or right (default from config)")
	seconds := flag.Float64("seconds", 0, "capture length in seconds (default from config)")
	flag.Parse()

	log.Println("starting gait-computer calibration")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	switch *side {
	case "":
	case "left", "right":
		cfg.Calibration.Side = *side
	default:
		log.Fatalf("invalid -side %q: must be left or right", *side)
	}
	if *seconds > 0 {
		cfg.Calibration.Seconds = *seconds
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
