// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/orientation"
	"github.com/relabs-tech/gait_computer/internal/session"
	"github.com/relabs-tech/gait_computer/internal/stream"
	"github.com/relabs-tech/gait_computer/internal/target"
)

// RunMockConsole walks the whole pipeline in one process with no broker,
// store or hardware: a calibration capture on a fast synthetic walk, then a
// real-time session printed to stdout until ctx is cancelled.
func RunMockConsole(ctx context.Context, cfg *config.Config) error {
	mc := mockConfig(cfg)
	fast := mc
	fast.Paced = false

	cc := captureConfig(cfg)
	cal, err := orientation.Capture(ctx, motion.NewMockSource(fast), cc, nil)
	if err != nil {
		return fmt.Errorf("mock calibration: %w", err)
	}
	log.Printf("mock: calibrated %s pocket, confidence %.2f, good=%v",
		cal.Side, cal.Quality.Confidence(), cal.Quality.IsGood())

	rec := session.NewRecorder(stream.DefaultConfig, cal.Transform, cal.Quality)
	sub := rec.Hub().Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var printed time.Time
		sub.Each(
			func(s stream.Snapshot) {
				if s.Time.Sub(printed) >= time.Second {
					printed = s.Time
					fmt.Println(formatSnapshot(s))
				}
			},
			func(ev gait.StepEvent) { fmt.Println(formatStep(ev)) },
		)
	}()

	err = rec.Run(ctx, motion.NewMockSource(mc))
	<-done
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	sum := rec.Summary(target.Resolver{Policy: target.Policy(cfg.Target.Policy)}.Comparison())
	fmt.Println(formatSummary(sum))
	return nil
}
