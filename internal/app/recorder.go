// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/gps"
	"github.com/relabs-tech/gait_computer/internal/metrics"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/orientation"
	"github.com/relabs-tech/gait_computer/internal/publish"
	"github.com/relabs-tech/gait_computer/internal/session"
	"github.com/relabs-tech/gait_computer/internal/store"
	"github.com/relabs-tech/gait_computer/internal/stream"
	"github.com/relabs-tech/gait_computer/internal/target"
)

// How long a finished session may take to save and export.
const finishTimeout = 10 * time.Second

// SummaryExporter ships a finished session somewhere outside the device.
type SummaryExporter interface {
	Publish(ctx context.Context, s session.Summary) error
}

// Pipeline records one session from a motion source and files the result.
// Store is required; every other collaborator is optional.
type Pipeline struct {
	Store   *store.Store
	Policy  target.Policy
	Stream  stream.Config
	MQTT    *publish.Publisher
	Export  SummaryExporter
	Metrics *metrics.Metrics
	Speed   *gps.SpeedTracker
	Clock   func() time.Time
}

// calibration loads the latest saved calibration. Without one the session
// runs on device axes and is flagged as uncalibrated.
func (p *Pipeline) calibration(ctx context.Context) (orientation.Result, error) {
	cal, err := p.Store.LatestCalibration(ctx)
	if errors.Is(err, store.ErrNotFound) {
		log.Println("recorder: no calibration saved, metrics use device axes")
		return orientation.Result{}, nil
	}
	if err != nil {
		return orientation.Result{}, err
	}
	log.Printf("recorder: using calibration %s (%s pocket, confidence %.2f)",
		cal.ID, cal.Result.Side, cal.Result.Quality.Confidence())
	return cal.Result, nil
}

// Record runs a session until src ends or ctx is cancelled, then saves and
// publishes the summary.
func (p *Pipeline) Record(ctx context.Context, src motion.Source) (session.Summary, error) {
	cal, err := p.calibration(ctx)
	if err != nil {
		return session.Summary{}, err
	}
	resolver, err := p.Store.Resolver(ctx, p.Policy)
	if err != nil {
		return session.Summary{}, err
	}

	opts := []session.Option{session.WithMetrics(p.Metrics)}
	if p.Speed != nil {
		p.Speed.Reset()
		opts = append(opts, session.WithSpeedSource(p.Speed))
	}
	if p.Clock != nil {
		opts = append(opts, session.WithClock(p.Clock))
	}
	rec := session.NewRecorder(p.Stream, cal.Transform, cal.Quality, opts...)
	log.Printf("recorder: session %s started (target %s)", rec.ID(), resolver.Policy)

	var wg sync.WaitGroup
	if p.MQTT != nil {
		sub := rec.Hub().Subscribe(256)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.MQTT.Forward(sub)
		}()
	}

	runErr := rec.Run(ctx, src)
	wg.Wait()
	if runErr != nil {
		log.Printf("recorder: session %s stopped: %v", rec.ID(), runErr)
	}

	sum := rec.Summary(resolver.Comparison())
	if err := p.finish(context.WithoutCancel(ctx), sum); err != nil {
		return sum, err
	}
	return sum, runErr
}

func (p *Pipeline) finish(ctx context.Context, sum session.Summary) error {
	ctx, cancel := context.WithTimeout(ctx, finishTimeout)
	defer cancel()

	if err := p.Store.SaveSession(ctx, sum); err != nil {
		return err
	}
	p.Metrics.SessionRecorded()
	log.Printf("recorder: session %s saved: %d steps, cadence %.1f spm, sway %.3fg, asym %.1f%%, score %d, tags %v",
		sum.ID, sum.Steps, sum.Metrics.CadenceSPM, sum.Metrics.MLSwayRMS, sum.AsymStepTimePct, sum.Score.Total, sum.Tags)

	if p.MQTT != nil {
		if err := p.MQTT.Summary(sum); err != nil {
			log.Printf("recorder: %v", err)
		}
	}
	if p.Export != nil {
		if err := p.Export.Publish(ctx, sum); err != nil {
			log.Printf("recorder: export failed: %v", err)
		}
	}
	return nil
}

// trackGPS feeds fixes published on the GPS topic into tracker.
func trackGPS(client mqtt.Client, topic string, tracker *gps.SpeedTracker) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("recorder: gps unmarshal error: %v", err)
			return
		}
		tracker.Add(f)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// RunRecorder records one walking session with the configured source and
// outputs. It returns when the source ends or ctx is cancelled.
func RunRecorder(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := publish.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientIDRecorder)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("recorder: connected to MQTT broker at %s", cfg.MQTT.Broker)

	p := &Pipeline{
		Store:   st,
		Policy:  target.Policy(cfg.Target.Policy),
		Stream:  stream.DefaultConfig,
		Metrics: metrics.New(),
		MQTT: publish.NewPublisher(client, publish.Topics{
			Live:    cfg.MQTT.TopicLive,
			Steps:   cfg.MQTT.TopicSteps,
			Summary: cfg.MQTT.TopicSummary,
		}),
	}

	if cfg.GPS.Enabled {
		p.Speed = gps.NewSpeedTracker()
		if err := trackGPS(client, cfg.MQTT.TopicGPS, p.Speed); err != nil {
			return err
		}
		log.Printf("recorder: gait speed from %s", cfg.MQTT.TopicGPS)
	}

	if cfg.Kafka.Enabled {
		kp, err := publish.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer kp.Close()
		p.Export = kp
	}

	src, closeSrc, err := openSource(cfg, client, p.Metrics)
	if err != nil {
		return err
	}
	defer closeSrc()

	_, err = p.Record(ctx, src)
	return err
}
