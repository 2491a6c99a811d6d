// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/metrics"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/publish"
	"github.com/relabs-tech/gait_computer/internal/sensors"
)

// mockConfig turns the sampling section into a real-time synthetic walk.
func mockConfig(cfg *config.Config) motion.MockConfig {
	m := motion.DefaultMockConfig
	m.Hz = cfg.Sampling.Hz
	if cfg.Sampling.CadenceSPM > 0 {
		m.CadenceSPM = cfg.Sampling.CadenceSPM
	}
	if cfg.Sampling.SwayG > 0 {
		m.SwayG = cfg.Sampling.SwayG
	}
	m.Paced = true
	m.Start = time.Now()
	return m
}

// How often queue-full drops of the mqtt source reach the metrics.
const dropReportInterval = time.Second

// openSource builds the configured motion source. client is only used by
// the mqtt kind and may be nil otherwise; m may be nil. The returned close
// func is never nil.
func openSource(cfg *config.Config, client publish.Subscribing, m *metrics.Metrics) (motion.Source, func(), error) {
	switch cfg.Sampling.Source {
	case config.SourceMock:
		log.Printf("source: mock walk at %.0f spm, %.0f Hz", mockConfig(cfg).CadenceSPM, cfg.Sampling.Hz)
		return motion.NewMockSource(mockConfig(cfg)), func() {}, nil

	case config.SourceMQTT:
		if client == nil {
			return nil, nil, fmt.Errorf("source: mqtt source needs a broker connection")
		}
		src, err := publish.NewMQTTSource(client, cfg.MQTT.TopicSamples, cfg.Sampling.Buffer)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("source: subscribed to %s", cfg.MQTT.TopicSamples)
		stopDrops := reportDrops(src, m, dropReportInterval)
		return src, func() {
			if err := src.Close(); err != nil {
				log.Printf("source: %v", err)
			}
			stopDrops()
			if n := src.Dropped(); n > 0 {
				log.Printf("source: dropped %d samples (queue full)", n)
			}
		}, nil

	case config.SourceIMU:
		dev, err := sensors.OpenMPU9250(sensors.IMUConfig{
			SPIDevice:  cfg.IMU.SPIDevice,
			CSPin:      cfg.IMU.CSPin,
			AccelRange: cfg.IMU.AccelRange,
		})
		if err != nil {
			return nil, nil, err
		}
		src, err := sensors.NewIMUSource(dev, cfg.IMU.AccelRange, cfg.Sampling.Hz, cfg.IMU.GravityAlpha)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("source: MPU9250 on %s at %.0f Hz", cfg.IMU.SPIDevice, cfg.Sampling.Hz)
		return src, src.Close, nil

	case config.SourceReplay:
		f, err := os.Open(cfg.Sampling.ReplayFile)
		if err != nil {
			return nil, nil, fmt.Errorf("source: %w", err)
		}
		defer f.Close()
		samples, err := motion.LoadSamples(f)
		if err != nil {
			return nil, nil, fmt.Errorf("source: %s: %w", cfg.Sampling.ReplayFile, err)
		}
		log.Printf("source: replaying %d samples from %s", len(samples), cfg.Sampling.ReplayFile)
		return motion.NewReplaySource(samples), func() {}, nil
	}
	return nil, nil, fmt.Errorf("source: unknown kind %q", cfg.Sampling.Source)
}

// reportDrops feeds growth of src.Dropped() into m every interval until the
// returned stop func is called; stop flushes the remainder.
func reportDrops(src interface{ Dropped() int }, m *metrics.Metrics, interval time.Duration) (stop func()) {
	var (
		mu       sync.Mutex
		reported int
	)
	flush := func() {
		mu.Lock()
		defer mu.Unlock()
		n := src.Dropped()
		m.SamplesDropped(n - reported)
		reported = n
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				flush()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
			flush()
		})
	}
}
