// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/publish"
)

// publishSamples copies src to topic until it ends or ctx is cancelled.
// Samples are sent at QoS 0: a late sample is worth less than the next one.
// It returns how many samples were published.
func publishSamples(ctx context.Context, src motion.Source, c publish.Publishing, topic string, logEvery int) (int, error) {
	n := 0
	for {
		s, err := src.Next(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		payload, err := json.Marshal(s)
		if err != nil {
			return n, fmt.Errorf("json marshal error (sample): %w", err)
		}
		if token := c.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (%s): %v", topic, token.Error())
			continue
		}
		n++
		if logEvery > 0 && n%logEvery == 0 {
			g, a := s.Gravity, s.UserAccel
			log.Printf("%s tick: %d samples | gravity %.2f %.2f %.2f | accel %.2f %.2f %.2f",
				s.Time.Format("15:04:05.000"), n, g.X, g.Y, g.Z, a.X, a.Y, a.Z)
		}
	}
}

// RunProducer reads the configured local source (mock, imu or replay) and
// publishes raw samples for a recorder elsewhere to consume.
func RunProducer(ctx context.Context, cfg *config.Config) error {
	if cfg.Sampling.Source == config.SourceMQTT {
		return fmt.Errorf("producer: source must be %s, %s or %s, not %s",
			config.SourceMock, config.SourceIMU, config.SourceReplay, config.SourceMQTT)
	}
	src, closeSrc, err := openSource(cfg, nil, nil)
	if err != nil {
		return err
	}
	defer closeSrc()

	client, err := publish.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT, publishing samples to %s", cfg.MQTT.TopicSamples)

	n, err := publishSamples(ctx, src, client, cfg.MQTT.TopicSamples, int(cfg.Sampling.Hz))
	log.Printf("producer: stopped after %d samples", n)
	return err
}
