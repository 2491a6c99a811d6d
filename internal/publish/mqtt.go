// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package publish moves samples, live metrics and session summaries over
// MQTT and Kafka.
package publish

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/session"
	"github.com/relabs-tech/gait_computer/internal/stream"
)

// Connect dials the broker and waits for the connection.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// Publishing is the part of mqtt.Client the publisher uses.
type Publishing interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Topics names where each kind of output goes.
type Topics struct {
	Live    string
	Steps   string
	Summary string
}

// Publisher sends recorder output to MQTT. Live snapshots are retained so
// a late subscriber sees the current state; steps go at QoS 1 so none are
// lost.
type Publisher struct {
	client Publishing
	topics Topics
}

func NewPublisher(c Publishing, t Topics) *Publisher {
	return &Publisher{client: c, topics: t}
}

func (p *Publisher) send(topic string, qos byte, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	if token := p.client.Publish(topic, qos, retained, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) Live(snap stream.Snapshot) error {
	return p.send(p.topics.Live, 0, true, snap)
}

func (p *Publisher) Step(ev gait.StepEvent) error {
	return p.send(p.topics.Steps, 1, false, ev)
}

func (p *Publisher) Summary(s session.Summary) error {
	return p.send(p.topics.Summary, 1, true, s)
}

// Forward publishes everything sub receives until its hub closes. Publish
// failures are logged and skipped.
func (p *Publisher) Forward(sub *stream.Subscription) {
	sub.Each(
		func(snap stream.Snapshot) {
			if err := p.Live(snap); err != nil {
				log.Printf("publish: %v", err)
			}
		},
		func(ev gait.StepEvent) {
			if err := p.Step(ev); err != nil {
				log.Printf("publish: %v", err)
			}
		},
	)
}
