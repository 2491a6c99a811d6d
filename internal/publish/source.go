package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gait_computer/internal/motion"
)

// Subscribing is the part of mqtt.Client the sample source uses.
type Subscribing interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// MQTTSource is a motion.Source fed by JSON samples on an MQTT topic, e.g.
// from a phone bridge. Samples are queued in a bounded buffer; when the
// consumer falls behind, new samples are dropped and counted.
type MQTTSource struct {
	client  Subscribing
	topic   string
	queue   chan motion.Sample
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	invalid atomic.Int64
}

// NewMQTTSource subscribes to topic and starts queueing samples.
func NewMQTTSource(c Subscribing, topic string, buffer int) (*MQTTSource, error) {
	if buffer < 1 {
		buffer = 1
	}
	s := &MQTTSource{
		client: c,
		topic:  topic,
		queue:  make(chan motion.Sample, buffer),
		done:   make(chan struct{}),
	}
	token := c.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s.handle(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
	}
	return s, nil
}

func (s *MQTTSource) handle(payload []byte) {
	var sample motion.Sample
	if err := json.Unmarshal(payload, &sample); err != nil || sample.Time.IsZero() {
		if s.invalid.Add(1) == 1 {
			log.Printf("mqtt source: discarding malformed sample on %s", s.topic)
		}
		return
	}
	select {
	case <-s.done:
	case s.queue <- sample:
	default:
		s.dropped.Add(1)
	}
}

// Next returns the next queued sample. After Close it returns io.EOF.
func (s *MQTTSource) Next(ctx context.Context) (motion.Sample, error) {
	select {
	case <-ctx.Done():
		return motion.Sample{}, ctx.Err()
	case <-s.done:
		return motion.Sample{}, io.EOF
	case sample := <-s.queue:
		return sample, nil
	}
}

// Dropped counts samples lost to a full queue.
func (s *MQTTSource) Dropped() int { return int(s.dropped.Load()) }

// Invalid counts payloads that were not samples.
func (s *MQTTSource) Invalid() int { return int(s.invalid.Load()) }

// Close unsubscribes and ends the stream.
func (s *MQTTSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
			err = fmt.Errorf("MQTT unsubscribe %s: %w", s.topic, token.Error())
		}
	})
	return err
}
