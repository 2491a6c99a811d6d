package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/stream"
)

// Steps a websocket client may fall behind by before it is disconnected.
const liveStepBuffer = 64

// LiveFeed republishes a recorder's live output inside the web process.
// It is fed from one goroutine (the MQTT callback router), which never
// waits on a client: one whose step buffer is full is dropped.
type LiveFeed struct {
	hub    *stream.Hub
	latest atomic.Pointer[stream.Snapshot]
}

func NewLiveFeed() *LiveFeed {
	return &LiveFeed{hub: stream.NewHub(stream.EvictSlowSubscribers(0))}
}

func (f *LiveFeed) Snapshot(snap stream.Snapshot) {
	f.latest.Store(&snap)
	f.hub.PublishSnapshot(snap)
}

func (f *LiveFeed) Step(ev gait.StepEvent) {
	before := f.hub.Evicted()
	if err := f.hub.PublishStep(context.Background(), ev); err != nil {
		log.Printf("web: step delivery: %v", err)
	}
	if n := f.hub.Evicted() - before; n > 0 {
		log.Printf("web: dropped %d live client(s) that fell %d steps behind", n, liveStepBuffer)
	}
}

// Latest returns the newest snapshot, false before the first one.
func (f *LiveFeed) Latest() (stream.Snapshot, bool) {
	p := f.latest.Load()
	if p == nil {
		return stream.Snapshot{}, false
	}
	return *p, true
}

func (f *LiveFeed) Subscribe() *stream.Subscription { return f.hub.Subscribe(liveStepBuffer) }

func (f *LiveFeed) Close() { f.hub.Close() }

// FollowMQTT feeds the live and steps topics into f.
func (f *LiveFeed) FollowMQTT(client mqtt.Client, liveTopic, stepsTopic string) error {
	token := client.Subscribe(liveTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var snap stream.Snapshot
		if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		f.Snapshot(snap)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", liveTopic, token.Error())
	}
	token = client.Subscribe(stepsTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var ev gait.StepEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		f.Step(ev)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", stepsTopic, token.Error())
	}
	return nil
}
