package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/motion"
	"github.com/relabs-tech/gait_computer/internal/session"
	"github.com/relabs-tech/gait_computer/internal/stream"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu       sync.Mutex
	sent     []published
	err      error
	handler  mqtt.MessageHandler
	unsubbed []string
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	return fakeToken{c.err}
}

func (c *fakeClient) Subscribe(_ string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.handler = cb
	return fakeToken{c.err}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.unsubbed = append(c.unsubbed, topics...)
	return fakeToken{}
}

type fakeMessage struct{ payload []byte }

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "gait/samples" }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var topics = Topics{Live: "gait/live", Steps: "gait/steps", Summary: "gait/summary"}

func TestPublisherTopicsAndQoS(t *testing.T) {
	c := &fakeClient{}
	p := NewPublisher(c, topics)

	require.NoError(t, p.Live(stream.Snapshot{CadenceSPM: 101}))
	require.NoError(t, p.Step(gait.StepEvent{MediolateralG: -0.1}))
	require.NoError(t, p.Summary(session.Summary{ID: "abc"}))

	require.Len(t, c.sent, 3)
	assert.Equal(t, published{"gait/live", 0, true, c.sent[0].payload}, c.sent[0])
	assert.Equal(t, "gait/steps", c.sent[1].topic)
	assert.Equal(t, byte(1), c.sent[1].qos)
	assert.False(t, c.sent[1].retained)
	assert.Equal(t, "gait/summary", c.sent[2].topic)

	var snap stream.Snapshot
	require.NoError(t, json.Unmarshal(c.sent[0].payload, &snap))
	assert.Equal(t, 101.0, snap.CadenceSPM)

	c.err = errors.New("broker gone")
	assert.ErrorIs(t, p.Live(stream.Snapshot{}), c.err)
}

func TestForwardPublishesEveryStep(t *testing.T) {
	c := &fakeClient{}
	p := NewPublisher(c, topics)
	hub := stream.NewHub()
	sub := hub.Subscribe(8)

	done := make(chan struct{})
	go func() {
		p.Forward(sub)
		close(done)
	}()

	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, hub.PublishStep(context.Background(), gait.StepEvent{Time: base.Add(time.Duration(i) * 600 * time.Millisecond)}))
	}
	hub.PublishSnapshot(stream.Snapshot{Steps: 5})
	hub.Close()
	<-done

	var steps []gait.StepEvent
	for _, m := range c.sent {
		if m.topic == topics.Steps {
			var ev gait.StepEvent
			require.NoError(t, json.Unmarshal(m.payload, &ev))
			steps = append(steps, ev)
		}
	}
	require.Len(t, steps, 5)
	for i, ev := range steps {
		assert.True(t, ev.Time.Equal(base.Add(time.Duration(i)*600*time.Millisecond)))
	}
}

func TestMQTTSource(t *testing.T) {
	c := &fakeClient{}
	src, err := NewMQTTSource(c, "gait/samples", 2)
	require.NoError(t, err)
	require.NotNil(t, c.handler)

	at := time.Unix(1700000000, 0).UTC()
	deliver := func(s motion.Sample) {
		raw, err := json.Marshal(s)
		require.NoError(t, err)
		c.handler(nil, fakeMessage{raw})
	}
	deliver(motion.Sample{Gravity: motion.Vec3{Y: -1}, Time: at})
	deliver(motion.Sample{Gravity: motion.Vec3{Y: -1}, Time: at.Add(10 * time.Millisecond)})
	deliver(motion.Sample{Time: at.Add(20 * time.Millisecond)}) // queue full
	c.handler(nil, fakeMessage{[]byte("not json")})
	c.handler(nil, fakeMessage{[]byte(`{"gravity":{"x":0,"y":-1,"z":0}}`)})

	assert.Equal(t, 1, src.Dropped())
	assert.Equal(t, 2, src.Invalid())

	ctx := context.Background()
	s, err := src.Next(ctx)
	require.NoError(t, err)
	assert.True(t, s.Time.Equal(at))
	assert.Equal(t, -1.0, s.Gravity.Y)
	_, err = src.Next(ctx)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	_, err = src.Next(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, []string{"gait/samples"}, c.unsubbed)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMQTTSourceSubscribeError(t *testing.T) {
	_, err := NewMQTTSource(&fakeClient{err: errors.New("denied")}, "gait/samples", 4)
	assert.Error(t, err)
}

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { w.closed = true; return nil }

func TestKafkaPublisher(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "gait-sessions")
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"kafka:9092"}, " ")
	assert.Error(t, err)
	kp, err := NewKafkaPublisher([]string{"kafka:9092"}, "gait-sessions")
	require.NoError(t, err)
	require.NotNil(t, kp)
	require.NoError(t, kp.Close())

	w := &recordingWriter{}
	k := &KafkaPublisher{w: w}
	end := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, k.Publish(context.Background(), session.Summary{ID: "sess-1", EndedAt: end, Steps: 42}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "sess-1", string(msg.Key))
	assert.Equal(t, end, msg.Time)
	assert.Equal(t, []kafka.Header{{Key: "schema", Value: []byte(SummarySchema)}}, msg.Headers)
	var got session.Summary
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, 42, got.Steps)

	w.err = errors.New("leader not available")
	assert.ErrorIs(t, k.Publish(context.Background(), session.Summary{ID: "sess-2"}), w.err)

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}
