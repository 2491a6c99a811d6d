package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gait_computer/internal/gait"
)

func TestHubSnapshotsLatestWins(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	sub := hub.Subscribe(1)
	for i := 1; i <= 5; i++ {
		hub.PublishSnapshot(Snapshot{Samples: i})
	}
	got := <-sub.Snapshots
	assert.Equal(t, 5, got.Samples)

	select {
	case extra := <-sub.Snapshots:
		t.Fatalf("unexpected extra snapshot %+v", extra)
	default:
	}
}

func TestHubStepsInOrderToEverySubscriber(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	a := hub.Subscribe(16)
	b := hub.Subscribe(16)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, hub.PublishStep(ctx, gait.StepEvent{Time: t0.Add(time.Duration(i) * time.Second)}))
	}
	hub.Close()

	for _, sub := range []*Subscription{a, b} {
		var n int
		for ev := range sub.Steps {
			assert.Equal(t, t0.Add(time.Duration(n)*time.Second), ev.Time)
			n++
		}
		assert.Equal(t, 10, n)
	}
}

func TestHubClosedSubscriptionDoesNotBlock(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	sub := hub.Subscribe(1)
	sub.Close()
	sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		require.NoError(t, hub.PublishStep(ctx, gait.StepEvent{}))
	}
}

func TestHubPublishStepRespectsContext(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	hub.Subscribe(1)
	require.NoError(t, hub.PublishStep(context.Background(), gait.StepEvent{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hub.PublishStep(ctx, gait.StepEvent{}), context.DeadlineExceeded)
}

func TestHubSubscribeAfterClose(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	hub.Close()
	sub := hub.Subscribe(1)
	_, ok := <-sub.Steps
	assert.False(t, ok)
}

func TestHubEvictsOnlyTheStalledSubscriber(t *testing.T) {
	t.Parallel()

	hub := NewHub(EvictSlowSubscribers(0))
	stalled := hub.Subscribe(4)
	healthy := hub.Subscribe(64)

	for i := 0; i < 20; i++ {
		require.NoError(t, hub.PublishStep(context.Background(), gait.StepEvent{Time: t0.Add(time.Duration(i) * time.Second)}))
	}
	assert.Equal(t, 1, hub.Evicted())

	var n int
	for ev := range stalled.Steps {
		assert.Equal(t, t0.Add(time.Duration(n)*time.Second), ev.Time)
		n++
	}
	assert.Equal(t, 4, n, "queued steps survive eviction, then the channel closes")
	_, ok := <-stalled.Snapshots
	assert.False(t, ok)

	hub.Close()
	n = 0
	for ev := range healthy.Steps {
		assert.Equal(t, t0.Add(time.Duration(n)*time.Second), ev.Time)
		n++
	}
	assert.Equal(t, 20, n)
	stalled.Close()
}

func TestHubEvictionWaitsForSlowReader(t *testing.T) {
	t.Parallel()

	hub := NewHub(EvictSlowSubscribers(time.Second))
	sub := hub.Subscribe(1)
	require.NoError(t, hub.PublishStep(context.Background(), gait.StepEvent{}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		<-sub.Steps
	}()
	require.NoError(t, hub.PublishStep(context.Background(), gait.StepEvent{}))
	assert.Zero(t, hub.Evicted())
	hub.Close()
}
