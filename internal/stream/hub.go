package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/gait_computer/internal/gait"
)

// Subscription receives processor output. Snapshots is latest-wins: a slow
// reader only ever sees the newest snapshot. Steps delivers every step
// exactly once, in detection order.
type Subscription struct {
	Snapshots <-chan Snapshot
	Steps     <-chan gait.StepEvent

	snapshots chan Snapshot
	steps     chan gait.StepEvent
	done      chan struct{}
	closeOnce sync.Once
	hub       *Hub
}

// Close detaches the subscription. The channels are left open; pending
// values are abandoned.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.remove(s)
	})
}

// Hub fans one processor's output out to any number of subscribers. Only
// the goroutine driving the processor may publish or Close the hub.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	evictSlow bool
	slowWait  time.Duration
	evicted   atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// EvictSlowSubscribers makes step delivery wait at most wait for room in a
// subscriber's step buffer. A subscriber that stays full is disconnected:
// its channels are closed after the steps already queued. Other
// subscribers are unaffected. Without this option the publisher waits for
// every subscriber.
func EvictSlowSubscribers(wait time.Duration) HubOption {
	return func(h *Hub) {
		h.evictSlow = true
		h.slowWait = wait
	}
}

// NewHub returns an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{subs: make(map[*Subscription]struct{})}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber. stepBuffer bounds how many steps
// may be queued before the publisher waits on this subscriber.
func (h *Hub) Subscribe(stepBuffer int) *Subscription {
	if stepBuffer < 1 {
		stepBuffer = 1
	}
	s := &Subscription{
		snapshots: make(chan Snapshot, 1),
		steps:     make(chan gait.StepEvent, stepBuffer),
		done:      make(chan struct{}),
		hub:       h,
	}
	s.Snapshots = s.snapshots
	s.Steps = s.steps

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.snapshots)
		close(s.steps)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

func (h *Hub) current() []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		out = append(out, s)
	}
	return out
}

// PublishSnapshot hands snap to every subscriber, replacing any unread one.
func (h *Hub) PublishSnapshot(snap Snapshot) {
	for _, s := range h.current() {
		select {
		case s.snapshots <- snap:
			continue
		default:
		}
		select {
		case <-s.snapshots:
		default:
		}
		select {
		case s.snapshots <- snap:
		default:
		}
	}
}

// PublishStep delivers ev to every subscriber. Each subscriber is handled
// on its own: a slow one delays or, on an evicting hub, loses its
// subscription, but never costs another subscriber a step. It returns
// early only if ctx is done.
func (h *Hub) PublishStep(ctx context.Context, ev gait.StepEvent) error {
	for _, s := range h.current() {
		if err := h.deliverStep(ctx, s, ev); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) deliverStep(ctx context.Context, s *Subscription, ev gait.StepEvent) error {
	select {
	case s.steps <- ev:
		return nil
	case <-s.done:
		return nil
	default:
	}

	var expired <-chan time.Time
	if h.evictSlow {
		if h.slowWait <= 0 {
			h.evict(s)
			return nil
		}
		t := time.NewTimer(h.slowWait)
		defer t.Stop()
		expired = t.C
	}
	select {
	case s.steps <- ev:
	case <-s.done:
	case <-expired:
		h.evict(s)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// evict detaches s and closes its channels so its reader sees the end of
// the stream. Runs on the publishing goroutine, like Close.
func (h *Hub) evict(s *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.evicted.Add(1)
	s.closeOnce.Do(func() { close(s.done) })
	close(s.snapshots)
	close(s.steps)
}

// Evicted counts subscribers disconnected for falling behind.
func (h *Hub) Evicted() int { return int(h.evicted.Load()) }

// Close ends the stream: every subscriber's channels are closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.snapshots)
		close(s.steps)
	}
	h.subs = map[*Subscription]struct{}{}
}

// Each calls the handlers for every value received until the hub closes
// both channels. A nil handler discards that kind of value. Steps and
// snapshots interleave in arrival order.
func (s *Subscription) Each(onSnapshot func(Snapshot), onStep func(gait.StepEvent)) {
	snaps, steps := s.Snapshots, s.Steps
	for snaps != nil || steps != nil {
		select {
		case ev, ok := <-steps:
			if !ok {
				steps = nil
				continue
			}
			if onStep != nil {
				onStep(ev)
			}
		case snap, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			if onSnapshot != nil {
				onSnapshot(snap)
			}
		}
	}
}
