package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/andyk/ht/internal/logger"
)

// DefaultQueueSize bounds each subscriber's queue.
const DefaultQueueSize = 128

// dropLogThreshold rate-limits the slow-subscriber warning.
const dropLogThreshold = 100

// Subscriber is one consumer of the event stream: a type filter plus an
// isolated bounded queue. A subscriber that falls behind loses its oldest
// events; it never blocks the publisher or other subscribers.
type Subscriber struct {
	ID     string
	filter map[Type]bool
	ch     chan Event

	// dropped is only touched by the publishing goroutine.
	dropped uint64
}

// Events is the receive side of the subscriber's queue. It is closed when
// the subscriber is removed or the bus shuts down.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Wants reports whether the subscriber's filter admits the given type.
func (s *Subscriber) Wants(t Type) bool {
	return s.filter[t]
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped
}

// push enqueues one event, discarding the oldest queued event when full.
// Callers hold the bus lock, which also excludes a concurrent close of the
// queue.
func (s *Subscriber) push(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}

	// Queue full: make room by dropping the oldest entry, then retry once.
	select {
	case <-s.ch:
		s.dropped++
		if s.dropped%dropLogThreshold == 1 {
			logger.Warnf("subscriber %s is slow, dropped %d events", s.ID, s.dropped)
		}
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped++
	}
}

// Bus fans events out from a single publisher (the session loop) to any
// number of subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]*Subscriber
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscriber)}
}

// Subscribe registers a new subscriber with the given filter. The returned
// subscriber receives events published after this call, in publication
// order.
func (b *Bus) Subscribe(filter map[Type]bool) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		filter: filter,
		ch:     make(chan Event, DefaultQueueSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its queue.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; !ok {
		return
	}
	delete(b.subs, sub.ID)
	close(sub.ch)
}

// Seed enqueues an event for one subscriber only, if it is still registered
// and its filter admits the type. The session loop uses it to deliver the
// synthesized init event at subscription time.
func (b *Bus) Seed(sub *Subscriber, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; !ok {
		return
	}
	if sub.Wants(ev.Type) {
		sub.push(ev)
	}
}

// Publish delivers an event to every subscriber whose filter admits it.
// It never blocks: slow subscribers drop their oldest events instead.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.Wants(ev.Type) {
			sub.push(ev)
		}
	}
}

// Close shuts the bus down and closes every subscriber queue. Subsequent
// Publish and Subscribe calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
