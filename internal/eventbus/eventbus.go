// Package eventbus implements a small in-process topic-addressable pub/sub,
// used to relay pnr.fetched events from the aggregator to the WebSocket
// broadcast bridge. Delivery is at-most-once: each subscriber owns a
// bounded channel, and a full subscriber loses its oldest buffered event
// rather than ever blocking a publisher.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/pnragg/service/internal/pnragg"
)

const subscriberChanSize = 64

// Subscription is a live subscriber's handle. Events arrives on Events; the
// subscriber must call Close when done to free its slot.
type Subscription struct {
	Events <-chan pnragg.Event
	bus    *Bus
	topic  string
	ch     chan pnragg.Event
}

// Close unsubscribes and releases the channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.topic, s.ch)
}

// Bus is an in-process, at-most-once, no-persistence event bus. The zero
// value is not usable; construct with New.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan pnragg.Event]struct{}

	// onDrop, when set, is invoked whenever a subscriber's channel is full
	// and the oldest buffered event is discarded to make room. Tests and
	// telemetry wire this to count drops.
	onDrop func(topic string)
}

// New creates an empty Bus. onDrop may be nil.
func New(onDrop func(topic string)) *Bus {
	return &Bus{
		subs:   make(map[string]map[chan pnragg.Event]struct{}),
		onDrop: onDrop,
	}
}

// Subscribe registers interest in topic and returns a Subscription whose
// Events channel receives every subsequent Publish for that topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	ch := make(chan pnragg.Event, subscriberChanSize)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan pnragg.Event]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	return &Subscription{Events: ch, bus: b, topic: topic, ch: ch}
}

func (b *Bus) unsubscribe(topic string, ch chan pnragg.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[topic]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
}

// Publish fans event out to every current subscriber of its topic. A
// subscriber whose channel is full has its oldest buffered event dropped to
// make room — Publish never blocks on a slow consumer.
func (b *Bus) Publish(event pnragg.Event) {
	b.mu.RLock()
	subs := b.subs[event.Topic]
	chans := make([]chan pnragg.Event, 0, len(subs))
	for ch := range subs {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
			// Full: drop the oldest entry and retry once; a slow
			// subscriber must never block the publisher.
			select {
			case <-ch:
				slog.Warn("oldest event dropped, subscriber channel full", "topic", event.Topic)
				if b.onDrop != nil {
					b.onDrop(event.Topic)
				}
			default:
			}
			select {
			case ch <- event:
			default:
				slog.Warn("event dropped, subscriber channel full", "topic", event.Topic)
				if b.onDrop != nil {
					b.onDrop(event.Topic)
				}
			}
		}
	}
}

// SubscriberCount returns the number of live subscribers for topic, used in
// health/diagnostic reporting.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
