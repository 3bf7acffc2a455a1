package bus

import (
	"log/slog"
	"sync"

	"github.com/funpr/verza-invest-ai/internal/domain"
	"github.com/funpr/verza-invest-ai/internal/metrics"
)

// SiteKey is the single subscription key of the site-wide metadata bus.
const SiteKey = "site"

// subscriberBuffer bounds the per-subscriber queue. On overflow the event is
// dropped for that subscriber only (at-most-once, best-effort delivery).
const subscriberBuffer = 16

type subscriber struct {
	ch chan domain.Event
}

// Bus fans out events to every subscriber of a key. Subscriptions and
// publishes happen concurrently from independent request handlers and stream
// lifecycles, so every access to the subscriber sets goes through one mutex.
type Bus struct {
	name string

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// New creates an empty bus. The name only labels logs and metrics.
func New(name string) *Bus {
	return &Bus{
		name: name,
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers a listener under key and returns its receive channel
// plus a cancel func. Cancel removes exactly this listener and closes the
// channel; calling it more than once is a no-op.
func (b *Bus) Subscribe(key string) (<-chan domain.Event, func()) {
	sub := &subscriber{ch: make(chan domain.Event, subscriberBuffer)}

	b.mu.Lock()
	set, ok := b.subs[key]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[key] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	metrics.BusSubscribersCurrent.WithLabelValues(b.name).Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[key]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(b.subs, key)
				}
			}
			// Closed under the same lock that guards publish sends, so a
			// concurrent Publish can never write to the closed channel.
			close(sub.ch)
			b.mu.Unlock()

			metrics.BusSubscribersCurrent.WithLabelValues(b.name).Dec()
		})
	}

	return sub.ch, cancel
}

// Publish delivers ev to every subscriber currently registered under key,
// in publish order per subscriber. No subscribers is a no-op. Publish never
// blocks: a subscriber whose buffer is full misses this event.
func (b *Bus) Publish(key string, ev domain.Event) {
	metrics.BusEventsPublishedTotal.WithLabelValues(b.name, ev.EventType()).Inc()

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[key] {
		select {
		case sub.ch <- ev:
		default:
			metrics.BusEventsDroppedTotal.WithLabelValues(b.name).Inc()
			slog.Warn("Dropping event for slow subscriber",
				"bus", b.name,
				"key", key,
				"event_type", ev.EventType(),
			)
		}
	}
}

// SubscriberCount returns the number of listeners registered under key.
func (b *Bus) SubscriberCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}
