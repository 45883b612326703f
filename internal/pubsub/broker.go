package pubsub

import (
	"log/slog"
	"sync"

	"github.com/rfglabs/deathroll/internal/model"
)

// Buffer size for subscription channels
const subscriptionBufferSize = 64

// Broker is the publish/subscribe seam between state mutations and
// transports. Publish is fire-and-forget and never blocks the caller:
// a subscriber that cannot keep up has events dropped and must
// resynchronize from a room snapshot.
type Broker interface {
	// Publish delivers the event to all current subscribers of the topic.
	Publish(topic string, event model.Event)
	// Subscribe registers interest in a topic. The returned subscription
	// must be closed when no longer needed.
	Subscribe(topic string) *Subscription
}

// Subscription is a single subscriber's handle on a topic.
type Subscription struct {
	// C delivers events in publish order for the topic.
	C <-chan model.Event

	topic  string
	ch     chan model.Event
	broker *MemoryBroker
	once   sync.Once
}

// Close unregisters the subscription and releases its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s.topic, s)
		close(s.ch)
	})
}

// MemoryBroker is an in-process Broker implementation.
//
// Events for one topic are fanned out under a single lock, so subscribers
// observe them in the same order the underlying state transitions
// committed. There is no cross-topic ordering guarantee.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	logger *slog.Logger
}

// NewMemoryBroker creates a new in-process broker
func NewMemoryBroker(logger *slog.Logger) *MemoryBroker {
	return &MemoryBroker{
		topics: make(map[string]map[*Subscription]struct{}),
		logger: logger.With(slog.String("component", "pubsub")),
	}
}

var _ Broker = (*MemoryBroker)(nil)

// Publish delivers the event to all subscribers of the topic without
// blocking. Full subscriber buffers drop the event.
func (b *MemoryBroker) Publish(topic string, event model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.topics[topic]
	if len(subs) == 0 {
		return
	}

	dropped := 0
	for sub := range subs {
		select {
		case sub.ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.logger.Warn("events dropped - subscriber buffer full",
			slog.String("topic", topic),
			slog.String("event", string(event.Type)),
			slog.Int("dropped", dropped))
	}
}

// Subscribe registers a new subscription on the topic.
func (b *MemoryBroker) Subscribe(topic string) *Subscription {
	ch := make(chan model.Event, subscriptionBufferSize)
	sub := &Subscription{
		C:      ch,
		topic:  topic,
		ch:     ch,
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*Subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub
}

func (b *MemoryBroker) remove(topic string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
}

// SubscriberCount returns the number of subscribers on a topic.
func (b *MemoryBroker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
