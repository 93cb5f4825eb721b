package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Publisher fans progress events out to the current subscribers of a channel
// key. Publishing is fire-and-forget: nothing is buffered or replayed for
// subscribers that are absent or slow, and a publish never blocks on them.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Subscriber attaches to a channel key and streams raw event payloads until
// the subscription is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

type Subscription interface {
	Events() <-chan []byte
	Close()
}

// Broker is both ends of the progress channel.
type Broker interface {
	Publisher
	Subscriber
}

// NewMemoryBroker initialises an in-process fan-out broker suitable for tests
// and single-node deployments.
func NewMemoryBroker(buffer int) Broker {
	if buffer <= 0 {
		buffer = 32
	}
	return &memoryBroker{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: buffer,
	}
}

type memoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	buffer int
}

func (b *memoryBroker) Publish(ctx context.Context, channel string, payload any) error {
	if channel == "" {
		return errors.New("channel is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[channel] {
		select {
		case sub.ch <- body:
		default:
			// Drop instead of blocking. Consumers are expected to
			// drain promptly and re-derive state by polling if they
			// miss events.
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(_ context.Context, channel string) (Subscription, error) {
	if channel == "" {
		return nil, errors.New("channel is required")
	}
	sub := &memorySubscription{
		broker:  b,
		channel: channel,
		ch:      make(chan []byte, b.buffer),
	}
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySubscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

type memorySubscription struct {
	once    sync.Once
	broker  *memoryBroker
	channel string
	ch      chan []byte
}

func (s *memorySubscription) Events() <-chan []byte {
	return s.ch
}

func (s *memorySubscription) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs[s.channel], s)
		if len(s.broker.subs[s.channel]) == 0 {
			delete(s.broker.subs, s.channel)
		}
		s.broker.mu.Unlock()
		close(s.ch)
	})
}
