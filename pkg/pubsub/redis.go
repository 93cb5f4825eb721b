package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisBroker initialises a broker backed by Redis Pub/Sub so progress
// events reach subscribers connected to any node.
func NewRedisBroker(client *redis.Client, buffer int) Broker {
	if buffer <= 0 {
		buffer = 32
	}
	return &redisBroker{
		client: client,
		buffer: buffer,
	}
}

type redisBroker struct {
	client *redis.Client
	buffer int
}

func (b *redisBroker) Publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, body).Err()
}

func (b *redisBroker) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so publishes after this
	// call are not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{
		ps: ps,
		ch: make(chan []byte, b.buffer),
	}
	go sub.pump(ctx)
	return sub, nil
}

type redisSubscription struct {
	once sync.Once
	ps   *redis.PubSub
	ch   chan []byte
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		select {
		case s.ch <- []byte(msg.Payload):
		default:
			zerolog.Ctx(ctx).Debug().Str("channel", msg.Channel).Msg("dropping event for slow subscriber")
		}
	}
}

func (s *redisSubscription) Events() <-chan []byte {
	return s.ch
}

func (s *redisSubscription) Close() {
	s.once.Do(func() {
		_ = s.ps.Close()
	})
}
