package feed

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/handoff/handoff-server/internal/redis"
)

// Bus carries encoded changes between instances.
type Bus interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Subscribe(ctx context.Context, key string) (BusSubscription, error)
}

// BusSubscription delivers payloads in publish order until closed. A nil
// payload means the subscription reconnected and payloads may have been lost.
type BusSubscription interface {
	Messages() <-chan []byte
	Close() error
}

const busBuffer = 256

type redisBus struct {
	client *redisclient.Client
}

// NewRedisBus fans changes out over Redis pub/sub.
func NewRedisBus(client *redisclient.Client) Bus {
	return &redisBus{client: client}
}

func (b *redisBus) Publish(ctx context.Context, key string, payload []byte) error {
	return b.client.Publish(ctx, redisclient.ChangeChannel(key), payload).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, key string) (BusSubscription, error) {
	channel := redisclient.ChangeChannel(key)
	pubsub := b.client.Subscribe(ctx, channel)

	// Wait for the confirmation so publishes after Subscribe returns are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		messages: make(chan []byte, busBuffer),
		close:    pubsub.Close,
	}
	go func() {
		defer close(sub.messages)
		for msg := range pubsub.ChannelWithSubscriptions() {
			switch msg := msg.(type) {
			case *redis.Message:
				sub.messages <- []byte(msg.Payload)
			case *redis.Subscription:
				// go-redis re-subscribes after a dropped connection.
				if msg.Kind == "subscribe" {
					log.Warn().Str("channel", channel).Msg("redis pubsub resubscribed")
					sub.messages <- nil
				}
			}
		}
		log.Debug().Str("channel", channel).Msg("redis pubsub closed")
	}()
	return sub, nil
}

type redisSubscription struct {
	messages chan []byte
	close    func() error
}

func (s *redisSubscription) Messages() <-chan []byte { return s.messages }
func (s *redisSubscription) Close() error            { return s.close() }

// LocalBus delivers within the process. It serves single-instance runs and tests.
type LocalBus struct {
	mu   sync.Mutex
	subs map[string]map[*localSubscription]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[*localSubscription]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[key] {
		select {
		case sub.messages <- payload:
		default:
			log.Warn().Str("key", key).Msg("local bus buffer full, dropping change")
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, key string) (BusSubscription, error) {
	sub := &localSubscription{bus: b, key: key, messages: make(chan []byte, busBuffer)}
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[*localSubscription]struct{})
	}
	b.subs[key][sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// Subscribers counts open subscriptions for key.
func (b *LocalBus) Subscribers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

type localSubscription struct {
	bus      *LocalBus
	key      string
	messages chan []byte
	once     sync.Once
}

func (s *localSubscription) Messages() <-chan []byte { return s.messages }

func (s *localSubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.key], s)
		if len(s.bus.subs[s.key]) == 0 {
			delete(s.bus.subs, s.key)
		}
		close(s.messages)
		s.bus.mu.Unlock()
	})
	return nil
}
