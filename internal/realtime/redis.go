package realtime

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "aura:changes:"

// RedisBroker distributes change notifications through Redis pub/sub so that
// every server instance sees writes made by the others.
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker creates a new RedisBroker
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

type redisFeed struct {
	pubsub *redis.PubSub
	ch     chan struct{}
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func (f *redisFeed) C() <-chan struct{} { return f.ch }

func (f *redisFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.pubsub.Close()
		f.wg.Wait()
	})
	return err
}

func (f *redisFeed) forward() {
	defer f.wg.Done()
	msgs := f.pubsub.Channel()
	for {
		select {
		case <-f.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			signal(f.ch)
		}
	}
}

// Publish implements Broker
func (b *RedisBroker) Publish(ctx context.Context, topic string) error {
	return errors.Wrap(b.rdb.Publish(ctx, redisChannelPrefix+topic, "changed").Err(), "redis publish")
}

// Subscribe implements Broker. It returns once Redis has confirmed the
// subscription, so no publish issued afterwards is missed.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Feed, error) {
	pubsub := b.rdb.Subscribe(ctx, redisChannelPrefix+topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "redis subscribe")
	}

	f := &redisFeed{
		pubsub: pubsub,
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	f.wg.Add(1)
	go f.forward()
	return f, nil
}

// Ping implements Broker
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close implements Broker
func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
