package realtime

import (
	"context"
	"sync"
)

// LocalBroker is an in-process Broker used when Redis is disabled
type LocalBroker struct {
	mu    sync.Mutex
	feeds map[string]map[*localFeed]struct{}
}

// NewLocalBroker creates a new LocalBroker
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{feeds: make(map[string]map[*localFeed]struct{})}
}

type localFeed struct {
	broker *LocalBroker
	topic  string
	ch     chan struct{}
	once   sync.Once
}

func (f *localFeed) C() <-chan struct{} { return f.ch }

func (f *localFeed) Close() error {
	f.once.Do(func() {
		f.broker.mu.Lock()
		delete(f.broker.feeds[f.topic], f)
		if len(f.broker.feeds[f.topic]) == 0 {
			delete(f.broker.feeds, f.topic)
		}
		f.broker.mu.Unlock()
	})
	return nil
}

// Publish implements Broker
func (b *LocalBroker) Publish(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for f := range b.feeds[topic] {
		signal(f.ch)
	}
	return nil
}

// Subscribe implements Broker
func (b *LocalBroker) Subscribe(_ context.Context, topic string) (Feed, error) {
	f := &localFeed{broker: b, topic: topic, ch: make(chan struct{}, 1)}
	b.mu.Lock()
	if b.feeds[topic] == nil {
		b.feeds[topic] = make(map[*localFeed]struct{})
	}
	b.feeds[topic][f] = struct{}{}
	b.mu.Unlock()
	return f, nil
}

// Subscribers returns the number of open feeds on a topic
func (b *LocalBroker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feeds[topic])
}

// Ping implements Broker
func (b *LocalBroker) Ping(context.Context) error { return nil }

// Close implements Broker
func (b *LocalBroker) Close() error { return nil }
