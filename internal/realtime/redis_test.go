package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBroker(t *testing.T) (*RedisBroker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	broker := NewRedisBroker(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = broker.Close() })
	return broker, mr
}

func TestRedisBroker_PublishReachesSubscriber(t *testing.T) {
	broker, _ := newRedisBroker(t)
	ctx := context.Background()

	feed, err := broker.Subscribe(ctx, SessionsTopic("app", "u1"))
	require.NoError(t, err)
	defer feed.Close()

	require.NoError(t, broker.Publish(ctx, SessionsTopic("app", "u1")))

	select {
	case <-feed.C():
	case <-time.After(2 * time.Second):
		t.Fatal("no signal after publish")
	}
}

func TestRedisBroker_TopicsAreIsolated(t *testing.T) {
	broker, mr := newRedisBroker(t)
	ctx := context.Background()

	feed, err := broker.Subscribe(ctx, MessagesTopic("app", "u1", "s1"))
	require.NoError(t, err)
	defer feed.Close()

	require.NoError(t, broker.Publish(ctx, MessagesTopic("app", "u1", "s2")))
	channel := redisChannelPrefix + MessagesTopic("app", "u1", "s1")
	assert.Equal(t, 1, mr.PubSubNumSub(channel)[channel])

	select {
	case <-feed.C():
		t.Fatal("signal from another topic")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisBroker_WatchReloadsOnPublish(t *testing.T) {
	broker, _ := newRedisBroker(t)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (int, error) {
		loads++
		return loads, nil
	}
	rec := &recorder{}

	sub, err := Watch(ctx, broker, TradeLogsTopic("app", "u1"), load, rec.emit, nil)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, broker.Publish(ctx, TradeLogsTopic("app", "u1")))
	assert.Eventually(t, func() bool {
		last, _ := rec.last()
		return last == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBroker_FeedCloseUnsubscribes(t *testing.T) {
	broker, mr := newRedisBroker(t)
	ctx := context.Background()
	channel := redisChannelPrefix + MarketTopic

	feed, err := broker.Subscribe(ctx, MarketTopic)
	require.NoError(t, err)
	assert.Equal(t, 1, mr.PubSubNumSub(channel)[channel])

	require.NoError(t, feed.Close())
	require.NoError(t, feed.Close())
	assert.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBroker_PingAndOutage(t *testing.T) {
	broker, mr := newRedisBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Ping(ctx))

	mr.Close()
	assert.Error(t, broker.Ping(ctx))
	assert.Error(t, broker.Publish(ctx, MarketTopic))
	_, err := broker.Subscribe(ctx, MarketTopic)
	assert.Error(t, err)
}
