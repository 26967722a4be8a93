package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketService_StartsLoading(t *testing.T) {
	svc := NewMarketService(&fakeBackend{}, realtime.NewLocalBroker(), nil, nil)
	snap := svc.Snapshot()
	assert.True(t, snap.Loading)
	assert.Empty(t, snap.Prices)
}

func TestMarketService_RefreshFailureFallsBackToMock(t *testing.T) {
	fb := &fakeBackend{pricesErr: errBackendDown}
	svc := NewMarketService(fb, realtime.NewLocalBroker(), nil, nil)

	err := svc.Refresh(context.Background())
	require.Error(t, err)

	snap := svc.Snapshot()
	assert.False(t, snap.Loading)
	assert.True(t, snap.Mock)
	assert.Equal(t, "Failed to load live market prices: the service is unreachable", snap.Error)
	assert.Equal(t, models.MockMarketPrices(), snap.Prices)
}

func TestMarketService_RefreshSuccessReplacesSnapshot(t *testing.T) {
	fb := &fakeBackend{pricesErr: errBackendDown}
	svc := NewMarketService(fb, realtime.NewLocalBroker(), nil, nil)
	require.Error(t, svc.Refresh(context.Background()))

	fb.pricesErr = nil
	fb.prices = map[string]models.MarketData{"EURUSD": {Price: 1.1, ORSCRSignal: "BUY"}}
	require.NoError(t, svc.Refresh(context.Background()))

	snap := svc.Snapshot()
	assert.False(t, snap.Mock)
	assert.Empty(t, snap.Error)
	assert.Len(t, snap.Prices, 1)

	data, ok := svc.Price("eurusd")
	require.True(t, ok)
	assert.Equal(t, 1.1, data.Price)

	_, ok = svc.Price("BTCUSD")
	assert.False(t, ok)
}

func TestMarketService_CancelledRefreshKeepsLiveSnapshot(t *testing.T) {
	fb := &fakeBackend{prices: map[string]models.MarketData{"EURUSD": {Price: 1.1}}}
	svc := NewMarketService(fb, realtime.NewLocalBroker(), nil, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	before := svc.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fb.pricesErr = context.Canceled

	err := svc.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	snap := svc.Snapshot()
	assert.False(t, snap.Mock)
	assert.Empty(t, snap.Error)
	assert.Equal(t, before, snap)
}

func TestMarketService_WatchEmitsAfterRefresh(t *testing.T) {
	fb := &fakeBackend{prices: map[string]models.MarketData{"USDJPY": {Price: 150}}}
	svc := NewMarketService(fb, realtime.NewLocalBroker(), nil, nil)

	got := make(chan models.MarketSnapshot, 4)
	sub, err := svc.Watch(context.Background(), func(s models.MarketSnapshot) { got <- s })
	require.NoError(t, err)
	defer sub.Close()

	first := <-got
	assert.True(t, first.Loading)

	require.NoError(t, svc.Refresh(context.Background()))
	select {
	case snap := <-got:
		assert.False(t, snap.Loading)
		assert.Equal(t, 150.0, snap.Prices["USDJPY"].Price)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after refresh")
	}
}

func TestMarketService_SnapshotIsCopy(t *testing.T) {
	fb := &fakeBackend{prices: map[string]models.MarketData{"EURUSD": {Price: 1.1}}}
	svc := NewMarketService(fb, realtime.NewLocalBroker(), nil, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	snap := svc.Snapshot()
	snap.Prices["EURUSD"] = models.MarketData{Price: 9}

	data, _ := svc.Price("EURUSD")
	assert.Equal(t, 1.1, data.Price)
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestMarketService_CachesLiveSnapshotAndRestores(t *testing.T) {
	rdb, mr := newTestRedis(t)
	ctx := context.Background()

	fb := &fakeBackend{prices: map[string]models.MarketData{"EURUSD": {Price: 1.1, ORSCRSignal: "BUY"}}}
	first := NewMarketService(fb, realtime.NewLocalBroker(), rdb, nil)
	require.NoError(t, first.Refresh(ctx))

	require.True(t, mr.Exists(marketSnapshotKey))
	assert.Equal(t, marketSnapshotTTL, mr.TTL(marketSnapshotKey))

	restarted := NewMarketService(&fakeBackend{}, realtime.NewLocalBroker(), rdb, nil)
	require.True(t, restarted.Restore(ctx))

	snap := restarted.Snapshot()
	assert.False(t, snap.Loading)
	assert.False(t, snap.Mock)
	data, ok := restarted.Price("EURUSD")
	require.True(t, ok)
	assert.Equal(t, 1.1, data.Price)

	// a live snapshot is never replaced by the cache
	assert.False(t, first.Restore(ctx))
}

func TestMarketService_MockFallbackIsNotCached(t *testing.T) {
	rdb, mr := newTestRedis(t)
	ctx := context.Background()

	svc := NewMarketService(&fakeBackend{pricesErr: errBackendDown}, realtime.NewLocalBroker(), rdb, nil)
	require.Error(t, svc.Refresh(ctx))
	assert.False(t, mr.Exists(marketSnapshotKey))

	restarted := NewMarketService(&fakeBackend{}, realtime.NewLocalBroker(), rdb, nil)
	assert.False(t, restarted.Restore(ctx))
	assert.True(t, restarted.Snapshot().Loading)
}

func TestMarketService_RestoreIgnoresCorruptCache(t *testing.T) {
	rdb, mr := newTestRedis(t)
	require.NoError(t, mr.Set(marketSnapshotKey, "{not json"))

	svc := NewMarketService(&fakeBackend{}, realtime.NewLocalBroker(), rdb, nil)
	assert.False(t, svc.Restore(context.Background()))
	assert.True(t, svc.Snapshot().Loading)
}

func TestMarketService_RedisOutageDoesNotFailRefresh(t *testing.T) {
	rdb, mr := newTestRedis(t)
	mr.Close()

	fb := &fakeBackend{prices: map[string]models.MarketData{"USDJPY": {Price: 150}}}
	svc := NewMarketService(fb, realtime.NewLocalBroker(), rdb, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	assert.False(t, svc.Snapshot().Mock)
	assert.False(t, svc.Restore(context.Background()))
}
