package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/aura-bot/internal/backend"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/realtime"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	marketSnapshotKey = "aura:market:snapshot"
	marketSnapshotTTL = time.Minute
)

// MarketBackend fetches live prices
type MarketBackend interface {
	MarketPrices(ctx context.Context) (map[string]models.MarketData, error)
}

// MarketService holds the latest market snapshot shared by every dashboard.
// Until the first refresh completes the snapshot is in the loading state.
type MarketService struct {
	backend MarketBackend
	broker  realtime.Broker
	redis   *redis.Client
	logger  *zap.Logger

	mu       sync.RWMutex
	snapshot models.MarketSnapshot
}

// NewMarketService creates a new MarketService. redisClient may be nil.
func NewMarketService(backend MarketBackend, broker realtime.Broker, redisClient *redis.Client, logger *zap.Logger) *MarketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketService{
		backend:  backend,
		broker:   broker,
		redis:    redisClient,
		logger:   logger,
		snapshot: models.MarketSnapshot{Prices: map[string]models.MarketData{}, Loading: true},
	}
}

// Snapshot returns a copy of the current market state
func (s *MarketService) Snapshot() models.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snapshot)
}

// Price returns the latest data of one symbol
func (s *MarketService) Price(symbol string) (models.MarketData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.snapshot.Prices[strings.ToUpper(symbol)]
	return data, ok
}

// Refresh fetches prices from the backend. When the backend stays
// unreachable after its retries, the snapshot falls back to the mock data set
// with the error recorded, and the error is returned. A refresh cut short by
// ctx leaves the snapshot as it was.
func (s *MarketService) Refresh(ctx context.Context) error {
	prices, err := s.backend.MarketPrices(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	next := models.MarketSnapshot{UpdatedAt: time.Now().UTC()}
	if err != nil {
		s.logger.Warn("market refresh failed, using mock prices", zap.Error(err))
		next.Prices = models.MockMarketPrices()
		next.Mock = true
		next.Error = "Failed to load live market prices: " + backend.Reason(err)
	} else {
		next.Prices = prices
	}

	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()

	if err == nil {
		s.cache(ctx, next)
	}
	if perr := s.broker.Publish(ctx, realtime.MarketTopic); perr != nil {
		s.logger.Warn("publish market refresh failed", zap.Error(perr))
	}
	return err
}

// Restore loads the last live snapshot cached in Redis, so a restarted
// instance serves prices before its first refresh.
func (s *MarketService) Restore(ctx context.Context) bool {
	if s.redis == nil {
		return false
	}
	data, err := s.redis.Get(ctx, marketSnapshotKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("read cached market snapshot failed", zap.Error(err))
		}
		return false
	}
	var cached models.MarketSnapshot
	if err := json.Unmarshal(data, &cached); err != nil || len(cached.Prices) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snapshot.Loading {
		return false
	}
	cached.Loading = false
	s.snapshot = cached
	return true
}

func (s *MarketService) cache(ctx context.Context, snapshot models.MarketSnapshot) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, marketSnapshotKey, data, marketSnapshotTTL).Err(); err != nil {
		s.logger.Warn("cache market snapshot failed", zap.Error(err))
	}
}

// Watch emits the snapshot now and after every refresh
func (s *MarketService) Watch(ctx context.Context, emit func(models.MarketSnapshot)) (*realtime.Subscription, error) {
	return realtime.Watch(ctx, s.broker, realtime.MarketTopic,
		func(context.Context) (models.MarketSnapshot, error) { return s.Snapshot(), nil },
		emit, nil)
}

func copySnapshot(in models.MarketSnapshot) models.MarketSnapshot {
	out := in
	out.Prices = make(map[string]models.MarketData, len(in.Prices))
	for k, v := range in.Prices {
		out.Prices[k] = v
	}
	return out
}
