package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMarketInterval is the refresh period of the market poller
const DefaultMarketInterval = 10 * time.Second

// MarketRefresher refreshes the shared market snapshot
type MarketRefresher interface {
	Refresh(ctx context.Context) error
}

// MarketPoller refreshes market prices on a fixed interval
type MarketPoller struct {
	market   MarketRefresher
	interval time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewMarketPoller creates a new market price poller
func NewMarketPoller(market MarketRefresher, interval time.Duration, logger *zap.Logger) *MarketPoller {
	if interval <= 0 {
		interval = DefaultMarketInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketPoller{
		market:   market,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start refreshes once immediately and then on every tick until ctx is
// cancelled or Stop is called. It blocks; run it on its own goroutine.
func (w *MarketPoller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer close(w.done)
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.logger.Info("market poller started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ticker.C:
			w.refresh(ctx)
		case <-ctx.Done():
			w.logger.Info("market poller stopped")
			return
		}
	}
}

// Stop stops the polling loop. It does not wait for Start to return; use
// Done for that.
func (w *MarketPoller) Stop() {
	w.once.Do(func() { close(w.stopChan) })
}

// Done is closed once Start has returned
func (w *MarketPoller) Done() <-chan struct{} {
	return w.done
}

func (w *MarketPoller) refresh(ctx context.Context) {
	if err := w.market.Refresh(ctx); err != nil && ctx.Err() == nil {
		// the service has already fallen back to mock prices
		w.logger.Warn("market refresh failed", zap.Error(err))
	}
}
