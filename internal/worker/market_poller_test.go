package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestMarketPoller_RefreshesImmediatelyAndOnTick(t *testing.T) {
	r := &countingRefresher{}
	p := NewMarketPoller(r, 10*time.Millisecond, nil)

	go p.Start(context.Background())
	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestMarketPoller_KeepsPollingAfterFailure(t *testing.T) {
	r := &countingRefresher{err: errors.New("backend down")}
	p := NewMarketPoller(r, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Start(ctx)
	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on context cancel")
	}
}

func TestNewMarketPoller_DefaultInterval(t *testing.T) {
	p := NewMarketPoller(&countingRefresher{}, 0, nil)
	assert.Equal(t, DefaultMarketInterval, p.interval)
}
