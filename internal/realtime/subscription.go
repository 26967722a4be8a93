package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// State is the lifecycle state of a Subscription
type State int

const (
	Unsubscribed State = iota
	Subscribing
	Subscribed
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	default:
		return "unsubscribed"
	}
}

// Subscription is a live snapshot listener on one topic.
// Close returns only after the listener goroutine has exited, so no snapshot
// is emitted after Close.
type Subscription struct {
	topic string

	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	done   chan struct{}
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// State returns the current lifecycle state
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Close stops the listener and waits for it to exit. It is safe to call more
// than once and on a nil Subscription.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Seq orders snapshot loads against other events in the process. A snapshot
// whose Seq is lower than an event's was read before that event.
type Seq uint64

var seq atomic.Uint64

// NextSeq returns a new, strictly increasing Seq
func NextSeq() Seq {
	return Seq(seq.Add(1))
}

// Watch subscribes to topic, emits an initial snapshot produced by load and
// then a fresh snapshot after every change signal. Load errors after the
// initial snapshot are reported through onErr and the listener keeps running.
func Watch[T any](
	ctx context.Context,
	broker Broker,
	topic string,
	load func(ctx context.Context) (T, error),
	emit func(T),
	onErr func(error),
) (*Subscription, error) {
	return WatchSeq(ctx, broker, topic, load, func(v T, _ Seq) { emit(v) }, onErr)
}

// WatchSeq is Watch with each snapshot tagged by the Seq taken just before
// it was loaded.
func WatchSeq[T any](
	ctx context.Context,
	broker Broker,
	topic string,
	load func(ctx context.Context) (T, error),
	emit func(T, Seq),
	onErr func(error),
) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		topic:  topic,
		state:  Subscribing,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	feed, err := broker.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		sub.state = Unsubscribed
		close(sub.done)
		return nil, errors.Wrapf(err, "subscribe %s", topic)
	}

	initialSeq := NextSeq()
	initial, err := load(ctx)
	if err != nil {
		cancel()
		_ = feed.Close()
		sub.state = Unsubscribed
		close(sub.done)
		return nil, errors.Wrapf(err, "initial snapshot %s", topic)
	}
	emit(initial, initialSeq)
	sub.setState(Subscribed)

	go func() {
		defer close(sub.done)
		defer sub.setState(Unsubscribed)
		defer feed.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case <-feed.C():
				at := NextSeq()
				snapshot, err := load(ctx)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					if onErr != nil {
						onErr(err)
					}
					continue
				}
				emit(snapshot, at)
			}
		}
	}()

	return sub, nil
}
