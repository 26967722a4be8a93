package realtime

import (
	"context"
	"fmt"
)

// Broker fans out change notifications for store collections.
// A notification carries no payload: subscribers re-read the collection.
type Broker interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (Feed, error)
	Ping(ctx context.Context) error
	Close() error
}

// Feed delivers change signals for one topic. Consecutive signals may be
// coalesced into one.
type Feed interface {
	C() <-chan struct{}
	Close() error
}

// MarketTopic carries market snapshot refreshes
const MarketTopic = "market"

// SessionsTopic is the topic of artifacts/{appID}/users/{userID}/chatSessions
func SessionsTopic(appID, userID string) string {
	return fmt.Sprintf("artifacts/%s/users/%s/chatSessions", appID, userID)
}

// MessagesTopic is the topic of .../chatSessions/{sessionID}/messages
func MessagesTopic(appID, userID, sessionID string) string {
	return fmt.Sprintf("artifacts/%s/users/%s/chatSessions/%s/messages", appID, userID, sessionID)
}

// TradeLogsTopic is the topic of artifacts/{appID}/users/{userID}/tradeLogs
func TradeLogsTopic(appID, userID string) string {
	return fmt.Sprintf("artifacts/%s/users/%s/tradeLogs", appID, userID)
}

// signal performs a non-blocking, coalescing send
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
