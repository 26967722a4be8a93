// Package store is the user-scoped document store of the dashboard: chat
// sessions, their messages, trade logs and recorded audio, with realtime
// snapshot listeners on each collection.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/realtime"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Key scopes documents to artifacts/{AppID}/users/{UserID}
type Key struct {
	AppID  string
	UserID string
}

// Valid reports whether both path segments are set
func (k Key) Valid() bool {
	return k.AppID != "" && k.UserID != ""
}

// LastMessageUpdate carries the denormalized fields written after each turn
type LastMessageUpdate struct {
	Text string
	At   time.Time
	// Name renames the session when non-empty
	Name string
}

// Documents is the persistence backend of a Store
type Documents interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, appID, id string) (*models.User, error)

	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, key Key, id string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, key Key) ([]models.ChatSession, error)
	UpdateLastMessage(ctx context.Context, key Key, id string, upd LastMessageUpdate) error

	AddMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, key Key, sessionID string) ([]models.ChatMessage, error)

	CreateTradeLog(ctx context.Context, trade *models.TradeLog) error
	GetTradeLog(ctx context.Context, key Key, id string) (*models.TradeLog, error)
	ListTradeLogs(ctx context.Context, key Key) ([]models.TradeLog, error)
	UpdateJournalEntry(ctx context.Context, key Key, id, entry string) error
	DeleteTradeLog(ctx context.Context, key Key, id string) error

	PutAudio(ctx context.Context, blob *models.AudioBlob) error
	GetAudio(ctx context.Context, key Key, id string) (*models.AudioBlob, error)

	Ping(ctx context.Context) error
}

// Store wraps Documents with server timestamps, client-side ordering and
// change notifications.
type Store struct {
	docs   Documents
	broker realtime.Broker
	logger *zap.Logger
	now    func() time.Time
}

// New creates a new Store
func New(docs Documents, broker realtime.Broker, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		docs:   docs,
		broker: broker,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the server timestamp source
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the store's server time
func (s *Store) Now() time.Time {
	return s.now()
}

// Ping checks that both the documents backend and the broker are reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.docs.Ping(ctx); err != nil {
		return errors.Wrap(err, "documents")
	}
	if err := s.broker.Ping(ctx); err != nil {
		return errors.Wrap(err, "broker")
	}
	return nil
}

func (s *Store) notify(ctx context.Context, topic string) {
	// the write already succeeded; a lost notification only delays listeners
	if err := s.broker.Publish(ctx, topic); err != nil {
		s.logger.Warn("publish change failed", zap.String("topic", topic), zap.Error(err))
	}
}

// UpsertUser records an identity
func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	now := s.now()
	user.LastSeenAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	return errors.Wrap(s.docs.UpsertUser(ctx, user), "upsert user")
}

// GetUser retrieves an identity
func (s *Store) GetUser(ctx context.Context, appID, id string) (*models.User, error) {
	return s.docs.GetUser(ctx, appID, id)
}

// CreateSession writes a new session with a server-assigned creation time
func (s *Store) CreateSession(ctx context.Context, key Key, session *models.ChatSession) error {
	session.AppID = key.AppID
	session.UserID = key.UserID
	session.CreatedAt = s.now()
	if err := s.docs.CreateSession(ctx, session); err != nil {
		return errors.Wrap(err, "create session")
	}
	s.notify(ctx, realtime.SessionsTopic(key.AppID, key.UserID))
	return nil
}

// GetSession retrieves one session
func (s *Store) GetSession(ctx context.Context, key Key, id string) (*models.ChatSession, error) {
	return s.docs.GetSession(ctx, key, id)
}

// ListSessions returns the user's sessions, newest first
func (s *Store) ListSessions(ctx context.Context, key Key) ([]models.ChatSession, error) {
	sessions, err := s.docs.ListSessions(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	SortSessions(sessions)
	return sessions, nil
}

// UpdateLastMessage writes the denormalized last-message fields
func (s *Store) UpdateLastMessage(ctx context.Context, key Key, sessionID string, upd LastMessageUpdate) error {
	if err := s.docs.UpdateLastMessage(ctx, key, sessionID, upd); err != nil {
		return errors.Wrap(err, "update session")
	}
	s.notify(ctx, realtime.SessionsTopic(key.AppID, key.UserID))
	return nil
}

// AddMessage appends a message to a session with a server timestamp
func (s *Store) AddMessage(ctx context.Context, key Key, sessionID string, msg *models.ChatMessage) error {
	if _, err := msg.Content(); err != nil {
		return err
	}
	msg.AppID = key.AppID
	msg.UserID = key.UserID
	msg.SessionID = sessionID
	msg.Timestamp = s.now()
	if err := s.docs.AddMessage(ctx, msg); err != nil {
		return errors.Wrap(err, "add message")
	}
	s.notify(ctx, realtime.MessagesTopic(key.AppID, key.UserID, sessionID))
	return nil
}

// ListMessages returns a session's messages in conversation order
func (s *Store) ListMessages(ctx context.Context, key Key, sessionID string) ([]models.ChatMessage, error) {
	messages, err := s.docs.ListMessages(ctx, key, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	SortMessages(messages)
	return messages, nil
}

// CreateTradeLog writes a trade log with a server timestamp
func (s *Store) CreateTradeLog(ctx context.Context, key Key, trade *models.TradeLog) error {
	trade.AppID = key.AppID
	trade.UserID = key.UserID
	trade.Timestamp = s.now()
	if err := s.docs.CreateTradeLog(ctx, trade); err != nil {
		return errors.Wrap(err, "create trade log")
	}
	s.notify(ctx, realtime.TradeLogsTopic(key.AppID, key.UserID))
	return nil
}

// GetTradeLog retrieves one trade log
func (s *Store) GetTradeLog(ctx context.Context, key Key, id string) (*models.TradeLog, error) {
	return s.docs.GetTradeLog(ctx, key, id)
}

// ListTradeLogs returns the user's trade logs, newest first
func (s *Store) ListTradeLogs(ctx context.Context, key Key) ([]models.TradeLog, error) {
	trades, err := s.docs.ListTradeLogs(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "list trade logs")
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.After(trades[j].Timestamp)
	})
	return trades, nil
}

// UpdateJournalEntry replaces a trade's journal entry
func (s *Store) UpdateJournalEntry(ctx context.Context, key Key, id, entry string) error {
	if err := s.docs.UpdateJournalEntry(ctx, key, id, entry); err != nil {
		return errors.Wrap(err, "update journal entry")
	}
	s.notify(ctx, realtime.TradeLogsTopic(key.AppID, key.UserID))
	return nil
}

// DeleteTradeLog removes a trade log
func (s *Store) DeleteTradeLog(ctx context.Context, key Key, id string) error {
	if err := s.docs.DeleteTradeLog(ctx, key, id); err != nil {
		return errors.Wrap(err, "delete trade log")
	}
	s.notify(ctx, realtime.TradeLogsTopic(key.AppID, key.UserID))
	return nil
}

// PutAudio stores a recorded voice message under the message's client id
func (s *Store) PutAudio(ctx context.Context, key Key, id, contentType string, data []byte) error {
	blob := &models.AudioBlob{
		ID:          id,
		AppID:       key.AppID,
		UserID:      key.UserID,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   s.now(),
	}
	return errors.Wrap(s.docs.PutAudio(ctx, blob), "put audio")
}

// GetAudio retrieves a recorded voice message
func (s *Store) GetAudio(ctx context.Context, key Key, id string) (*models.AudioBlob, error) {
	return s.docs.GetAudio(ctx, key, id)
}

// WatchSessions emits the user's session list, newest first, on every change,
// with the Seq taken before the list was read.
func (s *Store) WatchSessions(ctx context.Context, key Key, emit func([]models.ChatSession, realtime.Seq)) (*realtime.Subscription, error) {
	return realtime.WatchSeq(ctx, s.broker, realtime.SessionsTopic(key.AppID, key.UserID),
		func(ctx context.Context) ([]models.ChatSession, error) { return s.ListSessions(ctx, key) },
		emit, s.watchErr("sessions"))
}

// WatchMessages emits a session's messages on every change
func (s *Store) WatchMessages(ctx context.Context, key Key, sessionID string, emit func([]models.ChatMessage)) (*realtime.Subscription, error) {
	return realtime.Watch(ctx, s.broker, realtime.MessagesTopic(key.AppID, key.UserID, sessionID),
		func(ctx context.Context) ([]models.ChatMessage, error) { return s.ListMessages(ctx, key, sessionID) },
		emit, s.watchErr("messages"))
}

// WatchTradeLogs emits the user's trade logs, newest first, on every change
func (s *Store) WatchTradeLogs(ctx context.Context, key Key, emit func([]models.TradeLog)) (*realtime.Subscription, error) {
	return realtime.Watch(ctx, s.broker, realtime.TradeLogsTopic(key.AppID, key.UserID),
		func(ctx context.Context) ([]models.TradeLog, error) { return s.ListTradeLogs(ctx, key) },
		emit, s.watchErr("tradeLogs"))
}

func (s *Store) watchErr(collection string) func(error) {
	return func(err error) {
		s.logger.Warn("snapshot reload failed", zap.String("collection", collection), zap.Error(err))
	}
}

// SortSessions orders sessions by creation time, newest first
func SortSessions(sessions []models.ChatSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

// SortMessages orders messages by timestamp, then insertion order
func SortMessages(messages []models.ChatMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].Timestamp.Before(messages[j].Timestamp)
		}
		return messages[i].DocID < messages[j].DocID
	})
}
