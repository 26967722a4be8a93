package store

import (
	"context"
	"sync"

	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/repository"
)

// MemoryDocuments keeps documents in process memory. It backs local runs with
// database.driver=memory and the test suites.
type MemoryDocuments struct {
	mu        sync.RWMutex
	users     map[string]models.User
	sessions  map[string]models.ChatSession
	messages  map[string][]models.ChatMessage // sessionID -> messages
	trades    map[string]models.TradeLog
	audio     map[string]models.AudioBlob
	nextDocID uint
	failWrite error
}

// NewMemoryDocuments creates a new MemoryDocuments
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.ChatSession),
		messages: make(map[string][]models.ChatMessage),
		trades:   make(map[string]models.TradeLog),
		audio:    make(map[string]models.AudioBlob),
	}
}

// FailWrites makes every subsequent write return err; nil restores writes
func (d *MemoryDocuments) FailWrites(err error) {
	d.mu.Lock()
	d.failWrite = err
	d.mu.Unlock()
}

func owned(appID, userID string, key Key) bool {
	return appID == key.AppID && userID == key.UserID
}

func (d *MemoryDocuments) UpsertUser(_ context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	if existing, ok := d.users[user.ID]; ok {
		existing.LastSeenAt = user.LastSeenAt
		d.users[user.ID] = existing
		return nil
	}
	d.users[user.ID] = *user
	return nil
}

func (d *MemoryDocuments) GetUser(_ context.Context, appID, id string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[id]
	if !ok || user.AppID != appID {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

func (d *MemoryDocuments) CreateSession(_ context.Context, session *models.ChatSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	d.sessions[session.ID] = *session
	return nil
}

func (d *MemoryDocuments) GetSession(_ context.Context, key Key, id string) (*models.ChatSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	session, ok := d.sessions[id]
	if !ok || !owned(session.AppID, session.UserID, key) {
		return nil, repository.ErrSessionNotFound
	}
	return &session, nil
}

func (d *MemoryDocuments) ListSessions(_ context.Context, key Key) ([]models.ChatSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var sessions []models.ChatSession
	for _, s := range d.sessions {
		if owned(s.AppID, s.UserID, key) {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func (d *MemoryDocuments) UpdateLastMessage(_ context.Context, key Key, id string, upd LastMessageUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	session, ok := d.sessions[id]
	if !ok || !owned(session.AppID, session.UserID, key) {
		return repository.ErrSessionNotFound
	}
	at := upd.At
	session.LastMessageText = upd.Text
	session.LastMessageTimestamp = &at
	if upd.Name != "" {
		session.Name = upd.Name
		session.Named = true
	}
	d.sessions[id] = session
	return nil
}

func (d *MemoryDocuments) AddMessage(_ context.Context, msg *models.ChatMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	d.nextDocID++
	msg.DocID = d.nextDocID
	d.messages[msg.SessionID] = append(d.messages[msg.SessionID], *msg)
	return nil
}

func (d *MemoryDocuments) ListMessages(_ context.Context, key Key, sessionID string) ([]models.ChatMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var messages []models.ChatMessage
	for _, m := range d.messages[sessionID] {
		if owned(m.AppID, m.UserID, key) {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (d *MemoryDocuments) CreateTradeLog(_ context.Context, trade *models.TradeLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	d.trades[trade.ID] = *trade
	return nil
}

func (d *MemoryDocuments) GetTradeLog(_ context.Context, key Key, id string) (*models.TradeLog, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	trade, ok := d.trades[id]
	if !ok || !owned(trade.AppID, trade.UserID, key) {
		return nil, repository.ErrTradeLogNotFound
	}
	return &trade, nil
}

func (d *MemoryDocuments) ListTradeLogs(_ context.Context, key Key) ([]models.TradeLog, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var trades []models.TradeLog
	for _, t := range d.trades {
		if owned(t.AppID, t.UserID, key) {
			trades = append(trades, t)
		}
	}
	return trades, nil
}

func (d *MemoryDocuments) UpdateJournalEntry(_ context.Context, key Key, id, entry string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	trade, ok := d.trades[id]
	if !ok || !owned(trade.AppID, trade.UserID, key) {
		return repository.ErrTradeLogNotFound
	}
	trade.JournalEntry = entry
	d.trades[id] = trade
	return nil
}

func (d *MemoryDocuments) DeleteTradeLog(_ context.Context, key Key, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	trade, ok := d.trades[id]
	if !ok || !owned(trade.AppID, trade.UserID, key) {
		return repository.ErrTradeLogNotFound
	}
	delete(d.trades, id)
	return nil
}

func (d *MemoryDocuments) PutAudio(_ context.Context, blob *models.AudioBlob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	d.audio[blob.ID] = *blob
	return nil
}

func (d *MemoryDocuments) GetAudio(_ context.Context, key Key, id string) (*models.AudioBlob, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	blob, ok := d.audio[id]
	if !ok || !owned(blob.AppID, blob.UserID, key) {
		return nil, repository.ErrAudioNotFound
	}
	return &blob, nil
}

func (d *MemoryDocuments) Ping(context.Context) error { return nil }
