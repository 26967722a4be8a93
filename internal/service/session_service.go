package service

import (
	"context"

	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/store"
	"github.com/aura-bot/pkg/keygen"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SessionService creates chat sessions and maintains their derived fields
type SessionService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(st *store.Store, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{store: st, logger: logger}
}

// CreateSession writes a generically named session and its greeting.
// The greeting is the only message a session has before the first user turn.
func (s *SessionService) CreateSession(ctx context.Context, key store.Key) (*models.ChatSession, error) {
	if s.store == nil || !key.Valid() {
		return nil, ErrNotReady
	}

	session := &models.ChatSession{
		ID:   keygen.SessionID(),
		Name: models.GenericSessionName(s.store.Now()),
	}
	if err := s.store.CreateSession(ctx, key, session); err != nil {
		return nil, err
	}

	greeting := models.NewMessage(keygen.MessageID(), models.SenderAI, models.TextContent{Text: models.GreetingText})
	if err := s.store.AddMessage(ctx, key, session.ID, greeting); err != nil {
		return nil, errors.Wrap(err, "write greeting")
	}

	s.logger.Info("session created",
		zap.String("user_id", key.UserID),
		zap.String("session_id", session.ID))
	return session, nil
}

// GetSession retrieves a session of the user
func (s *SessionService) GetSession(ctx context.Context, key store.Key, id string) (*models.ChatSession, error) {
	if !key.Valid() {
		return nil, ErrNotReady
	}
	return s.store.GetSession(ctx, key, id)
}

// ListSessions returns the user's sessions, newest first
func (s *SessionService) ListSessions(ctx context.Context, key store.Key) ([]models.ChatSession, error) {
	if !key.Valid() {
		return nil, ErrNotReady
	}
	return s.store.ListSessions(ctx, key)
}

// ListMessages returns a session's messages in conversation order
func (s *SessionService) ListMessages(ctx context.Context, key store.Key, sessionID string) ([]models.ChatMessage, error) {
	if !key.Valid() {
		return nil, ErrNotReady
	}
	if _, err := s.store.GetSession(ctx, key, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, key, sessionID)
}

// RecordUserTurn updates the last-message fields after a user message. The
// session is named from typed, the text the user actually wrote, until the
// first substantive message has named it; a voice-only turn has none.
func (s *SessionService) RecordUserTurn(ctx context.Context, key store.Key, session *models.ChatSession, text, typed string) error {
	upd := store.LastMessageUpdate{Text: text, At: s.store.Now()}
	if name := models.DeriveSessionName(typed); name != "" && session.HasGenericName() {
		upd.Name = name
	}
	return s.store.UpdateLastMessage(ctx, key, session.ID, upd)
}

// RecordAssistantTurn updates the last-message fields after an assistant message
func (s *SessionService) RecordAssistantTurn(ctx context.Context, key store.Key, sessionID, text string) error {
	return s.store.UpdateLastMessage(ctx, key, sessionID, store.LastMessageUpdate{Text: text, At: s.store.Now()})
}
