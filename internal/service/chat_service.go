package service

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/aura-bot/internal/backend"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/store"
	"github.com/aura-bot/pkg/keygen"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// VoicePlaceholderText is the text of a voice message sent without a transcript
	VoicePlaceholderText = "[Voice message]"
	audioRoute           = "/api/v1/media/audio/"
)

// ChatBackend produces assistant replies
type ChatBackend interface {
	Chat(ctx context.Context, req *backend.ChatRequest) (string, error)
}

// SendRequest is one user turn
type SendRequest struct {
	Key       store.Key
	SessionID string
	Text      string
	Voice     bool
	Audio     []byte
	// AudioContentType defaults to audio/webm
	AudioContentType string
}

// SendResult reports what a send persisted
type SendResult struct {
	Message *models.ChatMessage `json:"message"`
	// Reply is the assistant text message; nil when the reply was an
	// analysis directive or the backend failed.
	Reply *models.ChatMessage `json:"reply,omitempty"`
	// AnalysisSymbol is set when the reply requested an analysis
	AnalysisSymbol string `json:"analysisSymbol,omitempty"`
}

// ChatService runs the message pipeline: persist the user turn, forward the
// conversation to the chat backend and persist or dispatch the reply.
type ChatService struct {
	store    *store.Store
	sessions *SessionService
	analysis *AnalysisService
	backend  ChatBackend
	logger   *zap.Logger
}

// NewChatService creates a new ChatService
func NewChatService(st *store.Store, sessions *SessionService, analysis *AnalysisService, backend ChatBackend, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		store:    st,
		sessions: sessions,
		analysis: analysis,
		backend:  backend,
		logger:   logger,
	}
}

// AudioURL is the retrieval URL of a stored voice recording
func AudioURL(messageID string) string {
	return audioRoute + messageID
}

// SendMessage persists a user message and dispatches the conversation to the
// backend. Errors returned here happened before the dispatch; dispatch
// failures become an assistant error message and an alert on obs.
func (s *ChatService) SendMessage(ctx context.Context, req SendRequest, obs Observer) (*SendResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && !req.Voice {
		return nil, ErrEmptyMessage
	}
	if !req.Key.Valid() || req.SessionID == "" {
		return nil, ErrNotReady
	}
	if req.Voice && len(req.Audio) == 0 {
		return nil, errors.New("voice message has no audio")
	}

	session, err := s.store.GetSession(ctx, req.Key, req.SessionID)
	if err != nil {
		return nil, err
	}
	prior, err := s.store.ListMessages(ctx, req.Key, req.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}

	typed := text
	msgID := keygen.MessageID()
	var msg *models.ChatMessage
	if req.Voice {
		if text == "" {
			text = VoicePlaceholderText
		}
		contentType := req.AudioContentType
		if contentType == "" {
			contentType = "audio/webm"
		}
		if err := s.store.PutAudio(ctx, req.Key, msgID, contentType, req.Audio); err != nil {
			return nil, errors.Wrap(err, "upload audio")
		}
		msg = models.NewMessage(msgID, models.SenderUser, models.AudioContent{Text: text, URL: AudioURL(msgID)})
	} else {
		msg = models.NewMessage(msgID, models.SenderUser, models.TextContent{Text: text})
	}

	if err := s.store.AddMessage(ctx, req.Key, req.SessionID, msg); err != nil {
		return nil, errors.Wrap(err, "persist message")
	}
	if err := s.sessions.RecordUserTurn(ctx, req.Key, session, text, typed); err != nil {
		return nil, errors.Wrap(err, "update session")
	}

	chatReq := &backend.ChatRequest{
		SessionID:   req.SessionID,
		UserID:      req.Key.UserID,
		Message:     text,
		MessageType: string(msg.Type),
		ChatHistory: BuildHistory(prior, msg),
	}
	if req.Voice {
		chatReq.AudioData = base64.StdEncoding.EncodeToString(req.Audio)
	}

	result := &SendResult{Message: msg}
	s.dispatch(ctx, req.Key, req.SessionID, chatReq, result, obs)
	return result, nil
}

// BuildHistory maps the prior conversation plus the new message to the
// backend's history format.
func BuildHistory(prior []models.ChatMessage, latest *models.ChatMessage) []backend.HistoryEntry {
	history := make([]backend.HistoryEntry, 0, len(prior)+1)
	for i := range prior {
		history = append(history, backend.HistoryEntry{Role: prior[i].HistoryRole(), Text: prior[i].Text})
	}
	if latest != nil {
		history = append(history, backend.HistoryEntry{Role: latest.HistoryRole(), Text: latest.Text})
	}
	return history
}

func (s *ChatService) dispatch(ctx context.Context, key store.Key, sessionID string, req *backend.ChatRequest, result *SendResult, obs Observer) {
	reply, err := s.backend.Chat(ctx, req)
	if err != nil {
		s.logger.Warn("chat backend failed",
			zap.String("user_id", key.UserID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		errMsg := models.NewMessage(keygen.MessageID(), models.SenderAI,
			models.TextContent{Text: "Sorry, I couldn't reach the assistant: " + FailureReason(err)})
		if perr := s.store.AddMessage(ctx, key, sessionID, errMsg); perr != nil {
			s.logger.Error("persist chat error message failed", zap.Error(perr))
		}
		obs.Alert(Alert{Level: AlertError, Message: "Failed to get a response from the assistant."})
		return
	}

	if symbol, ok := backend.ParseDirective(reply); ok {
		result.AnalysisSymbol = symbol
		s.analysis.RequestFromChat(ctx, key, sessionID, symbol, obs)
		return
	}

	aiMsg := models.NewMessage(keygen.MessageID(), models.SenderAI, models.TextContent{Text: reply})
	if err := s.store.AddMessage(ctx, key, sessionID, aiMsg); err != nil {
		s.logger.Error("persist assistant reply failed", zap.String("session_id", sessionID), zap.Error(err))
		obs.Alert(Alert{Level: AlertError, Message: "Could not save the assistant's reply."})
		obs.LocalMessage(*aiMsg)
		return
	}
	result.Reply = aiMsg
	if err := s.sessions.RecordAssistantTurn(ctx, key, sessionID, reply); err != nil {
		s.logger.Warn("update session after reply failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
