package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/store"
	"github.com/aura-bot/pkg/keygen"
	"go.uber.org/zap"
)

// AnalysisBackend runs ORMCR analyses
type AnalysisBackend interface {
	RunSymbolAnalysis(ctx context.Context, symbol, userID string) (*models.AnalysisResult, error)
	RunAnalysis(ctx context.Context, params models.AnalysisParams, userID string) (*models.AnalysisResult, error)
}

// AnalysisService issues analysis requests, either from the analysis view
// with a full parameter set or from a chat directive with a symbol only.
type AnalysisService struct {
	store    *store.Store
	sessions *SessionService
	backend  AnalysisBackend
	logger   *zap.Logger
}

// NewAnalysisService creates a new AnalysisService
func NewAnalysisService(st *store.Store, sessions *SessionService, backend AnalysisBackend, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{store: st, sessions: sessions, backend: backend, logger: logger}
}

// Run performs a user-initiated analysis. The result is view state and is
// not written to any session.
func (s *AnalysisService) Run(ctx context.Context, key store.Key, params models.AnalysisParams) (*models.AnalysisResult, error) {
	if !key.Valid() {
		return nil, ErrNotReady
	}
	params.CurrencyPair = strings.ToUpper(strings.TrimSpace(params.CurrencyPair))

	result, err := s.backend.RunAnalysis(ctx, params, key.UserID)
	if err != nil {
		s.logger.Warn("analysis failed",
			zap.String("user_id", key.UserID),
			zap.String("pair", params.CurrencyPair),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// RequestFromChat performs an analysis requested by the chat model. While it
// runs the observer sees a pending entry; once it settles, the analysis or
// an error message is delivered to sessionID, or to the observer's local
// message list when sessionID is empty.
func (s *AnalysisService) RequestFromChat(ctx context.Context, key store.Key, sessionID, symbol string, obs Observer) {
	pendingID, err := keygen.PendingID()
	if err != nil {
		pendingID = "pending-" + keygen.MessageID()
	}
	obs.AnalysisPending(PendingAnalysis{
		ID:        pendingID,
		SessionID: sessionID,
		Symbol:    symbol,
		Text:      fmt.Sprintf("Retrieving ORMCR analysis for %s...", displaySymbol(symbol)),
	})
	defer obs.AnalysisSettled(pendingID)

	var msg *models.ChatMessage
	result, err := s.runSymbol(ctx, key, symbol)
	if err != nil {
		s.logger.Warn("chat analysis failed",
			zap.String("user_id", key.UserID),
			zap.String("symbol", symbol),
			zap.Error(err))
		reason := FailureReason(err)
		text := fmt.Sprintf("Sorry, I couldn't complete the ORMCR analysis for %s: %s", displaySymbol(symbol), reason)
		msg = models.NewMessage(keygen.MessageID(), models.SenderAI, models.TextContent{Text: text})
		obs.Alert(Alert{Level: AlertError, Message: "Analysis failed: " + reason})
	} else {
		text := fmt.Sprintf("ORMCR analysis for %s", result.Symbol)
		if result.Symbol == "" {
			text = fmt.Sprintf("ORMCR analysis for %s", symbol)
		}
		msg = models.NewMessage(keygen.MessageID(), models.SenderAI, models.AnalysisContent{Text: text, Result: result})
	}

	s.deliver(ctx, key, sessionID, msg, obs)
}

func (s *AnalysisService) runSymbol(ctx context.Context, key store.Key, symbol string) (*models.AnalysisResult, error) {
	if symbol == "" {
		return nil, ErrNoSymbol
	}
	if !key.Valid() {
		return nil, ErrNotReady
	}
	return s.backend.RunSymbolAnalysis(ctx, symbol, key.UserID)
}

// deliver writes msg to the session when there is one, falling back to the
// observer's local list when there is none or the store rejects the write.
func (s *AnalysisService) deliver(ctx context.Context, key store.Key, sessionID string, msg *models.ChatMessage, obs Observer) {
	if sessionID == "" || !key.Valid() {
		obs.LocalMessage(*msg)
		return
	}
	if err := s.store.AddMessage(ctx, key, sessionID, msg); err != nil {
		s.logger.Error("persist analysis message failed", zap.String("session_id", sessionID), zap.Error(err))
		obs.Alert(Alert{Level: AlertError, Message: "Could not save the analysis to this chat."})
		obs.LocalMessage(*msg)
		return
	}
	if err := s.sessions.RecordAssistantTurn(ctx, key, sessionID, msg.Text); err != nil {
		s.logger.Warn("update session after analysis failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func displaySymbol(symbol string) string {
	if symbol == "" {
		return "the requested symbol"
	}
	return symbol
}
