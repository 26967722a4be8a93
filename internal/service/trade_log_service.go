package service

import (
	"context"
	"strings"

	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/store"
	"github.com/aura-bot/pkg/keygen"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrConfirmationRequired = errors.New("deleting a trade log requires confirmation")
	ErrInvalidTrade         = errors.New("invalid trade")
)

// CreateTradeRequest represents a new journal entry
type CreateTradeRequest struct {
	CurrencyPair string          `json:"currencyPair" binding:"required"`
	EntryPrice   decimal.Decimal `json:"entryPrice"`
	ExitPrice    decimal.Decimal `json:"exitPrice"`
	Volume       decimal.Decimal `json:"volume"`
	JournalEntry string          `json:"journalEntry"`
}

// TradeLogService manages the personal trade journal
type TradeLogService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewTradeLogService creates a new TradeLogService
func NewTradeLogService(st *store.Store, logger *zap.Logger) *TradeLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeLogService{store: st, logger: logger}
}

// Create records a closed trade. Its profit or loss is computed here once.
func (s *TradeLogService) Create(ctx context.Context, key store.Key, req *CreateTradeRequest) (*models.TradeLog, error) {
	if !key.Valid() {
		return nil, ErrNotReady
	}
	pair := strings.ToUpper(strings.TrimSpace(req.CurrencyPair))
	if pair == "" {
		return nil, errors.Wrap(ErrInvalidTrade, "currency pair is required")
	}
	if !req.EntryPrice.IsPositive() || !req.ExitPrice.IsPositive() {
		return nil, errors.Wrap(ErrInvalidTrade, "prices must be positive")
	}
	if !req.Volume.IsPositive() {
		return nil, errors.Wrap(ErrInvalidTrade, "volume must be positive")
	}

	trade := &models.TradeLog{
		ID:           keygen.TradeID(),
		CurrencyPair: pair,
		EntryPrice:   req.EntryPrice,
		ExitPrice:    req.ExitPrice,
		Volume:       req.Volume,
		ProfitOrLoss: models.CalculateProfitOrLoss(req.EntryPrice, req.ExitPrice, req.Volume),
		JournalEntry: strings.TrimSpace(req.JournalEntry),
	}
	if err := s.store.CreateTradeLog(ctx, key, trade); err != nil {
		return nil, err
	}

	s.logger.Info("trade logged",
		zap.String("user_id", key.UserID),
		zap.String("trade_id", trade.ID),
		zap.String("pair", trade.CurrencyPair),
		zap.String("pnl", trade.ProfitOrLoss.StringFixed(2)))
	return trade, nil
}

// List returns the user's trades, newest first
func (s *TradeLogService) List(ctx context.Context, key store.Key) ([]models.TradeLog, error) {
	if !key.Valid() {
		return nil, ErrNotReady
	}
	return s.store.ListTradeLogs(ctx, key)
}

// UpdateJournal replaces the journal entry of a trade
func (s *TradeLogService) UpdateJournal(ctx context.Context, key store.Key, id, entry string) (*models.TradeLog, error) {
	if !key.Valid() {
		return nil, ErrNotReady
	}
	if err := s.store.UpdateJournalEntry(ctx, key, id, strings.TrimSpace(entry)); err != nil {
		return nil, err
	}
	return s.store.GetTradeLog(ctx, key, id)
}

// Delete removes a trade once the user has confirmed
func (s *TradeLogService) Delete(ctx context.Context, key store.Key, id string, confirmed bool) error {
	if !key.Valid() {
		return ErrNotReady
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := s.store.DeleteTradeLog(ctx, key, id); err != nil {
		return err
	}
	s.logger.Info("trade deleted", zap.String("user_id", key.UserID), zap.String("trade_id", id))
	return nil
}
