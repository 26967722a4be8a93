package repository

import (
	"context"
	"errors"

	"github.com/aura-bot/internal/models"
	"gorm.io/gorm"
)

var (
	ErrTradeLogNotFound = errors.New("trade log not found")
)

// TradeLogRepository handles trade journal data access
type TradeLogRepository struct {
	db *gorm.DB
}

// NewTradeLogRepository creates a new TradeLogRepository
func NewTradeLogRepository(db *gorm.DB) *TradeLogRepository {
	return &TradeLogRepository{db: db}
}

// Create creates a new trade log
func (r *TradeLogRepository) Create(ctx context.Context, trade *models.TradeLog) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

// GetByID retrieves a trade log owned by the user
func (r *TradeLogRepository) GetByID(ctx context.Context, appID, userID, id string) (*models.TradeLog, error) {
	var trade models.TradeLog
	result := r.db.WithContext(ctx).
		Where("id = ? AND app_id = ? AND user_id = ?", id, appID, userID).
		First(&trade)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeLogNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// GetByOwner retrieves all trade logs of a user, unordered
func (r *TradeLogRepository) GetByOwner(ctx context.Context, appID, userID string) ([]models.TradeLog, error) {
	var trades []models.TradeLog
	result := r.db.WithContext(ctx).Where("app_id = ? AND user_id = ?", appID, userID).Find(&trades)
	return trades, result.Error
}

// UpdateJournalEntry replaces the journal entry of a trade log
func (r *TradeLogRepository) UpdateJournalEntry(ctx context.Context, appID, userID, id, entry string) error {
	result := r.db.WithContext(ctx).Model(&models.TradeLog{}).
		Where("id = ? AND app_id = ? AND user_id = ?", id, appID, userID).
		Update("journal_entry", entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTradeLogNotFound
	}
	return nil
}

// Delete deletes a trade log
func (r *TradeLogRepository) Delete(ctx context.Context, appID, userID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND app_id = ? AND user_id = ?", id, appID, userID).
		Delete(&models.TradeLog{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTradeLogNotFound
	}
	return nil
}
