package repository

import (
	"context"

	"github.com/aura-bot/internal/models"
	"gorm.io/gorm"
)

// MessageRepository handles chat message data access
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create creates a new message
func (r *MessageRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// GetBySession retrieves all messages of a session, unordered
func (r *MessageRepository) GetBySession(ctx context.Context, appID, userID, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	result := r.db.WithContext(ctx).
		Where("app_id = ? AND user_id = ? AND session_id = ?", appID, userID, sessionID).
		Find(&messages)
	return messages, result.Error
}
