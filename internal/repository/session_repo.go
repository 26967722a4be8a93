package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aura-bot/internal/models"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
)

// SessionRepository handles chat session data access
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new chat session
func (r *SessionRepository) Create(ctx context.Context, session *models.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByID retrieves a session owned by the user
func (r *SessionRepository) GetByID(ctx context.Context, appID, userID, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	result := r.db.WithContext(ctx).
		Where("id = ? AND app_id = ? AND user_id = ?", id, appID, userID).
		First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, result.Error
	}
	return &session, nil
}

// GetByOwner retrieves all sessions of a user, unordered
func (r *SessionRepository) GetByOwner(ctx context.Context, appID, userID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	result := r.db.WithContext(ctx).Where("app_id = ? AND user_id = ?", appID, userID).Find(&sessions)
	return sessions, result.Error
}

// UpdateLastMessage updates the denormalized last-message fields and,
// when name is non-empty, the display name
func (r *SessionRepository) UpdateLastMessage(ctx context.Context, appID, userID, id, text string, at time.Time, name string) error {
	updates := map[string]interface{}{
		"last_message_text":      text,
		"last_message_timestamp": at,
	}
	if name != "" {
		updates["name"] = name
		updates["named"] = true
	}
	result := r.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ? AND app_id = ? AND user_id = ?", id, appID, userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
