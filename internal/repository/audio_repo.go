package repository

import (
	"context"
	"errors"

	"github.com/aura-bot/internal/models"
	"gorm.io/gorm"
)

var (
	ErrAudioNotFound = errors.New("audio not found")
)

// AudioRepository stores recorded voice messages
type AudioRepository struct {
	db *gorm.DB
}

// NewAudioRepository creates a new AudioRepository
func NewAudioRepository(db *gorm.DB) *AudioRepository {
	return &AudioRepository{db: db}
}

// Create stores an audio blob
func (r *AudioRepository) Create(ctx context.Context, blob *models.AudioBlob) error {
	return r.db.WithContext(ctx).Create(blob).Error
}

// GetByID retrieves an audio blob owned by the user
func (r *AudioRepository) GetByID(ctx context.Context, appID, userID, id string) (*models.AudioBlob, error) {
	var blob models.AudioBlob
	result := r.db.WithContext(ctx).
		Where("id = ? AND app_id = ? AND user_id = ?", id, appID, userID).
		First(&blob)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAudioNotFound
		}
		return nil, result.Error
	}
	return &blob, nil
}
