package repository

import (
	"context"
	"errors"

	"github.com/aura-bot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository handles user data access
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user or refreshes its last-seen time
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen_at", "updated_at"}),
	}).Create(user).Error
}

// GetByID retrieves a user by app and ID
func (r *UserRepository) GetByID(ctx context.Context, appID, id string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("app_id = ? AND id = ?", appID, id).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}
