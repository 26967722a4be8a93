package store

import (
	"context"

	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/repository"
	"gorm.io/gorm"
)

// GormDocuments persists documents in PostgreSQL through the repositories
type GormDocuments struct {
	db       *gorm.DB
	users    *repository.UserRepository
	sessions *repository.SessionRepository
	messages *repository.MessageRepository
	trades   *repository.TradeLogRepository
	audio    *repository.AudioRepository
}

// NewGormDocuments creates a new GormDocuments
func NewGormDocuments(db *gorm.DB) *GormDocuments {
	return &GormDocuments{
		db:       db,
		users:    repository.NewUserRepository(db),
		sessions: repository.NewSessionRepository(db),
		messages: repository.NewMessageRepository(db),
		trades:   repository.NewTradeLogRepository(db),
		audio:    repository.NewAudioRepository(db),
	}
}

// AutoMigrate creates or updates the document tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.TradeLog{},
		&models.AudioBlob{},
	)
}

func (d *GormDocuments) UpsertUser(ctx context.Context, user *models.User) error {
	return d.users.Upsert(ctx, user)
}

func (d *GormDocuments) GetUser(ctx context.Context, appID, id string) (*models.User, error) {
	return d.users.GetByID(ctx, appID, id)
}

func (d *GormDocuments) CreateSession(ctx context.Context, session *models.ChatSession) error {
	return d.sessions.Create(ctx, session)
}

func (d *GormDocuments) GetSession(ctx context.Context, key Key, id string) (*models.ChatSession, error) {
	return d.sessions.GetByID(ctx, key.AppID, key.UserID, id)
}

func (d *GormDocuments) ListSessions(ctx context.Context, key Key) ([]models.ChatSession, error) {
	return d.sessions.GetByOwner(ctx, key.AppID, key.UserID)
}

func (d *GormDocuments) UpdateLastMessage(ctx context.Context, key Key, id string, upd LastMessageUpdate) error {
	return d.sessions.UpdateLastMessage(ctx, key.AppID, key.UserID, id, upd.Text, upd.At, upd.Name)
}

func (d *GormDocuments) AddMessage(ctx context.Context, msg *models.ChatMessage) error {
	return d.messages.Create(ctx, msg)
}

func (d *GormDocuments) ListMessages(ctx context.Context, key Key, sessionID string) ([]models.ChatMessage, error) {
	return d.messages.GetBySession(ctx, key.AppID, key.UserID, sessionID)
}

func (d *GormDocuments) CreateTradeLog(ctx context.Context, trade *models.TradeLog) error {
	return d.trades.Create(ctx, trade)
}

func (d *GormDocuments) GetTradeLog(ctx context.Context, key Key, id string) (*models.TradeLog, error) {
	return d.trades.GetByID(ctx, key.AppID, key.UserID, id)
}

func (d *GormDocuments) ListTradeLogs(ctx context.Context, key Key) ([]models.TradeLog, error) {
	return d.trades.GetByOwner(ctx, key.AppID, key.UserID)
}

func (d *GormDocuments) UpdateJournalEntry(ctx context.Context, key Key, id, entry string) error {
	return d.trades.UpdateJournalEntry(ctx, key.AppID, key.UserID, id, entry)
}

func (d *GormDocuments) DeleteTradeLog(ctx context.Context, key Key, id string) error {
	return d.trades.Delete(ctx, key.AppID, key.UserID, id)
}

func (d *GormDocuments) PutAudio(ctx context.Context, blob *models.AudioBlob) error {
	return d.audio.Create(ctx, blob)
}

func (d *GormDocuments) GetAudio(ctx context.Context, key Key, id string) (*models.AudioBlob, error) {
	return d.audio.GetByID(ctx, key.AppID, key.UserID, id)
}

func (d *GormDocuments) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
