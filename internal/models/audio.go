package models

import "time"

// AudioBlob is a recorded voice message, keyed by the owning message's client id
type AudioBlob struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	AppID       string    `gorm:"size:100;not null" json:"-"`
	UserID      string    `gorm:"index;size:64;not null" json:"-"`
	ContentType string    `gorm:"size:50;not null" json:"contentType"`
	Data        []byte    `gorm:"not null" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName specifies the table name for AudioBlob model
func (AudioBlob) TableName() string {
	return "audio_blobs"
}
