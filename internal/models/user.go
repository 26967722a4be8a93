package models

import (
	"time"
)

// AuthProvider records how an identity was established
type AuthProvider string

const (
	AuthProviderAnonymous   AuthProvider = "anonymous"
	AuthProviderCustomToken AuthProvider = "custom_token"
)

// User represents a dashboard identity scoped to one app
type User struct {
	ID         string       `gorm:"primaryKey;size:64" json:"id"`
	AppID      string       `gorm:"index;size:100;not null" json:"app_id"`
	Provider   AuthProvider `gorm:"size:20;not null" json:"provider"`
	LastSeenAt time.Time    `json:"last_seen_at"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
