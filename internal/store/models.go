package store

import (
	"time"

	"github.com/google/uuid"
)

// User is a chat front-end account, keyed by its telegram id.
type User struct {
	TelegramID int64     `gorm:"primaryKey"`
	Username   string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (User) TableName() string { return "users" }

// Subscription is one (provider, symbol) pair on a user's watchlist.
// The triple is unique per user.
type Subscription struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TelegramID int64     `gorm:"not null;index:idx_subs_user_provider_symbol,unique,priority:1"`
	Provider   string    `gorm:"type:text;not null;index:idx_subs_user_provider_symbol,unique,priority:2"`
	Symbol     string    `gorm:"type:text;not null;index:idx_subs_user_provider_symbol,unique,priority:3"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	User User `gorm:"foreignKey:TelegramID;constraint:OnDelete:CASCADE"`
}

func (Subscription) TableName() string { return "user_subscriptions" }

// CachedRate holds the last-known serialized rate per (provider, symbol).
// Writes are upserts; rows are never deleted.
type CachedRate struct {
	Provider  string    `gorm:"primaryKey;type:text"`
	Symbol    string    `gorm:"primaryKey;type:text"`
	RateData  []byte    `gorm:"type:jsonb;not null"`
	FetchedAt time.Time `gorm:"not null"`
}

func (CachedRate) TableName() string { return "cached_rates" }
