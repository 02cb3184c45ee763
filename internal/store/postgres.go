// Package store persists users, watchlist subscriptions and the rate
// cache in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Postgres struct {
	DB *gorm.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) AutoMigrate() error {
	if err := p.DB.AutoMigrate(&User{}, &Subscription{}, &CachedRate{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// UpsertUser inserts the user row or refreshes its username.
func (p *Postgres) UpsertUser(ctx context.Context, telegramID int64, username string) error {
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username"}),
	}).Create(&User{TelegramID: telegramID, Username: username}).Error
}

// UpsertSubscription adds the pair to the user's watchlist. It reports
// false when the triple already existed.
func (p *Postgres) UpsertSubscription(ctx context.Context, telegramID int64, provider, symbol string) (bool, error) {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "telegram_id"},
			{Name: "provider"},
			{Name: "symbol"},
		},
		DoNothing: true,
	}).Create(&Subscription{
		ID:         uuid.New(),
		TelegramID: telegramID,
		Provider:   provider,
		Symbol:     symbol,
	})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// DeleteSubscription removes the pair. It reports false when the triple
// was not on the watchlist.
func (p *Postgres) DeleteSubscription(ctx context.Context, telegramID int64, provider, symbol string) (bool, error) {
	tx := p.DB.WithContext(ctx).
		Where("telegram_id = ? AND provider = ? AND symbol = ?", telegramID, provider, symbol).
		Delete(&Subscription{})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListSubscriptions returns the user's watchlist in insertion order.
func (p *Postgres) ListSubscriptions(ctx context.Context, telegramID int64) ([]Subscription, error) {
	var subs []Subscription
	err := p.DB.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("created_at, id").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (p *Postgres) DeleteAllSubscriptions(ctx context.Context, telegramID int64) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Delete(&Subscription{})
	return tx.RowsAffected, tx.Error
}

// GetCachedRate returns the cached row or nil when no entry exists.
func (p *Postgres) GetCachedRate(ctx context.Context, provider, symbol string) (*CachedRate, error) {
	var row CachedRate
	err := p.DB.WithContext(ctx).
		Where("provider = ? AND symbol = ?", provider, symbol).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertCachedRate writes the serialized rate, replacing any prior entry
// for the same (provider, symbol) key.
func (p *Postgres) UpsertCachedRate(ctx context.Context, provider, symbol string, rateData []byte, fetchedAt time.Time) error {
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "symbol"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"rate_data", "fetched_at"}),
	}).Create(&CachedRate{
		Provider:  provider,
		Symbol:    symbol,
		RateData:  rateData,
		FetchedAt: fetchedAt,
	}).Error
}
