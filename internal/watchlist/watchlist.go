// Package watchlist manages per-user (provider, symbol) subscriptions.
package watchlist

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ratewatch/internal/rate"
	"ratewatch/internal/store"
)

// Store is the slice of the persistent store the service needs.
type Store interface {
	UpsertUser(ctx context.Context, telegramID int64, username string) error
	UpsertSubscription(ctx context.Context, telegramID int64, provider, symbol string) (bool, error)
	DeleteSubscription(ctx context.Context, telegramID int64, provider, symbol string) (bool, error)
	ListSubscriptions(ctx context.Context, telegramID int64) ([]store.Subscription, error)
	DeleteAllSubscriptions(ctx context.Context, telegramID int64) (int64, error)
}

// Resolver validates provider ids and their symbol universes.
type Resolver interface {
	Resolve(id string) (rate.Provider, error)
}

type Service struct {
	store     Store
	providers Resolver
	log       *zap.Logger
}

func New(st Store, providers Resolver, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, providers: providers, log: log}
}

func (s *Service) EnsureUser(ctx context.Context, userID int64, username string) error {
	return s.store.UpsertUser(ctx, userID, username)
}

// Add puts a pair on the watchlist after validating it against the
// provider's symbol universe. Adding a pair that is already present is a
// no-op; the return reports whether a new row was created.
func (s *Service) Add(ctx context.Context, userID int64, provider, symbol string) (bool, error) {
	p, err := s.providers.Resolve(provider)
	if err != nil {
		return false, err
	}
	if !supports(p, symbol) {
		return false, fmt.Errorf("provider %s does not support symbol %q", provider, symbol)
	}
	added, err := s.store.UpsertSubscription(ctx, userID, provider, symbol)
	if err != nil {
		return false, err
	}
	if added {
		s.log.Info("subscription added",
			zap.Int64("user", userID), zap.String("provider", provider), zap.String("symbol", symbol))
	}
	return added, nil
}

// Remove takes a pair off the watchlist. Removing an absent pair is a
// no-op, not an error.
func (s *Service) Remove(ctx context.Context, userID int64, provider, symbol string) (bool, error) {
	return s.store.DeleteSubscription(ctx, userID, provider, symbol)
}

func (s *Service) List(ctx context.Context, userID int64) ([]store.Subscription, error) {
	return s.store.ListSubscriptions(ctx, userID)
}

// Clear drops the whole watchlist and reports how many pairs were removed.
func (s *Service) Clear(ctx context.Context, userID int64) (int64, error) {
	return s.store.DeleteAllSubscriptions(ctx, userID)
}

func supports(p rate.Provider, symbol string) bool {
	for _, s := range p.Symbols() {
		if s.Code == symbol {
			return true
		}
	}
	return false
}
