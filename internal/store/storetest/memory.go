// Package storetest provides an in-memory store for package tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ratewatch/internal/store"
)

type cacheKey struct {
	provider string
	symbol   string
}

// MemoryStore implements the store operations against process memory.
type MemoryStore struct {
	mu    sync.Mutex
	users map[int64]store.User
	subs  []store.Subscription
	cache map[cacheKey]store.CachedRate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]store.User),
		cache: make(map[cacheKey]store.CachedRate),
	}
}

func (m *MemoryStore) UpsertUser(_ context.Context, telegramID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[telegramID]
	if !ok {
		u = store.User{TelegramID: telegramID, CreatedAt: time.Now()}
	}
	u.Username = username
	m.users[telegramID] = u
	return nil
}

func (m *MemoryStore) UpsertSubscription(_ context.Context, telegramID int64, provider, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.TelegramID == telegramID && s.Provider == provider && s.Symbol == symbol {
			return false, nil
		}
	}
	m.subs = append(m.subs, store.Subscription{
		ID:         uuid.New(),
		TelegramID: telegramID,
		Provider:   provider,
		Symbol:     symbol,
		CreatedAt:  time.Now(),
	})
	return true, nil
}

func (m *MemoryStore) DeleteSubscription(_ context.Context, telegramID int64, provider, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.TelegramID == telegramID && s.Provider == provider && s.Symbol == symbol {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListSubscriptions(_ context.Context, telegramID int64) ([]store.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Subscription, 0)
	for _, s := range m.subs {
		if s.TelegramID == telegramID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteAllSubscriptions(_ context.Context, telegramID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.subs[:0]
	var removed int64
	for _, s := range m.subs {
		if s.TelegramID == telegramID {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	m.subs = kept
	return removed, nil
}

func (m *MemoryStore) GetCachedRate(_ context.Context, provider, symbol string) (*store.CachedRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.cache[cacheKey{provider, symbol}]
	if !ok {
		return nil, nil
	}
	// Copy to avoid callers aliasing internal state.
	out := row
	return &out, nil
}

func (m *MemoryStore) UpsertCachedRate(_ context.Context, provider, symbol string, rateData []byte, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[cacheKey{provider, symbol}] = store.CachedRate{
		Provider:  provider,
		Symbol:    symbol,
		RateData:  append([]byte(nil), rateData...),
		FetchedAt: fetchedAt,
	}
	return nil
}
