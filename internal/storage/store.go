// Package storage persists the app's state as one JSON document per key.
// Backends are interchangeable: memory for tests and single-process runs,
// Redis and PostgreSQL for shared deployments.
package storage

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Persisted keys.
const (
	KeyUsers            = "edu-ruang-users"
	KeyGameHistory      = "edu-ruang-game-history"
	KeyMaterialProgress = "edu-ruang-material-progress"
	KeyDiscussions      = "edu-ruang-discussions"
	KeyNotifications    = "edu-ruang-notifications"
	KeyMiniGames        = "edu-ruang-mini-games"
	KeyMiniGameStats    = "edu-ruang-minigame-stats"
	KeyMiniGameSessions = "edu-ruang-minigame-sessions"
)

// Keys lists every persisted key.
var Keys = []string{
	KeyUsers,
	KeyGameHistory,
	KeyMaterialProgress,
	KeyDiscussions,
	KeyNotifications,
	KeyMiniGames,
	KeyMiniGameStats,
	KeyMiniGameSessions,
}

var (
	// ErrNotFound is returned by Get for keys that hold no value.
	ErrNotFound = errors.New("key not found")

	// ErrValidation marks a stored value that is not valid JSON or does not
	// match its schema.
	ErrValidation = errors.New("invalid stored value")
)

// Store is a key/value store of raw JSON documents.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	values map[string][]byte
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = slices.Clone(value)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
