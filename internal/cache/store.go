package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Entry is one cached payload
type Entry struct {
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store is a cache backend
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix ("" removes all)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Entries returns a snapshot of all stored entries
	Entries(ctx context.Context) (map[string]Entry, error)
}

// MemoryStore keeps entries in process memory
type MemoryStore struct {
	entries map[string]Entry
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Entries(_ context.Context) (map[string]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.entries))
	for k, e := range s.entries {
		out[k] = e
	}
	return out, nil
}
