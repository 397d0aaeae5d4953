// Package memory provides an in-process implementation of storage.KV.
// Nothing survives the process; use it for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mmynk/billbuddy/internal/storage"
)

var _ storage.KV = (*Store)(nil)

// Store is a map-backed storage.KV.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.Apply(ctx, storage.Set(key, value))
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.Apply(ctx, storage.Remove(key))
}

func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Apply holds the write lock for the whole batch, so readers never observe
// a partial batch.
func (s *Store) Apply(_ context.Context, writes ...storage.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		if w.Delete {
			delete(s.data, w.Key)
			continue
		}
		s.data[w.Key] = w.Value
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
