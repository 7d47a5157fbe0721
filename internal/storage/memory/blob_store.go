// Package memory stores fetched bodies in-memory for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
)

// BlobStore keeps artifacts in a map and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObject stores a private copy of data under name.
func (s *BlobStore) PutObject(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &crawler.PersistError{Domain: name, Err: fmt.Errorf("context canceled: %w", err)}
	}
	if strings.TrimSpace(name) == "" {
		return "", &crawler.PersistError{Domain: name, Err: fmt.Errorf("name is required")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
	return "memory://" + name, nil
}

// Get returns a copy of the bytes stored under name.
func (s *BlobStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// Len reports how many distinct names have been stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
