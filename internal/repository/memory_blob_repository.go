package repository

import (
	"context"
	"sync"
)

// MemoryBlobRepository keeps blobs in process memory. Used for tests and
// throwaway deployments.
type MemoryBlobRepository struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobRepository constructs an empty store.
func NewMemoryBlobRepository() *MemoryBlobRepository {
	return &MemoryBlobRepository{blobs: make(map[string][]byte)}
}

// Get returns a copy of the blob stored under key.
func (r *MemoryBlobRepository) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), blob...), nil
}

// Set stores a copy of blob under key.
func (r *MemoryBlobRepository) Set(_ context.Context, key string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[key] = append([]byte(nil), blob...)
	return nil
}
