package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBlobRepository keeps serialized ledgers as plain Redis strings
// without expiry.
type RedisBlobRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisBlobRepository constructs the repository. Keys are namespaced by prefix.
func NewRedisBlobRepository(client *redis.Client, prefix string) *RedisBlobRepository {
	return &RedisBlobRepository{client: client, prefix: prefix}
}

// Get returns the blob stored under key.
func (r *RedisBlobRepository) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, nil
}

// Set stores the blob under key.
func (r *RedisBlobRepository) Set(ctx context.Context, key string, blob []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
