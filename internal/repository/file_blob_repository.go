package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/dat-progress-api/pkg/storage"
)

// FileBlobRepository stores one JSON file per key on local disk.
type FileBlobRepository struct {
	storage *storage.LocalStorage
}

// NewFileBlobRepository constructs the repository.
func NewFileBlobRepository(store *storage.LocalStorage) *FileBlobRepository {
	return &FileBlobRepository{storage: store}
}

// Get returns the blob stored under key.
func (r *FileBlobRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.storage.Read(blobFilename(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// Set replaces the blob stored under key.
func (r *FileBlobRepository) Set(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.storage.Save(blobFilename(key), blob); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

func blobFilename(key string) string {
	return key + ".json"
}
