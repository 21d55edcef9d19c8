package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrBlobNotFound is returned by blob stores when no value exists for a key.
var ErrBlobNotFound = errors.New("blob not found")

const ledgerBlobSchema = `CREATE TABLE IF NOT EXISTS ledger_blobs (
    key        TEXT PRIMARY KEY,
    payload    BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresBlobRepository keeps serialized ledgers in the ledger_blobs table.
type PostgresBlobRepository struct {
	db *sqlx.DB
}

// NewPostgresBlobRepository constructs the repository.
func NewPostgresBlobRepository(db *sqlx.DB) *PostgresBlobRepository {
	return &PostgresBlobRepository{db: db}
}

// EnsureSchema creates the backing table when missing.
func (r *PostgresBlobRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, ledgerBlobSchema); err != nil {
		return fmt.Errorf("ensure ledger_blobs schema: %w", err)
	}
	return nil
}

// Get returns the blob stored under key.
func (r *PostgresBlobRepository) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT payload FROM ledger_blobs WHERE key = $1`
	var payload []byte
	if err := r.db.GetContext(ctx, &payload, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("get ledger blob %s: %w", key, err)
	}
	return payload, nil
}

// Set upserts the blob stored under key.
func (r *PostgresBlobRepository) Set(ctx context.Context, key string, blob []byte) error {
	const query = `INSERT INTO ledger_blobs (key, payload, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key)
DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, blob, time.Now().UTC()); err != nil {
		return fmt.Errorf("set ledger blob %s: %w", key, err)
	}
	return nil
}
