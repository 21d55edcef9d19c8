package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

// AccountsKey is the blob key holding the account directory.
const AccountsKey = "dat_system_users_db"

// ErrAccountNotFound is returned when no account matches.
var ErrAccountNotFound = errors.New("account not found")

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username already registered")

type blobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
}

// AccountRepository keeps all accounts as one JSON array blob.
type AccountRepository struct {
	store blobStore
	mu    sync.Mutex
}

// NewAccountRepository constructs the repository over a blob store.
func NewAccountRepository(store blobStore) *AccountRepository {
	return &AccountRepository{store: store}
}

// FindByUsername looks an account up case-insensitively.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if strings.EqualFold(accounts[i].Username, username) {
			return &accounts[i], nil
		}
	}
	return nil, ErrAccountNotFound
}

// FindByID looks an account up by id.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].ID == id {
			return &accounts[i], nil
		}
	}
	return nil, ErrAccountNotFound
}

// Create appends an account, rejecting duplicate usernames.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range accounts {
		if strings.EqualFold(existing.Username, account.Username) {
			return ErrUsernameTaken
		}
	}
	accounts = append(accounts, *account)
	payload, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("marshal accounts: %w", err)
	}
	if err := r.store.Set(ctx, AccountsKey, payload); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}

func (r *AccountRepository) load(ctx context.Context) ([]models.Account, error) {
	raw, err := r.store.Get(ctx, AccountsKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return []models.Account{}, nil
		}
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	var accounts []models.Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}
