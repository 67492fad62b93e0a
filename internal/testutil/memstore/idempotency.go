package memstore

import (
	"context"
	"sync"

	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/jackc/pgx/v5"
)

// KeyStore is an in-memory idempotency_keys table.
type KeyStore struct {
	mu   sync.Mutex
	rows map[string]repository.IdempotencyKey
}

func NewKeyStore() *KeyStore {
	return &KeyStore{rows: map[string]repository.IdempotencyKey{}}
}

func (k *KeyStore) GetIdempotencyKey(_ context.Context, key string) (repository.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	row, ok := k.rows[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return row, nil
}

func (k *KeyStore) ReserveIdempotencyKey(_ context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.rows[arg.IdempotencyKey]; ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	row := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		InProgress:     true,
	}
	k.rows[arg.IdempotencyKey] = row
	return row, nil
}

func (k *KeyStore) FinalizeIdempotencyKey(_ context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	row, ok := k.rows[arg.IdempotencyKey]
	if !ok || row.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	row.InProgress = false
	row.ResponseStatus = arg.ResponseStatus
	row.ResponseBody = append([]byte(nil), arg.ResponseBody...)
	row.ContentType = arg.ContentType
	k.rows[arg.IdempotencyKey] = row
	return row, nil
}

func (k *KeyStore) ReleaseIdempotencyKey(_ context.Context, key, requestHash string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	row, ok := k.rows[key]
	if !ok || row.RequestHash != requestHash || !row.InProgress {
		return 0, nil
	}
	delete(k.rows, key)
	return 1, nil
}

// Len returns the number of stored keys.
func (k *KeyStore) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.rows)
}
