package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ayo6706/escrow-market/internal/testutil/memstore"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ReserveFinalizeLookup(t *testing.T) {
	ctx := context.Background()
	keys := memstore.NewKeyStore()
	store := NewStore(nil, keys, time.Hour)

	_, err := store.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Reserve(ctx, "k1", "h1", "POST", "/v1/payouts")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Reserve(ctx, "k1", "h1", "POST", "/v1/payouts")
	require.NoError(t, err)
	assert.False(t, ok, "second reservation of the same key must fail")

	_, err = store.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrInProgress)

	_, err = store.Finalize(ctx, "k1", "h1", 201, []byte(`{"id":"p1"}`), "application/json")
	require.NoError(t, err)

	rec, err := store.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
	assert.Equal(t, "postgres", rec.ServedBy)
	assert.JSONEq(t, `{"id":"p1"}`, string(rec.Body))

	_, err = store.Lookup(ctx, "k1", "other-hash")
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestStore_ReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	keys := memstore.NewKeyStore()
	store := NewStore(nil, keys, time.Hour)

	ok, err := store.Reserve(ctx, "k2", "h", "POST", "/v1/deposits")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, "k2", "h"))
	assert.Zero(t, keys.Len())

	ok, err = store.Reserve(ctx, "k2", "h", "POST", "/v1/deposits")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_LookupServedFromRedis(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStore(db, memstore.NewKeyStore(), time.Hour)

	env, err := json.Marshal(cacheEnvelope{Key: "k3", Hash: "h", Status: 200, Body: []byte("{}"), ContentType: "application/json"})
	require.NoError(t, err)
	mock.ExpectGet("idempotency:k3").SetVal(string(env))

	rec, err := store.Lookup(context.Background(), "k3", "h")
	require.NoError(t, err)
	assert.Equal(t, "redis", rec.ServedBy)
	assert.Equal(t, 200, rec.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RedisFailureFallsBackToPostgres(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStore(db, memstore.NewKeyStore(), time.Hour)

	mock.ExpectGet("idempotency:k4").SetErr(errors.New("connection reset"))

	_, err := store.Lookup(context.Background(), "k4", "h")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_WaitForCompletionHonoursContext(t *testing.T) {
	keys := memstore.NewKeyStore()
	store := NewStore(nil, keys, time.Hour)
	store.poll = time.Millisecond

	ok, err := store.Reserve(context.Background(), "k5", "h", "POST", "/x")
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = store.WaitForCompletion(ctx, "k5", "h")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_WaitForCompletionIsBounded(t *testing.T) {
	store := NewStore(nil, memstore.NewKeyStore(), time.Hour)
	store.poll = time.Millisecond
	store.maxWait = 10 * time.Millisecond

	ok, err := store.Reserve(context.Background(), "k6", "h", "POST", "/x")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = store.WaitForCompletion(context.Background(), "k6", "h")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_UnreadableCacheEntryIsIgnored(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStore(db, memstore.NewKeyStore(), time.Hour)
	mock.ExpectGet("idempotency:k7").SetVal("not json")

	_, err := store.Lookup(context.Background(), "k7", "h")
	require.ErrorIs(t, err, ErrNotFound)
}
