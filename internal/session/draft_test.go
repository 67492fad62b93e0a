package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	got   []service.CreateListingInput
	err   error
	calls int
}

func (f *fakeCatalog) CreateListing(_ context.Context, in service.CreateListingInput) (models.Listing, error) {
	f.calls++
	f.got = append(f.got, in)
	if f.err != nil {
		return models.Listing{}, f.err
	}
	return models.Listing{ID: uuid.New(), SellerID: in.SellerID, Category: in.Category, Price: in.Price}, nil
}

func ptr[T any](v T) *T { return &v }

const completeDraft = `{"category":"telegram","payload":"+15551234567","duration_hours":24,"price_micros":10000000}`

func TestDraftStore_GetMissingReturnsEmpty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewDraftStore(db, time.Minute)

	mock.ExpectGet("listing_draft:42").RedisNil()

	d, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, Draft{}, d)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftStore_MergeKeepsExistingFields(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewDraftStore(db, 30*time.Minute)

	mock.ExpectGet("listing_draft:7").SetVal(`{"category":"telegram","payload":"+15551234567"}`)
	mock.ExpectSet("listing_draft:7",
		`{"category":"telegram","payload":"+15551234567","duration_hours":24}`,
		30*time.Minute,
	).SetVal("OK")

	d, err := store.Merge(context.Background(), 7, Patch{DurationHours: ptr(int32(24))})
	require.NoError(t, err)
	assert.Equal(t, "telegram", d.Category)
	assert.Equal(t, int32(24), d.DurationHours)
	assert.False(t, d.Complete())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftStore_MergePropagatesRedisErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewDraftStore(db, 0)

	mock.ExpectGet("listing_draft:7").SetErr(errors.New("connection refused"))

	_, err := store.Merge(context.Background(), 7, Patch{Category: ptr("viber")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get listing draft")
}

func TestDraftStore_UnreadableDraftIsDiscarded(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewDraftStore(db, time.Minute)

	mock.ExpectGet("listing_draft:9").SetVal("{not json")

	d, err := store.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, Draft{}, d)
}

func TestSubmit_IncompleteDraft(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewDraftStore(db, time.Minute)
	catalog := &fakeCatalog{}

	mock.ExpectGet("listing_draft:5").SetVal(`{"category":"telegram"}`)

	_, err := Submit(context.Background(), store, catalog, 5)
	require.ErrorIs(t, err, domain.ErrDraftIncomplete)
	assert.Zero(t, catalog.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmit_CreatesListingAndClearsDraft(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewDraftStore(db, time.Minute)
	catalog := &fakeCatalog{}

	mock.ExpectGet("listing_draft:5").SetVal(completeDraft)
	mock.ExpectDel("listing_draft:5").SetVal(1)

	listing, err := Submit(context.Background(), store, catalog, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), listing.SellerID)
	require.Len(t, catalog.got, 1)
	assert.Equal(t, service.CreateListingInput{
		SellerID:      5,
		Category:      "telegram",
		Payload:       "+15551234567",
		DurationHours: 24,
		Price:         10_000_000,
	}, catalog.got[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmit_RejectedDraftIsKept(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewDraftStore(db, time.Minute)
	catalog := &fakeCatalog{err: domain.ErrInvalidPrice}

	mock.ExpectGet("listing_draft:5").SetVal(completeDraft)

	_, err := Submit(context.Background(), store, catalog, 5)
	require.ErrorIs(t, err, domain.ErrInvalidPrice)
	// No Del was expected; a call to it would fail the mock.
	require.NoError(t, mock.ExpectationsWereMet())
}
