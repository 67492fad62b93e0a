package service

import (
	"context"
	"testing"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)

	valid := CreateListingInput{SellerID: 100, Category: "WhatsApp", Payload: "+15551234567", DurationHours: 24, Price: 5 * units}

	cases := []struct {
		name   string
		mutate func(*CreateListingInput)
		check  func(*testing.T, error)
	}{
		{name: "zero_price", mutate: func(in *CreateListingInput) { in.Price = 0 }, check: func(t *testing.T, err error) {
			require.ErrorIs(t, err, domain.ErrInvalidPrice)
		}},
		{name: "unknown_category", mutate: func(in *CreateListingInput) { in.Category = "myspace" }, check: func(t *testing.T, err error) {
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		}},
		{name: "bad_phone", mutate: func(in *CreateListingInput) { in.Payload = "12345" }, check: func(t *testing.T, err error) {
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		}},
		{name: "duration_too_long", mutate: func(in *CreateListingInput) { in.DurationHours = 169 }, check: func(t *testing.T, err error) {
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		}},
		{name: "unknown_seller", mutate: func(in *CreateListingInput) { in.SellerID = 999 }, check: func(t *testing.T, err error) {
			require.ErrorIs(t, err, domain.ErrAccountNotFound)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := f.catalog.CreateListing(ctx, in)
			require.Error(t, err)
			tc.check(t, err)
		})
	}

	listing, err := f.catalog.CreateListing(ctx, valid)
	require.NoError(t, err)
	assert.True(t, listing.Active)
	assert.Equal(t, "whatsapp", listing.Category)
}

func TestCreateListingMinimumPrice(t *testing.T) {
	f := newFixture(t)
	f.catalog = NewCatalogService(f.store, 2*units)
	f.account(t, 100, 0)

	in := CreateListingInput{SellerID: 100, Category: "viber", Payload: "+15551234567", DurationHours: 1, Price: 2 * units}
	_, err := f.catalog.CreateListing(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrInvalidPrice)

	in.Price = 2*units + 1
	_, err = f.catalog.CreateListing(context.Background(), in)
	require.NoError(t, err)
}

func collect(t *testing.T, f *fixture, filter ListingFilter) []models.Listing {
	t.Helper()
	var out []models.Listing
	for listing, err := range f.catalog.ListListings(context.Background(), filter) {
		require.NoError(t, err)
		out = append(out, listing)
	}
	return out
}

func TestListListings(t *testing.T) {
	f := newFixture(t)
	f.account(t, 100, 0)
	f.account(t, 200, 0)

	cheap := f.listing(t, 100, 1*units)
	mid := f.listing(t, 200, 5*units)
	pricey := f.listing(t, 100, 9*units)

	all := collect(t, f, ListingFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, pricey.ID, all[0].ID, "newest first by default")

	asc := collect(t, f, ListingFilter{OrderBy: domain.ListingOrderPriceAsc})
	assert.Equal(t, []uuid.UUID{cheap.ID, mid.ID, pricey.ID}, []uuid.UUID{asc[0].ID, asc[1].ID, asc[2].ID})

	bySeller := collect(t, f, ListingFilter{SellerID: 200})
	require.Len(t, bySeller, 1)
	assert.Equal(t, mid.ID, bySeller[0].ID)

	ranged := collect(t, f, ListingFilter{MinPrice: 2 * units, MaxPrice: 9 * units})
	assert.Len(t, ranged, 2)

	limited := collect(t, f, ListingFilter{Limit: 1})
	assert.Len(t, limited, 1)

	_, err := f.catalog.Deactivate(context.Background(), 100, cheap.ID)
	require.NoError(t, err)
	assert.Len(t, collect(t, f, ListingFilter{}), 2, "inactive listings are hidden")
}

func TestListListingsIsRestartable(t *testing.T) {
	f := newFixture(t)
	f.account(t, 100, 0)
	f.listing(t, 100, units)

	seq := f.catalog.ListListings(context.Background(), ListingFilter{})
	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 1, count())
	f.listing(t, 100, 2*units)
	assert.Equal(t, 2, count(), "each range runs a fresh query")
}

func TestListListingsRejectsBadFilter(t *testing.T) {
	f := newFixture(t)
	for _, filter := range []ListingFilter{
		{Category: "fax"},
		{OrderBy: "random"},
		{MinPrice: 5, MaxPrice: 1},
	} {
		var errs int
		for _, err := range f.catalog.ListListings(context.Background(), filter) {
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			errs++
		}
		assert.Equal(t, 1, errs)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	f.account(t, 200, 0)
	listing := f.listing(t, 100, units)

	_, err := f.catalog.Deactivate(ctx, 200, listing.ID)
	require.ErrorIs(t, err, domain.ErrNotParticipant)

	first, err := f.catalog.Deactivate(ctx, 100, listing.ID)
	require.NoError(t, err)
	assert.False(t, first.Active)

	second, err := f.catalog.Deactivate(ctx, 100, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = f.catalog.Deactivate(ctx, testAdminID, listing.ID)
	require.NoError(t, err, "admins may deactivate any listing")

	_, err = f.catalog.Deactivate(ctx, 100, uuid.New())
	require.ErrorIs(t, err, domain.ErrListingNotFound)

	history, err := NewAuditService(f.store).History(ctx, "listing", listing.ID.String())
	require.NoError(t, err)
	deactivations := 0
	for _, h := range history {
		if h.Action == "deactivated" {
			deactivations++
		}
	}
	assert.Equal(t, 1, deactivations)
}
