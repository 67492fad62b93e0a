package service

import (
	"context"
	"sync"
	"testing"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	f.account(t, 200, 20*units)
	listing := f.listing(t, 100, 8*units)

	txn, err := f.escrow.Purchase(ctx, 200, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, txn.Status)
	assert.Equal(t, int64(200), txn.BuyerID)
	assert.Equal(t, int64(100), txn.SellerID)
	assert.Equal(t, 8*units, txn.Amount)

	assert.Equal(t, 12*units, f.balance(t, 200))
	assert.Equal(t, 8*units, f.balance(t, 100))

	got, err := f.catalog.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = f.escrow.Purchase(ctx, 200, listing.ID)
	require.ErrorIs(t, err, domain.ErrListingUnavailable)

	txs, err := f.escrow.ListTransactions(ctx, 100, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, txn.ID, txs[0].ID)

	f.requireBalanced(t)
}

func TestPurchaseFailuresLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	f.account(t, 200, 3*units)
	listing := f.listing(t, 100, 8*units)

	_, err := f.escrow.Purchase(ctx, 200, listing.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.escrow.Purchase(ctx, 100, listing.ID)
	require.ErrorIs(t, err, domain.ErrListingUnavailable, "sellers cannot buy their own listing")

	_, err = f.escrow.Purchase(ctx, 200, uuid.New())
	require.ErrorIs(t, err, domain.ErrListingUnavailable)

	_, err = f.escrow.Purchase(ctx, 999, listing.ID)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	got, err := f.catalog.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, 3*units, f.balance(t, 200))
	assert.Equal(t, int64(0), f.balance(t, 100))
}

func TestPurchaseBlockedBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	f.account(t, 200, 10*units)
	listing := f.listing(t, 100, units)

	_, err := f.ledger.SetBlocked(ctx, testAdminID, 200, true)
	require.NoError(t, err)

	_, err = f.escrow.Purchase(ctx, 200, listing.ID)
	require.ErrorIs(t, err, domain.ErrAccountBlocked)
}

func TestPurchaseRollsBackOnCommitFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	f.account(t, 200, 10*units)
	listing := f.listing(t, 100, 4*units)

	f.store.FailNextCommit(assert.AnError)
	_, err := f.escrow.Purchase(ctx, 200, listing.ID)
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, 10*units, f.balance(t, 200))
	assert.Equal(t, int64(0), f.balance(t, 100))
	got, err := f.catalog.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestConcurrentPurchaseSellsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	listing := f.listing(t, 100, 5*units)

	const buyers = 10
	for i := range buyers {
		f.account(t, int64(1000+i), 10*units)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := range buyers {
		wg.Add(1)
		go func(buyer int64) {
			defer wg.Done()
			_, err := f.escrow.Purchase(ctx, buyer, listing.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, domain.ErrListingUnavailable):
				rejected++
			}
		}(int64(1000 + i))
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, rejected)
	assert.Equal(t, 5*units, f.balance(t, 100))

	var total int64
	for i := range buyers {
		total += f.balance(t, int64(1000+i))
	}
	assert.Equal(t, int64(buyers)*10*units-5*units, total)
	f.requireBalanced(t)
}
