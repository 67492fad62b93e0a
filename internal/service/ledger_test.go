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

func TestLedgerCreditDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)

	acc, err := f.ledger.Credit(ctx, 100, 30*units, domain.EntryKindDeposit, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 30*units, acc.Balance)

	acc, err = f.ledger.Debit(ctx, 100, 10*units, domain.EntryKindAdjustment, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 20*units, acc.Balance)

	entries, err := f.ledger.GetStatement(ctx, 100, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.DirectionDebit, entries[0].Direction)
	assert.Equal(t, domain.DirectionCredit, entries[1].Direction)

	f.requireBalanced(t)
}

func TestLedgerRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 5*units)

	_, err := f.ledger.Credit(ctx, 100, 0, domain.EntryKindDeposit, uuid.Nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.ledger.Credit(ctx, 999, units, domain.EntryKindDeposit, uuid.Nil)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = f.ledger.Debit(ctx, 100, 6*units, domain.EntryKindAdjustment, uuid.Nil)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, 5*units, f.balance(t, 100))
}

func TestLedgerTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 10*units)
	f.account(t, 200, 0)

	require.NoError(t, f.ledger.Transfer(ctx, 100, 200, 4*units, domain.EntryKindPurchase, uuid.Nil))
	assert.Equal(t, 6*units, f.balance(t, 100))
	assert.Equal(t, 4*units, f.balance(t, 200))

	err := f.ledger.Transfer(ctx, 100, 200, 7*units, domain.EntryKindPurchase, uuid.Nil)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	err = f.ledger.Transfer(ctx, 100, 100, units, domain.EntryKindPurchase, uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	assert.Equal(t, 6*units, f.balance(t, 100))
	assert.Equal(t, 4*units, f.balance(t, 200))
	f.requireBalanced(t)
}

func TestLedgerConcurrentTransfersConserveMoney(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 50*units)
	f.account(t, 200, 50*units)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := int64(100), int64(200)
			if i%2 == 0 {
				from, to = to, from
			}
			_ = f.ledger.Transfer(ctx, from, to, 3*units, domain.EntryKindPurchase, uuid.Nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100*units, f.balance(t, 100)+f.balance(t, 200))
	assert.GreaterOrEqual(t, f.balance(t, 100), int64(0))
	assert.GreaterOrEqual(t, f.balance(t, 200), int64(0))
	f.requireBalanced(t)
}

func TestLedgerSetBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 10*units)

	_, err := f.ledger.SetBalance(ctx, 100, 100, 50*units)
	require.ErrorIs(t, err, domain.ErrNotAdmin)

	acc, err := f.ledger.SetBalance(ctx, testAdminID, 100, 25*units)
	require.NoError(t, err)
	assert.Equal(t, 25*units, acc.Balance)

	acc, err = f.ledger.SetBalance(ctx, testAdminID, 100, 5*units)
	require.NoError(t, err)
	assert.Equal(t, 5*units, acc.Balance)

	_, err = f.ledger.SetBalance(ctx, testAdminID, 100, -1)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	history, err := NewAuditService(f.store).History(ctx, "account", "100")
	require.NoError(t, err)
	require.NotEmpty(t, history)
	f.requireBalanced(t)
}

func TestLedgerSetBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)

	_, err := f.ledger.SetBlocked(ctx, 100, 100, true)
	require.ErrorIs(t, err, domain.ErrNotAdmin)

	acc, err := f.ledger.SetBlocked(ctx, testAdminID, 100, true)
	require.NoError(t, err)
	assert.True(t, acc.IsBlocked)

	_, err = f.catalog.CreateListing(ctx, CreateListingInput{
		SellerID: 100, Category: "whatsapp", Payload: "+447700900123", DurationHours: 2, Price: units,
	})
	require.ErrorIs(t, err, domain.ErrAccountBlocked)
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.EnsureAccount(ctx, 300, "alice")
	require.NoError(t, err)
	second, err := f.ledger.EnsureAccount(ctx, 300, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(0), second.Balance)
	assert.Equal(t, domain.DefaultRating, second.Rating)
}
