package service

import (
	"context"
	"testing"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/gateway"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/testutil/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testAdminID       = int64(1)
	testWebhookSecret = "test-webhook-secret"
	units             = int64(1_000_000)
)

// fixture wires every service over one in-memory store.
type fixture struct {
	store    *memstore.Store
	provider *gateway.MockProvider
	ledger   *LedgerService
	catalog  *CatalogService
	escrow   *EscrowService
	disputes *DisputeService
	promos   *PromoService
	reviews  *ReviewService
	deposits *DepositService
	webhooks *WebhookService
	payouts  *PayoutService
	recon    *ReconciliationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	provider := gateway.NewMockProvider()
	f := &fixture{
		store:    store,
		provider: provider,
		ledger:   NewLedgerService(store),
		catalog:  NewCatalogService(store, 0),
		escrow:   NewEscrowService(store),
		disputes: NewDisputeService(store),
		promos:   NewPromoService(store),
		reviews:  NewReviewService(store),
		deposits: NewDepositService(store, provider, 1*units),
		webhooks: NewWebhookService(store, testWebhookSecret, false),
		payouts:  NewPayoutService(store, provider, 1*units),
		recon:    NewReconciliationService(store),
	}

	ctx := context.Background()
	_, err := f.ledger.EnsureAccount(ctx, testAdminID, "admin")
	require.NoError(t, err)
	_, err = f.ledger.GrantAdmin(ctx, testAdminID)
	require.NoError(t, err)
	return f
}

// account creates an account funded with balance micros through a deposit entry.
func (f *fixture) account(t *testing.T, id, balance int64) models.Account {
	t.Helper()
	ctx := context.Background()
	acc, err := f.ledger.EnsureAccount(ctx, id, "user")
	require.NoError(t, err)
	if balance > 0 {
		acc, err = f.ledger.Credit(ctx, id, balance, domain.EntryKindDeposit, uuid.New())
		require.NoError(t, err)
	}
	return acc
}

func (f *fixture) listing(t *testing.T, sellerID, price int64) models.Listing {
	t.Helper()
	listing, err := f.catalog.CreateListing(context.Background(), CreateListingInput{
		SellerID:      sellerID,
		Category:      "telegram",
		Payload:       "+15551234567",
		DurationHours: 24,
		Price:         price,
	})
	require.NoError(t, err)
	return listing
}

func (f *fixture) available(t *testing.T, id int64) int64 {
	t.Helper()
	bal, err := f.ledger.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return bal
}

func (f *fixture) balance(t *testing.T, id int64) int64 {
	t.Helper()
	acc, err := f.ledger.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

// requireBalanced fails the test when any reconciliation check does not hold.
func (f *fixture) requireBalanced(t *testing.T) {
	t.Helper()
	report, err := f.recon.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Failed(), "ledger checks failed: %+v", report)
}
