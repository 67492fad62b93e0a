package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/gateway"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) account100WithPayout(t *testing.T, provider gateway.Provider) models.Payout {
	t.Helper()
	f.payouts = NewPayoutService(f.store, provider, units)
	f.account(t, 100, 20*units)
	payout, err := f.payouts.RequestPayout(context.Background(), 100, 5*units)
	require.NoError(t, err)
	return payout
}

func (f *fixture) held(t *testing.T, id int64) int64 {
	t.Helper()
	acc, err := f.ledger.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Held
}

func TestRequestPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 10*units)

	_, err := f.payouts.RequestPayout(ctx, 100, units/2)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.payouts.RequestPayout(ctx, 100, 11*units)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	payout, err := f.payouts.RequestPayout(ctx, 100, 6*units)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, payout.Status)

	assert.Equal(t, 10*units, f.balance(t, 100))
	assert.Equal(t, 6*units, f.held(t, 100))
	assert.Equal(t, 4*units, f.available(t, 100))

	_, err = f.payouts.RequestPayout(ctx, 100, 5*units)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds, "held funds are not spendable")

	f.account(t, 200, 0)
	listing := f.listing(t, 200, 5*units)
	_, err = f.escrow.Purchase(ctx, 100, listing.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds, "held funds cannot buy listings")
}

func TestPayoutProcessSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := &stubProvider{ref: "TR-1"}
	payout := f.account100WithPayout(t, provider)

	require.NoError(t, f.payouts.ProcessPayouts(ctx, 5))

	got, err := f.payouts.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, got.Status)
	require.NotNil(t, got.SettlementRef)
	assert.Equal(t, "TR-1", *got.SettlementRef)

	assert.Equal(t, 15*units, f.balance(t, 100))
	assert.Equal(t, int64(0), f.held(t, 100))
	assert.Equal(t, 1, provider.transfers)

	require.NoError(t, f.payouts.ProcessPayouts(ctx, 5))
	assert.Equal(t, 1, provider.transfers, "completed payouts are not resent")
	f.requireBalanced(t)
}

func TestPayoutProcessFailureReleasesHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payout := f.account100WithPayout(t, &stubProvider{
		transferErr: &gateway.ProviderError{Method: "transfer", Status: 400, Code: 400, Name: "INSUFFICIENT_FUNDS"},
	})

	require.NoError(t, f.payouts.ProcessPayouts(ctx, 5))

	got, err := f.payouts.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)

	assert.Equal(t, 20*units, f.balance(t, 100))
	assert.Equal(t, int64(0), f.held(t, 100))
	f.requireBalanced(t)
}

func TestPayoutUnknownOutcomeGoesToManualReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payout := f.account100WithPayout(t, &stubProvider{transferErr: domain.ErrProviderUnavailable})

	require.NoError(t, f.payouts.ProcessPayouts(ctx, 5))

	got, err := f.payouts.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusManualReview, got.Status)
	assert.Equal(t, 20*units, f.balance(t, 100))
	assert.Equal(t, 5*units, f.held(t, 100), "funds stay held until an operator decides")

	size, err := f.payouts.ManualReviewQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	queue, err := f.payouts.ListManualReviewPayouts(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, payout.ID, queue[0].ID)
}

func TestResolveManualReviewPayout(t *testing.T) {
	cases := []struct {
		name       string
		decision   ResolveManualReviewDecision
		wantStatus string
		wantBal    int64
	}{
		{name: "confirm_sent", decision: DecisionConfirmSent, wantStatus: domain.PayoutStatusCompleted, wantBal: 15 * units},
		{name: "refund_failed", decision: DecisionRefundFailed, wantStatus: domain.PayoutStatusFailed, wantBal: 20 * units},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			payout := f.account100WithPayout(t, &stubProvider{transferErr: domain.ErrProviderUnavailable})
			require.NoError(t, f.payouts.ProcessPayouts(ctx, 5))

			_, err := f.payouts.ResolveManualReviewPayout(ctx, ResolveManualReviewRequest{PayoutID: payout.ID, AdminID: 100, Decision: tc.decision})
			require.ErrorIs(t, err, domain.ErrNotAdmin)

			_, err = f.payouts.ResolveManualReviewPayout(ctx, ResolveManualReviewRequest{PayoutID: payout.ID, AdminID: testAdminID, Decision: "maybe"})
			require.ErrorIs(t, err, domain.ErrInvalidDecision)

			ref := "TR-MANUAL"
			got, err := f.payouts.ResolveManualReviewPayout(ctx, ResolveManualReviewRequest{
				PayoutID:      payout.ID,
				AdminID:       testAdminID,
				Decision:      tc.decision,
				Reason:        "checked provider dashboard",
				SettlementRef: &ref,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.Equal(t, tc.wantBal, f.balance(t, 100))
			assert.Equal(t, int64(0), f.held(t, 100))

			_, err = f.payouts.ResolveManualReviewPayout(ctx, ResolveManualReviewRequest{PayoutID: payout.ID, AdminID: testAdminID, Decision: tc.decision})
			require.ErrorIs(t, err, domain.ErrPayoutNotInManualReview)
			f.requireBalanced(t)
		})
	}

	f := newFixture(t)
	_, err := f.payouts.ResolveManualReviewPayout(context.Background(), ResolveManualReviewRequest{PayoutID: uuid.New(), AdminID: testAdminID, Decision: DecisionConfirmSent})
	require.ErrorIs(t, err, domain.ErrPayoutNotFound)
}

func TestPayoutProcessRecoversStaleProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := &stubProvider{ref: "TR-STALE"}
	payout := f.account100WithPayout(t, provider)

	// Simulate a worker that claimed the payout and died.
	_, err := f.payouts.claimPendingPayouts(ctx, 5)
	require.NoError(t, err)
	got, err := f.payouts.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PayoutStatusProcessing, got.Status)

	require.NoError(t, f.payouts.ProcessPayouts(ctx, 5))
	assert.Equal(t, 0, provider.transfers, "fresh PROCESSING rows are left alone")

	f.payouts.now = func() time.Time { return time.Now().Add(stalePayoutRecoveryWindow + time.Minute) }
	require.NoError(t, f.payouts.ProcessPayouts(ctx, 5))

	got, err = f.payouts.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, got.Status)
	assert.Equal(t, 1, provider.transfers)
}

func TestPayoutRequeuedWhenContextCanceled(t *testing.T) {
	f := newFixture(t)
	provider := gateway.NewMockProvider()
	provider.Latency = time.Second
	payout := f.account100WithPayout(t, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, f.payouts.ProcessPayouts(ctx, 5), context.DeadlineExceeded)

	got, err := f.payouts.GetPayout(context.Background(), payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, got.Status)
	assert.Equal(t, 5*units, f.held(t, 100))
}

func TestPayoutWithMockProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payout := f.account100WithPayout(t, f.provider)

	require.NoError(t, f.payouts.ProcessPayouts(ctx, 5))
	got, err := f.payouts.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, got.Status)
	require.NotNil(t, got.SettlementRef)
	assert.Regexp(t, `^MOCK-\d{8}-\d{6}-\d{5}$`, *got.SettlementRef)
	f.requireBalanced(t)
}
