package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePromo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)

	_, err := f.promos.CreatePromo(ctx, 100, CreatePromoInput{Code: "SPRING", Amount: units, MaxUses: 1})
	require.ErrorIs(t, err, domain.ErrNotAdmin)

	_, err = f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "a!", Amount: units, MaxUses: 1})
	require.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "SPRING", Amount: 0, MaxUses: 1})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "SPRING", Amount: units, MaxUses: 0})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	past := time.Now().Add(-time.Hour)
	_, err = f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "SPRING", Amount: units, MaxUses: 1, ExpiresAt: &past})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	promo, err := f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "spring", Amount: units, MaxUses: 3})
	require.NoError(t, err)
	assert.Equal(t, "SPRING", promo.Code)
	assert.True(t, promo.Active)

	_, err = f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "SPRING", Amount: units, MaxUses: 1})
	require.ErrorIs(t, err, domain.ErrCodeConflict)
}

func TestRedeemPromo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	f.account(t, 200, 0)
	_, err := f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "TWICE", Amount: 2 * units, MaxUses: 2})
	require.NoError(t, err)

	// Codes are matched exactly; only surrounding whitespace is ignored.
	_, err = f.promos.Redeem(ctx, "twice", 100)
	require.ErrorIs(t, err, domain.ErrCodeNotFound)

	amount, err := f.promos.Redeem(ctx, " TWICE ", 100)
	require.NoError(t, err)
	assert.Equal(t, 2*units, amount)

	_, err = f.promos.Redeem(ctx, "TWICE", 200)
	require.NoError(t, err)

	_, err = f.promos.Redeem(ctx, "TWICE", 100)
	require.ErrorIs(t, err, domain.ErrCodeExhausted)

	_, err = f.promos.Redeem(ctx, "NOPE", 100)
	require.ErrorIs(t, err, domain.ErrCodeNotFound)

	promo, err := f.promos.GetPromo(ctx, "TWICE")
	require.NoError(t, err)
	assert.Equal(t, int32(2), promo.CurrentUses)
	assert.False(t, promo.Active)

	assert.Equal(t, 2*units, f.balance(t, 100))
	assert.Equal(t, 2*units, f.balance(t, 200))
	assert.Len(t, f.store.Redemptions(), 2)
	f.requireBalanced(t)
}

func TestRedeemExpiredPromo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)

	expires := time.Now().Add(time.Hour)
	_, err := f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "SOON", Amount: units, MaxUses: 5, ExpiresAt: &expires})
	require.NoError(t, err)

	f.promos.now = func() time.Time { return expires.Add(time.Second) }
	_, err = f.promos.Redeem(ctx, "SOON", 100)
	require.ErrorIs(t, err, domain.ErrCodeExpired)
	assert.Equal(t, int64(0), f.balance(t, 100))
}

func TestRedeemBlockedOrDeactivated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	f.account(t, 200, 0)
	_, err := f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "GIFT", Amount: units, MaxUses: 5})
	require.NoError(t, err)

	_, err = f.ledger.SetBlocked(ctx, testAdminID, 100, true)
	require.NoError(t, err)
	_, err = f.promos.Redeem(ctx, "GIFT", 100)
	require.ErrorIs(t, err, domain.ErrAccountBlocked)

	_, err = f.promos.DeactivatePromo(ctx, testAdminID, "GIFT")
	require.NoError(t, err)
	_, err = f.promos.DeactivatePromo(ctx, testAdminID, "GIFT")
	require.NoError(t, err, "deactivating twice is a no-op")

	_, err = f.promos.Redeem(ctx, "GIFT", 200)
	require.ErrorIs(t, err, domain.ErrCodeExhausted)

	promo, err := f.promos.GetPromo(ctx, "GIFT")
	require.NoError(t, err)
	assert.Equal(t, int32(0), promo.CurrentUses)
}

func TestConcurrentRedeemHonoursMaxUses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const maxUses, redeemers = 3, 12
	_, err := f.promos.CreatePromo(ctx, testAdminID, CreatePromoInput{Code: "RUSH", Amount: units, MaxUses: maxUses})
	require.NoError(t, err)
	for i := range redeemers {
		f.account(t, int64(500+i), 0)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		exhausted int
	)
	for i := range redeemers {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.promos.Redeem(ctx, "RUSH", id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if assert.ErrorIs(t, err, domain.ErrCodeExhausted) {
				exhausted++
			}
		}(int64(500 + i))
	}
	wg.Wait()

	assert.Equal(t, maxUses, ok)
	assert.Equal(t, redeemers-maxUses, exhausted)
	assert.Len(t, f.store.Redemptions(), maxUses)

	promo, err := f.promos.GetPromo(ctx, "RUSH")
	require.NoError(t, err)
	assert.Equal(t, int32(maxUses), promo.CurrentUses)
	f.requireBalanced(t)
}
