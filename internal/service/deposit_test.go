package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/gateway"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	invoice     gateway.Invoice
	invoiceErr  error
	ref         string
	transferErr error
	transfers   int
}

func (s *stubProvider) CreateInvoice(ctx context.Context, amount int64, description, payload string) (gateway.Invoice, error) {
	return s.invoice, s.invoiceErr
}

func (s *stubProvider) Transfer(ctx context.Context, userID int64, amount int64, spendID string) (string, error) {
	s.transfers++
	return s.ref, s.transferErr
}

// paidBody builds the provider's invoice_paid update for a deposit.
func paidBody(t *testing.T, deposit models.Deposit, amount string) []byte {
	t.Helper()
	invoiceID, err := strconv.ParseInt(deposit.InvoiceID, 10, 64)
	require.NoError(t, err)
	body, err := json.Marshal(PaymentUpdate{
		UpdateID:   42,
		UpdateType: "invoice_paid",
		Payload: InvoicePayload{
			InvoiceID: invoiceID,
			Status:    "paid",
			Asset:     "USDT",
			Amount:    amount,
			Payload:   depositPayload(deposit.AccountID, deposit.ID),
		},
	})
	require.NoError(t, err)
	return body
}

func TestCreateDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)

	_, err := f.deposits.CreateDeposit(ctx, 100, units/2)
	require.ErrorIs(t, err, domain.ErrInvalidAmount, "below MIN_DEPOSIT")

	_, err = f.deposits.CreateDeposit(ctx, 999, 5*units)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	deposit, err := f.deposits.CreateDeposit(ctx, 100, 5*units)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusPending, deposit.Status)
	assert.NotEmpty(t, deposit.PayURL)
	assert.Equal(t, int64(0), f.balance(t, 100), "nothing is credited before payment")
}

func TestCreateDepositProviderDown(t *testing.T) {
	f := newFixture(t)
	f.account(t, 100, 0)
	f.deposits = NewDepositService(f.store, &stubProvider{invoiceErr: &gateway.ProviderError{Method: "createInvoice", Status: 400, Name: "ASSET_DISABLED"}}, units)

	_, err := f.deposits.CreateDeposit(context.Background(), 100, 5*units)
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
}

func TestDepositPayloadRoundTrip(t *testing.T) {
	id := uuid.New()
	account, got, err := parseDepositPayload(depositPayload(777, id))
	require.NoError(t, err)
	assert.Equal(t, int64(777), account)
	assert.Equal(t, id, got)

	for _, bad := range []string{"", "deposit_", "deposit_x_" + id.String(), "refund_1_" + id.String(), "deposit_1_nope"} {
		_, _, err := parseDepositPayload(bad)
		require.ErrorIs(t, err, domain.ErrDepositPayloadMismatch, bad)
	}
}

func TestHandlePaymentConfirmedCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	deposit, err := f.deposits.CreateDeposit(ctx, 100, 5*units)
	require.NoError(t, err)

	body := paidBody(t, deposit, "5")
	sig := SignPayload(testWebhookSecret, body)

	resp, err := f.webhooks.HandlePaymentConfirmed(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, "Deposit processed successfully", resp.Message)
	assert.Equal(t, 5*units, f.balance(t, 100))

	// Replays, including concurrent ones, are acknowledged without a second credit.
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.webhooks.HandlePaymentConfirmed(ctx, body, strings.TrimPrefix(sig, "sha256="))
			if assert.NoError(t, err) {
				assert.Equal(t, domain.DepositStatusPaid, resp.Status)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5*units, f.balance(t, 100))

	stored, err := f.deposits.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusPaid, stored.Status)
	assert.NotNil(t, stored.PaidAt)
	f.requireBalanced(t)
}

func TestHandlePaymentConfirmedRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	deposit, err := f.deposits.CreateDeposit(ctx, 100, 5*units)
	require.NoError(t, err)
	body := paidBody(t, deposit, "5")

	for _, sig := range []string{"", "sha256=deadbeef", SignPayload("other-secret", body)} {
		_, err := f.webhooks.HandlePaymentConfirmed(ctx, body, sig)
		require.ErrorIs(t, err, domain.ErrInvalidSignature)
	}

	tampered := []byte(strings.Replace(string(body), `"amount":"5"`, `"amount":"500"`, 1))
	_, err = f.webhooks.HandlePaymentConfirmed(ctx, tampered, SignPayload(testWebhookSecret, body))
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	noKey := NewWebhookService(f.store, "", false)
	_, err = noKey.HandlePaymentConfirmed(ctx, body, SignPayload("", body))
	require.ErrorIs(t, err, domain.ErrInvalidSignature, "an empty key never verifies")

	assert.Equal(t, int64(0), f.balance(t, 100))
}

func TestHandlePaymentConfirmedMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)
	deposit, err := f.deposits.CreateDeposit(ctx, 100, 5*units)
	require.NoError(t, err)

	body := paidBody(t, deposit, "4.99")
	_, err = f.webhooks.HandlePaymentConfirmed(ctx, body, SignPayload(testWebhookSecret, body))
	require.ErrorIs(t, err, domain.ErrDepositPayloadMismatch)

	other := deposit
	other.ID = uuid.New()
	body = paidBody(t, other, "5")
	_, err = f.webhooks.HandlePaymentConfirmed(ctx, body, SignPayload(testWebhookSecret, body))
	require.ErrorIs(t, err, domain.ErrDepositNotFound)

	assert.Equal(t, int64(0), f.balance(t, 100))
}

func TestHandlePaymentConfirmedIgnoresUnpaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, 100, 0)

	body := []byte(`{"update_id":7,"update_type":"invoice_paid","payload":{"invoice_id":1,"status":"expired","amount":"5","payload":"deposit_100_` + uuid.NewString() + `"}}`)
	resp, err := f.webhooks.HandlePaymentConfirmed(ctx, body, SignPayload(testWebhookSecret, body))
	require.NoError(t, err)
	assert.Equal(t, "ignored", resp.Status)

	_, err = f.webhooks.HandlePaymentConfirmed(ctx, []byte("{"), SignPayload(testWebhookSecret, []byte("{")))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
