package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/gateway"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const depositPayloadPrefix = "deposit_"

// DepositService creates provider invoices that top up an account balance
// once the payment webhook confirms them.
type DepositService struct {
	store      QueryStore
	provider   gateway.Provider
	audit      *AuditService
	minDeposit int64
}

func NewDepositService(store QueryStore, provider gateway.Provider, minDeposit int64) *DepositService {
	return &DepositService{
		store:      store,
		provider:   provider,
		audit:      NewAuditService(store),
		minDeposit: minDeposit,
	}
}

// CreateDeposit registers an invoice for amount and records it as pending.
// The balance is only credited by HandlePaymentConfirmed.
func (s *DepositService) CreateDeposit(ctx context.Context, accountID, amount int64) (models.Deposit, error) {
	if amount <= 0 || amount < s.minDeposit {
		return models.Deposit{}, domain.ErrInvalidAmount
	}

	acc, err := s.store.Queries().GetAccount(ctx, accountID)
	if err != nil {
		return models.Deposit{}, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	if acc.IsBlocked {
		return models.Deposit{}, domain.ErrAccountBlocked
	}

	depositID := uuid.New()
	invoice, err := s.provider.CreateInvoice(ctx, amount, "Balance top-up", depositPayload(accountID, depositID))
	if err != nil {
		zap.L().Error("create invoice failed", zap.Int64("account_id", accountID), zap.Error(err))
		if gateway.IsRejection(err) {
			return models.Deposit{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return models.Deposit{}, err
	}

	var deposit models.Deposit
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		deposit, err = qtx.CreateDeposit(ctx, repository.CreateDepositParams{
			ID:        depositID,
			AccountID: accountID,
			Amount:    amount,
			InvoiceID: invoice.ID,
			PayURL:    invoice.PayURL,
		})
		if err != nil {
			return fmt.Errorf("create deposit: %w", err)
		}
		metadata, err := json.Marshal(map[string]any{
			"invoice_id":    invoice.ID,
			"amount_micros": amount,
		})
		if err != nil {
			return fmt.Errorf("marshal deposit metadata: %w", err)
		}
		return s.audit.Write(ctx, qtx, "deposit", depositID.String(), &accountID, "created", "", domain.DepositStatusPending, metadata)
	})
	if err != nil {
		return models.Deposit{}, err
	}

	zap.L().Info("deposit invoice created",
		zap.String("deposit_id", depositID.String()),
		zap.Int64("account_id", accountID),
		zap.String("amount", domain.FormatMicros(amount)),
		zap.String("invoice_id", invoice.ID),
	)
	return deposit, nil
}

func (s *DepositService) GetDeposit(ctx context.Context, id uuid.UUID) (models.Deposit, error) {
	deposit, err := s.store.Queries().GetDeposit(ctx, id)
	if err != nil {
		return models.Deposit{}, notFound(err, domain.ErrDepositNotFound, "get deposit")
	}
	return deposit, nil
}

// depositPayload is the opaque invoice payload: deposit_<account>_<deposit id>.
func depositPayload(accountID int64, depositID uuid.UUID) string {
	return depositPayloadPrefix + strconv.FormatInt(accountID, 10) + "_" + depositID.String()
}

func parseDepositPayload(payload string) (int64, uuid.UUID, error) {
	rest, ok := strings.CutPrefix(payload, depositPayloadPrefix)
	if !ok {
		return 0, uuid.Nil, domain.ErrDepositPayloadMismatch
	}
	rawAccount, rawID, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, uuid.Nil, domain.ErrDepositPayloadMismatch
	}
	accountID, err := strconv.ParseInt(rawAccount, 10, 64)
	if err != nil {
		return 0, uuid.Nil, domain.ErrDepositPayloadMismatch
	}
	depositID, err := uuid.Parse(rawID)
	if err != nil {
		return 0, uuid.Nil, domain.ErrDepositPayloadMismatch
	}
	return accountID, depositID, nil
}
