package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	signaturePrefix       = "sha256="
	updateTypeInvoicePaid = "invoice_paid"
	invoiceStatusPaid     = "paid"
)

// WebhookService handles payment confirmations pushed by the provider.
type WebhookService struct {
	store   QueryStore
	hmacKey []byte
	skipSig bool
	audit   *AuditService
}

func NewWebhookService(store QueryStore, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		store:   store,
		hmacKey: []byte(hmacKey),
		skipSig: skipSignature,
		audit:   NewAuditService(store),
	}
}

// PaymentUpdate is the provider's webhook body.
type PaymentUpdate struct {
	UpdateID   int64          `json:"update_id"`
	UpdateType string         `json:"update_type"`
	Payload    InvoicePayload `json:"payload"`
}

type InvoicePayload struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Payload   string `json:"payload"`
}

// PaymentConfirmedResponse is returned to the provider.
type PaymentConfirmedResponse struct {
	DepositID uuid.UUID `json:"deposit_id,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// HandlePaymentConfirmed verifies and applies a payment webhook. A deposit is
// credited at most once; replays of a paid deposit are acknowledged.
func (s *WebhookService) HandlePaymentConfirmed(ctx context.Context, body []byte, signature string) (*PaymentConfirmedResponse, error) {
	if !s.verifyHMAC(body, signature) {
		return nil, domain.ErrInvalidSignature
	}

	var update PaymentUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, domain.NewValidationError("body", "malformed JSON")
	}
	inv := update.Payload
	if update.UpdateType != updateTypeInvoicePaid || !strings.EqualFold(inv.Status, invoiceStatusPaid) {
		zap.L().Info("payment update ignored",
			zap.Int64("update_id", update.UpdateID),
			zap.String("update_type", update.UpdateType),
			zap.String("status", inv.Status),
		)
		return &PaymentConfirmedResponse{Status: "ignored", Message: "Update does not confirm a payment"}, nil
	}

	accountID, depositID, err := parseDepositPayload(inv.Payload)
	if err != nil {
		return nil, err
	}
	amount, err := domain.ParseAmount(inv.Amount)
	if err != nil {
		return nil, domain.ErrDepositPayloadMismatch
	}

	alreadyPaid := false
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		deposit, err := qtx.GetDepositForUpdate(ctx, depositID)
		if err != nil {
			return notFound(err, domain.ErrDepositNotFound, "lock deposit")
		}
		if deposit.AccountID != accountID || deposit.Amount != amount {
			return domain.ErrDepositPayloadMismatch
		}
		if inv.InvoiceID != 0 && deposit.InvoiceID != strconv.FormatInt(inv.InvoiceID, 10) {
			return domain.ErrDepositPayloadMismatch
		}
		if deposit.Status == domain.DepositStatusPaid {
			alreadyPaid = true
			return nil
		}

		rows, err := qtx.MarkDepositPaid(ctx, deposit.ID)
		if err != nil {
			return fmt.Errorf("mark deposit paid: %w", err)
		}
		if err := requireExactlyOne(rows, "mark deposit paid"); err != nil {
			return err
		}
		if err := postCredit(ctx, qtx, deposit.AccountID, deposit.Amount, domain.EntryKindDeposit, deposit.ID); err != nil {
			return err
		}

		metadata, err := json.Marshal(map[string]any{
			"update_id":  update.UpdateID,
			"invoice_id": inv.InvoiceID,
			"asset":      inv.Asset,
		})
		if err != nil {
			return fmt.Errorf("marshal webhook metadata: %w", err)
		}
		return s.audit.Write(ctx, qtx, "deposit", deposit.ID.String(), nil, "paid",
			domain.DepositStatusPending, domain.DepositStatusPaid, metadata)
	})
	if err != nil {
		zap.L().Warn("payment confirmation rejected",
			zap.Int64("update_id", update.UpdateID),
			zap.String("deposit_id", depositID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if alreadyPaid {
		return &PaymentConfirmedResponse{
			DepositID: depositID,
			Status:    domain.DepositStatusPaid,
			Message:   "Deposit already processed",
		}, nil
	}

	zap.L().Info("deposit credited",
		zap.String("deposit_id", depositID.String()),
		zap.Int64("account_id", accountID),
		zap.String("amount", domain.FormatMicros(amount)),
	)
	return &PaymentConfirmedResponse{
		DepositID: depositID,
		Status:    domain.DepositStatusPaid,
		Message:   "Deposit processed successfully",
	}, nil
}

// verifyHMAC checks hex(HMAC-SHA256(key, body)), with or without the sha256= prefix.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))

	got := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix))
	return hmac.Equal([]byte(got), []byte(expected))
}

// SignPayload returns the signature header value the provider would send for body.
func SignPayload(key string, body []byte) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}
