package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/gateway"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/observability"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PayoutService handles withdrawals to the payment provider.
type PayoutService struct {
	store         QueryStore
	provider      gateway.Provider
	audit         *AuditService
	minWithdrawal int64
	now           func() time.Time
}

const stalePayoutRecoveryWindow = 2 * time.Minute

func NewPayoutService(store QueryStore, provider gateway.Provider, minWithdrawal int64) *PayoutService {
	return &PayoutService{
		store:         store,
		provider:      provider,
		audit:         NewAuditService(store),
		minWithdrawal: minWithdrawal,
		now:           time.Now,
	}
}

type ResolveManualReviewDecision string

const (
	DecisionConfirmSent  ResolveManualReviewDecision = "confirm_sent"
	DecisionRefundFailed ResolveManualReviewDecision = "refund_failed"
)

type ResolveManualReviewRequest struct {
	PayoutID      uuid.UUID
	AdminID       int64
	Decision      ResolveManualReviewDecision
	Reason        string
	SettlementRef *string
}

// RequestPayout holds amount on the account and queues a PENDING payout.
// The worker sends it; the balance only drops once the provider confirms.
func (s *PayoutService) RequestPayout(ctx context.Context, accountID, amount int64) (models.Payout, error) {
	if amount <= 0 || amount < s.minWithdrawal {
		return models.Payout{}, domain.ErrInvalidAmount
	}

	payoutID := uuid.New()
	var payout models.Payout
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		locked, err := lockAccounts(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		acc := locked[accountID]
		if acc.IsBlocked {
			return domain.ErrAccountBlocked
		}
		if acc.Available() < amount {
			return domain.ErrInsufficientFunds
		}

		rows, err := qtx.HoldAccountFunds(ctx, repository.AccountAmountParams{ID: accountID, Amount: amount})
		if err != nil {
			return fmt.Errorf("hold payout funds: %w", err)
		}
		if rows != 1 {
			return domain.ErrInsufficientFunds
		}

		payout, err = qtx.CreatePayout(ctx, repository.CreatePayoutParams{
			ID:        payoutID,
			AccountID: accountID,
			Amount:    amount,
		})
		if err != nil {
			return fmt.Errorf("create payout: %w", err)
		}
		metadata, err := json.Marshal(map[string]any{"amount_micros": amount})
		if err != nil {
			return fmt.Errorf("marshal payout metadata: %w", err)
		}
		return s.audit.Write(ctx, qtx, "payout", payoutID.String(), &accountID, "requested", "", domain.PayoutStatusPending, metadata)
	})
	if err != nil {
		return models.Payout{}, err
	}

	zap.L().Info("payout requested",
		zap.String("payout_id", payoutID.String()),
		zap.Int64("account_id", accountID),
		zap.String("amount", domain.FormatMicros(amount)),
	)
	return payout, nil
}

// ProcessPayouts sends a batch of pending payouts to the provider. A definite
// rejection releases the hold; an unknown outcome parks the payout in
// MANUAL_REVIEW with the funds still held.
func (s *PayoutService) ProcessPayouts(ctx context.Context, batchSize int32) error {
	if err := s.recoverStaleProcessingPayouts(ctx, batchSize); err != nil {
		return err
	}

	claimed, err := s.claimPendingPayouts(ctx, batchSize)
	if err != nil {
		return err
	}

	for i, payout := range claimed {
		if err := ctx.Err(); err != nil {
			if requeueErr := s.requeueClaimedPayouts(context.Background(), claimed[i:]); requeueErr != nil {
				zap.L().Error("failed to requeue claimed payouts on context cancellation", zap.Error(requeueErr))
			}
			return err
		}

		ref, err := s.provider.Transfer(ctx, payout.AccountID, payout.Amount, payout.ID.String())
		if err != nil {
			switch {
			case ctx.Err() != nil:
				// spend_id makes a resend safe, so an interrupted call goes back to the queue.
				if requeueErr := s.requeueClaimedPayouts(context.Background(), claimed[i:]); requeueErr != nil {
					zap.L().Error("failed to requeue payout after cancellation", zap.Error(requeueErr), zap.String("payout_id", payout.ID.String()))
				}
				return ctx.Err()
			case gateway.IsRejection(err):
				s.handlePayoutFailure(ctx, payout, err.Error())
			default:
				zap.L().Error("payout outcome unknown; moved to manual review", zap.Error(err), zap.String("payout_id", payout.ID.String()))
				s.markPayoutManualReview(ctx, payout.ID, "", err.Error())
			}
			continue
		}

		if err := s.handlePayoutSuccess(ctx, payout, ref); err != nil {
			zap.L().Error(
				"payout succeeded at provider but local finalization failed; moved to manual review",
				zap.Error(err),
				zap.String("payout_id", payout.ID.String()),
				zap.String("settlement_ref", ref),
			)
		}
	}
	return nil
}

func (s *PayoutService) recoverStaleProcessingPayouts(ctx context.Context, batchSize int32) error {
	cutoff := s.now().Add(-stalePayoutRecoveryWindow)
	var stale []models.Payout
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		stale, err = qtx.GetStaleProcessingPayouts(ctx, repository.GetStaleProcessingPayoutsParams{
			UpdatedBefore: cutoff,
			Limit:         batchSize,
		})
		if err != nil {
			return fmt.Errorf("load stale processing payouts: %w", err)
		}
		for _, payout := range stale {
			if err := s.setStatus(ctx, qtx, payout, domain.PayoutStatusPending, nil, "requeue_stale", nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(stale) > 0 {
		zap.L().Warn("recovered stale processing payouts", zap.Int("count", len(stale)))
	}
	return nil
}

func (s *PayoutService) requeueClaimedPayouts(ctx context.Context, payouts []models.Payout) error {
	if len(payouts) == 0 {
		return nil
	}
	return s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		for _, payout := range payouts {
			if err := s.setStatus(ctx, qtx, payout, domain.PayoutStatusPending, nil, "requeue_claimed", nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PayoutService) claimPendingPayouts(ctx context.Context, batchSize int32) ([]models.Payout, error) {
	var payouts []models.Payout
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		payouts, err = qtx.ClaimPendingPayouts(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("claim pending payouts: %w", err)
		}
		for i, payout := range payouts {
			if err := s.setStatus(ctx, qtx, payout, domain.PayoutStatusProcessing, nil, "processing_started", nil, nil); err != nil {
				return err
			}
			payouts[i].Status = domain.PayoutStatusProcessing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

// setStatus moves a payout to next and records the transition.
func (s *PayoutService) setStatus(ctx context.Context, qtx repository.Querier, payout models.Payout, next string, actorID *int64, action string, ref, reason *string) error {
	rows, err := qtx.UpdatePayoutStatus(ctx, repository.UpdatePayoutStatusParams{
		ID:            payout.ID,
		Status:        next,
		SettlementRef: ref,
		FailureReason: reason,
	})
	if err != nil {
		return fmt.Errorf("update payout %s to %s: %w", payout.ID, next, err)
	}
	if err := requireExactlyOne(rows, "update payout status"); err != nil {
		return err
	}

	var metadata []byte
	if reason != nil {
		if metadata, err = marshalReasonMetadata(*reason); err != nil {
			return fmt.Errorf("marshal payout metadata: %w", err)
		}
	}
	return s.audit.Write(ctx, qtx, "payout", payout.ID.String(), actorID, action, payout.Status, next, metadata)
}

// finalizeSent removes the held amount from the balance and writes the payout entry.
func finalizeSent(ctx context.Context, qtx repository.Querier, payout models.Payout) error {
	rows, err := qtx.DeductHeldFunds(ctx, repository.AccountAmountParams{ID: payout.AccountID, Amount: payout.Amount})
	if err != nil {
		return fmt.Errorf("deduct held funds: %w", err)
	}
	if err := requireExactlyOne(rows, "deduct held payout funds"); err != nil {
		return err
	}
	return createEntry(ctx, qtx, payout.AccountID, payout.Amount, domain.DirectionDebit, domain.EntryKindPayout, payout.ID)
}

func releaseHeld(ctx context.Context, qtx repository.Querier, payout models.Payout) error {
	rows, err := qtx.ReleaseAccountFunds(ctx, repository.AccountAmountParams{ID: payout.AccountID, Amount: payout.Amount})
	if err != nil {
		return fmt.Errorf("release held funds: %w", err)
	}
	return requireExactlyOne(rows, "release held payout funds")
}

// handlePayoutSuccess finalizes accounting for a payout the provider accepted.
// If that fails the payout goes to MANUAL_REVIEW and the funds stay held.
func (s *PayoutService) handlePayoutSuccess(ctx context.Context, payout models.Payout, ref string) error {
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := finalizeSent(ctx, qtx, payout); err != nil {
			return err
		}
		return s.setStatus(ctx, qtx, payout, domain.PayoutStatusCompleted, nil, "payout_completed", textParam(ref), nil)
	})
	if err != nil {
		s.markPayoutManualReview(ctx, payout.ID, ref, err.Error())
		return err
	}

	zap.L().Info("payout completed",
		zap.String("payout_id", payout.ID.String()),
		zap.Int64("account_id", payout.AccountID),
		zap.String("settlement_ref", ref),
	)
	return nil
}

// handlePayoutFailure returns the held funds after a definite rejection.
func (s *PayoutService) handlePayoutFailure(ctx context.Context, payout models.Payout, reason string) {
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := releaseHeld(ctx, qtx, payout); err != nil {
			return err
		}
		return s.setStatus(ctx, qtx, payout, domain.PayoutStatusFailed, nil, "payout_failed", nil, textParam(reason))
	})
	if err != nil {
		zap.L().Error("handle payout failure failed", zap.Error(err), zap.String("payout_id", payout.ID.String()))
		s.markPayoutManualReview(ctx, payout.ID, "", err.Error()+": "+reason)
		return
	}

	zap.L().Warn("payout marked failed", zap.String("payout_id", payout.ID.String()), zap.String("reason", reason))
}

func (s *PayoutService) markPayoutManualReview(ctx context.Context, payoutID uuid.UUID, ref, reason string) {
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		payout, err := qtx.GetPayoutForUpdate(ctx, payoutID)
		if err != nil {
			return notFound(err, domain.ErrPayoutNotFound, "lock payout")
		}
		return s.setStatus(ctx, qtx, payout, domain.PayoutStatusManualReview, nil, "payout_manual_review", textParam(ref), textParam(reason))
	})
	if err != nil {
		zap.L().Error("failed to mark payout manual review", zap.Error(err), zap.String("payout_id", payoutID.String()))
		return
	}
	observability.IncrementManualReviewTransition("queued")
}

func (s *PayoutService) GetPayout(ctx context.Context, payoutID uuid.UUID) (models.Payout, error) {
	payout, err := s.store.Queries().GetPayout(ctx, payoutID)
	if err != nil {
		return models.Payout{}, notFound(err, domain.ErrPayoutNotFound, "get payout")
	}
	return payout, nil
}

func (s *PayoutService) ManualReviewQueueSize(ctx context.Context) (int64, error) {
	count, err := s.store.Queries().CountPayoutsByStatus(ctx, domain.PayoutStatusManualReview)
	if err != nil {
		return 0, fmt.Errorf("count manual review payouts: %w", err)
	}
	return count, nil
}

// ListManualReviewPayouts returns payouts currently waiting for manual operator action.
func (s *PayoutService) ListManualReviewPayouts(ctx context.Context, limit, offset int32) ([]models.Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	payouts, err := s.store.Queries().ListPayoutsByStatus(ctx, repository.ListPayoutsByStatusParams{
		Status: domain.PayoutStatusManualReview,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list manual review payouts: %w", err)
	}
	return payouts, nil
}

// ResolveManualReviewPayout finalizes a payout stuck in MANUAL_REVIEW once an
// operator has checked the provider: confirm_sent deducts the held funds,
// refund_failed releases them.
func (s *PayoutService) ResolveManualReviewPayout(ctx context.Context, req ResolveManualReviewRequest) (models.Payout, error) {
	decision := ResolveManualReviewDecision(strings.ToLower(strings.TrimSpace(string(req.Decision))))
	switch decision {
	case DecisionConfirmSent, DecisionRefundFailed:
	default:
		return models.Payout{}, domain.ErrInvalidDecision
	}

	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := requireAdmin(ctx, qtx, req.AdminID); err != nil {
			return err
		}
		payout, err := qtx.GetPayoutForUpdate(ctx, req.PayoutID)
		if err != nil {
			return notFound(err, domain.ErrPayoutNotFound, "lock payout")
		}
		if payout.Status != domain.PayoutStatusManualReview {
			return domain.ErrPayoutNotInManualReview
		}

		reason := textParam(req.Reason)
		switch decision {
		case DecisionConfirmSent:
			if err := finalizeSent(ctx, qtx, payout); err != nil {
				return err
			}
			var ref *string
			if req.SettlementRef != nil {
				ref = textParam(strings.TrimSpace(*req.SettlementRef))
			}
			return s.setStatus(ctx, qtx, payout, domain.PayoutStatusCompleted, &req.AdminID, "manual_review_confirmed", ref, reason)
		default:
			if err := releaseHeld(ctx, qtx, payout); err != nil {
				return err
			}
			return s.setStatus(ctx, qtx, payout, domain.PayoutStatusFailed, &req.AdminID, "manual_review_refunded", nil, reason)
		}
	})
	if err != nil {
		return models.Payout{}, err
	}

	observability.IncrementManualReviewTransition(string(decision))
	zap.L().Warn("manual review payout resolved",
		zap.String("payout_id", req.PayoutID.String()),
		zap.Int64("admin_id", req.AdminID),
		zap.String("decision", string(decision)),
	)
	return s.GetPayout(ctx, req.PayoutID)
}

func marshalReasonMetadata(reason string) ([]byte, error) {
	return json.Marshal(map[string]string{
		"reason": reason,
	})
}
