package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/observability"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const maxDisputeDescription = 1000

type DisputeService struct {
	store QueryStore
	audit *AuditService
}

func NewDisputeService(store QueryStore) *DisputeService {
	return &DisputeService{
		store: store,
		audit: NewAuditService(store),
	}
}

// Open files a dispute against a transaction. No money moves until an admin resolves it.
func (s *DisputeService) Open(ctx context.Context, transactionID uuid.UUID, initiatorID int64, description string) (models.Dispute, error) {
	description = strings.TrimSpace(description)
	if description == "" || utf8.RuneCountInString(description) > maxDisputeDescription {
		return models.Dispute{}, domain.NewValidationError("description", "must be between 1 and 1000 characters")
	}

	var dispute models.Dispute
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		txn, err := qtx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, domain.ErrTransactionNotFound, "lock transaction")
		}
		if _, ok := txn.Counterparty(initiatorID); !ok {
			return domain.ErrNotParticipant
		}

		_, err = qtx.GetOpenDisputeByTransaction(ctx, transactionID)
		switch {
		case err == nil:
			return domain.ErrAlreadyDisputed
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("check open dispute: %w", err)
		}
		if isTerminal(txn.Status) {
			return domain.ErrNotDisputable
		}

		dispute, err = qtx.CreateDispute(ctx, repository.CreateDisputeParams{
			ID:            uuid.New(),
			TransactionID: transactionID,
			InitiatorID:   initiatorID,
			BuyerID:       txn.BuyerID,
			SellerID:      txn.SellerID,
			Description:   description,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyDisputed
			}
			return fmt.Errorf("create dispute: %w", err)
		}

		metadata, err := json.Marshal(map[string]any{"dispute_id": dispute.ID})
		if err != nil {
			return fmt.Errorf("marshal dispute metadata: %w", err)
		}
		if err := transitionTransactionState(ctx, qtx, s.audit, txn, domain.TxStatusDisputed, &initiatorID, "dispute_opened", metadata); err != nil {
			return err
		}
		return s.audit.Write(ctx, qtx, "dispute", dispute.ID.String(), &initiatorID, "opened", "", domain.DisputeStatusOpen, nil)
	})
	if err != nil {
		return models.Dispute{}, err
	}

	observability.IncrementDispute("opened")
	zap.L().Info("dispute opened",
		zap.String("dispute_id", dispute.ID.String()),
		zap.String("transaction_id", transactionID.String()),
		zap.Int64("initiator_id", initiatorID),
	)
	return dispute, nil
}

// Resolve settles an open dispute in favour of winner. A buyer win refunds
// the purchase from the seller; if the seller can no longer cover it the
// whole call fails and the dispute stays open.
func (s *DisputeService) Resolve(ctx context.Context, disputeID uuid.UUID, adminID int64, winner, resolution string) (models.Dispute, error) {
	winner = strings.ToLower(strings.TrimSpace(winner))
	if winner != domain.WinnerBuyer && winner != domain.WinnerSeller {
		return models.Dispute{}, domain.ErrInvalidDecision
	}

	var out models.Dispute
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		dispute, txn, err := s.lockOpenDispute(ctx, qtx, disputeID, adminID)
		if err != nil {
			return err
		}

		next := domain.TxStatusResolved
		if winner == domain.WinnerBuyer {
			if err := transferFunds(ctx, qtx, txn.SellerID, txn.BuyerID, txn.Amount, domain.EntryKindRefund, txn.ID); err != nil {
				return err
			}
			next = domain.TxStatusRefunded
		}

		metadata, err := json.Marshal(map[string]any{"dispute_id": dispute.ID, "winner": winner})
		if err != nil {
			return fmt.Errorf("marshal resolution metadata: %w", err)
		}
		if err := transitionTransactionState(ctx, qtx, s.audit, txn, next, &adminID, "dispute_resolved", metadata); err != nil {
			return err
		}
		out, err = s.settle(ctx, qtx, dispute, adminID, domain.DisputeStatusResolved, &winner, resolution)
		return err
	})
	if err != nil {
		return models.Dispute{}, err
	}

	observability.IncrementDispute("resolved_" + winner)
	zap.L().Warn("dispute resolved",
		zap.String("dispute_id", disputeID.String()),
		zap.Int64("admin_id", adminID),
		zap.String("winner", winner),
	)
	return out, nil
}

// Close dismisses an open dispute without moving money. The sale stands, so
// the transaction settles as resolved, the same edge a seller win takes.
func (s *DisputeService) Close(ctx context.Context, disputeID uuid.UUID, adminID int64, reason string) (models.Dispute, error) {
	var out models.Dispute
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		dispute, txn, err := s.lockOpenDispute(ctx, qtx, disputeID, adminID)
		if err != nil {
			return err
		}
		metadata, err := json.Marshal(map[string]any{"dispute_id": dispute.ID})
		if err != nil {
			return fmt.Errorf("marshal close metadata: %w", err)
		}
		if err := transitionTransactionState(ctx, qtx, s.audit, txn, domain.TxStatusResolved, &adminID, "dispute_closed", metadata); err != nil {
			return err
		}
		out, err = s.settle(ctx, qtx, dispute, adminID, domain.DisputeStatusClosed, nil, reason)
		return err
	})
	if err != nil {
		return models.Dispute{}, err
	}

	observability.IncrementDispute("closed")
	zap.L().Warn("dispute closed", zap.String("dispute_id", disputeID.String()), zap.Int64("admin_id", adminID))
	return out, nil
}

// lockOpenDispute checks the admin, then locks the dispute and its transaction.
func (s *DisputeService) lockOpenDispute(ctx context.Context, qtx repository.Querier, disputeID uuid.UUID, adminID int64) (models.Dispute, models.Transaction, error) {
	if err := requireAdmin(ctx, qtx, adminID); err != nil {
		return models.Dispute{}, models.Transaction{}, err
	}
	dispute, err := qtx.GetDisputeForUpdate(ctx, disputeID)
	if err != nil {
		return models.Dispute{}, models.Transaction{}, notFound(err, domain.ErrDisputeNotFound, "lock dispute")
	}
	if dispute.Status != domain.DisputeStatusOpen {
		return models.Dispute{}, models.Transaction{}, domain.ErrNotOpen
	}
	txn, err := qtx.GetTransactionForUpdate(ctx, dispute.TransactionID)
	if err != nil {
		return models.Dispute{}, models.Transaction{}, notFound(err, domain.ErrTransactionNotFound, "lock disputed transaction")
	}
	return dispute, txn, nil
}

func (s *DisputeService) settle(ctx context.Context, qtx repository.Querier, dispute models.Dispute, adminID int64, status string, winner *string, resolution string) (models.Dispute, error) {
	rows, err := qtx.SettleDispute(ctx, repository.SettleDisputeParams{
		ID:         dispute.ID,
		Status:     status,
		Winner:     winner,
		ResolvedBy: adminID,
		Resolution: textParam(strings.TrimSpace(resolution)),
	})
	if err != nil {
		return models.Dispute{}, fmt.Errorf("settle dispute: %w", err)
	}
	if rows != 1 {
		return models.Dispute{}, domain.ErrNotOpen
	}
	if err := s.audit.Write(ctx, qtx, "dispute", dispute.ID.String(), &adminID, status, dispute.Status, status, nil); err != nil {
		return models.Dispute{}, err
	}
	updated, err := qtx.GetDispute(ctx, dispute.ID)
	if err != nil {
		return models.Dispute{}, fmt.Errorf("reload dispute: %w", err)
	}
	return updated, nil
}

func (s *DisputeService) GetDispute(ctx context.Context, id uuid.UUID) (models.Dispute, error) {
	dispute, err := s.store.Queries().GetDispute(ctx, id)
	if err != nil {
		return models.Dispute{}, notFound(err, domain.ErrDisputeNotFound, "get dispute")
	}
	return dispute, nil
}

// ListDisputes returns disputes in the given status, oldest first. An empty
// status lists the open queue.
func (s *DisputeService) ListDisputes(ctx context.Context, status string, limit, offset int32) ([]models.Dispute, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "":
		status = domain.DisputeStatusOpen
	case domain.DisputeStatusOpen, domain.DisputeStatusResolved, domain.DisputeStatusClosed:
	default:
		return nil, domain.NewValidationError("status", "must be open, resolved or closed")
	}
	limit, offset = normalizePage(limit, offset)
	disputes, err := s.store.Queries().ListDisputesByStatus(ctx, repository.ListDisputesParams{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	return disputes, nil
}
