package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
)

var transactionTransitions = map[string]map[string]struct{}{
	domain.TxStatusPending: {
		domain.TxStatusCompleted: {},
		domain.TxStatusDisputed:  {},
	},
	domain.TxStatusCompleted: {
		domain.TxStatusDisputed: {},
	},
	domain.TxStatusDisputed: {
		domain.TxStatusRefunded: {},
		domain.TxStatusResolved: {},
	},
	domain.TxStatusRefunded: {},
	domain.TxStatusResolved: {},
}

func normalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

func canTransition(current, next string) bool {
	nextStates, ok := transactionTransitions[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

// isTerminal reports whether no further transition leaves state.
func isTerminal(state string) bool {
	return len(transactionTransitions[normalizeState(state)]) == 0
}

// transitionTransactionState moves a transaction already locked by the caller
// to nextState and records the change in the audit log.
func transitionTransactionState(ctx context.Context, qtx repository.Querier, audit *AuditService, txn models.Transaction, nextState string, actorID *int64, action string, metadata []byte) error {
	if normalizeState(txn.Status) == normalizeState(nextState) {
		return nil
	}
	if !canTransition(txn.Status, nextState) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, txn.Status, nextState)
	}

	rows, err := qtx.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{
		ID:     txn.ID,
		Status: nextState,
	})
	if err != nil {
		return fmt.Errorf("update transaction state: %w", err)
	}
	if err := requireExactlyOne(rows, "update transaction state"); err != nil {
		return err
	}

	return audit.Write(ctx, qtx, "transaction", txn.ID.String(), actorID, action, txn.Status, nextState, metadata)
}
