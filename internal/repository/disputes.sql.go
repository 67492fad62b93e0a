package repository

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const disputeColumns = `id, transaction_id, initiator_id, buyer_id, seller_id, description, status, winner, resolved_by, resolution, resolved_at, created_at`

func scanDispute(row pgx.Row) (models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(
		&d.ID,
		&d.TransactionID,
		&d.InitiatorID,
		&d.BuyerID,
		&d.SellerID,
		&d.Description,
		&d.Status,
		&d.Winner,
		&d.ResolvedBy,
		&d.Resolution,
		&d.ResolvedAt,
		&d.CreatedAt,
	)
	return d, err
}

const createDispute = `
INSERT INTO disputes (id, transaction_id, initiator_id, buyer_id, seller_id, description, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, 'open', NOW())
RETURNING ` + disputeColumns

func (q *Queries) CreateDispute(ctx context.Context, arg CreateDisputeParams) (models.Dispute, error) {
	return scanDispute(q.db.QueryRow(ctx, createDispute,
		arg.ID,
		arg.TransactionID,
		arg.InitiatorID,
		arg.BuyerID,
		arg.SellerID,
		arg.Description,
	))
}

const getDispute = `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`

func (q *Queries) GetDispute(ctx context.Context, id uuid.UUID) (models.Dispute, error) {
	return scanDispute(q.db.QueryRow(ctx, getDispute, id))
}

const getDisputeForUpdate = `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetDisputeForUpdate(ctx context.Context, id uuid.UUID) (models.Dispute, error) {
	return scanDispute(q.db.QueryRow(ctx, getDisputeForUpdate, id))
}

const getOpenDisputeByTransaction = `
SELECT ` + disputeColumns + `
FROM disputes
WHERE transaction_id = $1 AND status = 'open'`

func (q *Queries) GetOpenDisputeByTransaction(ctx context.Context, transactionID uuid.UUID) (models.Dispute, error) {
	return scanDispute(q.db.QueryRow(ctx, getOpenDisputeByTransaction, transactionID))
}

// Settled disputes are immutable: the status guard makes a second settle a no-op.
const settleDispute = `
UPDATE disputes
SET status = $2, winner = $3, resolved_by = $4, resolution = $5, resolved_at = NOW()
WHERE id = $1 AND status = 'open'`

func (q *Queries) SettleDispute(ctx context.Context, arg SettleDisputeParams) (int64, error) {
	tag, err := q.db.Exec(ctx, settleDispute,
		arg.ID,
		arg.Status,
		arg.Winner,
		arg.ResolvedBy,
		arg.Resolution,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listDisputesByStatus = `
SELECT ` + disputeColumns + `
FROM disputes
WHERE status = $1
ORDER BY created_at, id
LIMIT $2 OFFSET $3`

func (q *Queries) ListDisputesByStatus(ctx context.Context, arg ListDisputesParams) ([]models.Dispute, error) {
	rows, err := q.db.Query(ctx, listDisputesByStatus, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Dispute, error) {
		return scanDispute(row)
	})
}
