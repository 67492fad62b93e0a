package repository

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, listing_id, buyer_id, seller_id, amount, status, created_at, completed_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID,
		&t.ListingID,
		&t.BuyerID,
		&t.SellerID,
		&t.Amount,
		&t.Status,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	return t, err
}

const createTransaction = `
INSERT INTO transactions (id, listing_id, buyer_id, seller_id, amount, status, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), CASE WHEN $6 = 'completed' THEN NOW() END)
RETURNING ` + transactionColumns

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (models.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, createTransaction,
		arg.ID,
		arg.ListingID,
		arg.BuyerID,
		arg.SellerID,
		arg.Amount,
		arg.Status,
	))
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransaction, id))
}

const getTransactionForUpdate = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransactionForUpdate, id))
}

const updateTransactionStatus = `
UPDATE transactions
SET status = $2,
    completed_at = CASE WHEN $2 = 'completed' AND completed_at IS NULL THEN NOW() ELSE completed_at END
WHERE id = $1`

func (q *Queries) UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateTransactionStatus, arg.ID, arg.Status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listTransactionsByAccount = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE buyer_id = $1 OR seller_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

func (q *Queries) ListTransactionsByAccount(ctx context.Context, arg ListByAccountParams) ([]models.Transaction, error) {
	rows, err := q.db.Query(ctx, listTransactionsByAccount, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Transaction, error) {
		return scanTransaction(row)
	})
}
