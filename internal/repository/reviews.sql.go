package repository

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/jackc/pgx/v5"
)

const reviewColumns = `id, transaction_id, reviewer_id, reviewed_id, rating, comment, created_at`

func scanReview(row pgx.Row) (models.Review, error) {
	var r models.Review
	err := row.Scan(
		&r.ID,
		&r.TransactionID,
		&r.ReviewerID,
		&r.ReviewedID,
		&r.Rating,
		&r.Comment,
		&r.CreatedAt,
	)
	return r, err
}

const createReview = `
INSERT INTO reviews (id, transaction_id, reviewer_id, reviewed_id, rating, comment, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING ` + reviewColumns

func (q *Queries) CreateReview(ctx context.Context, arg CreateReviewParams) (models.Review, error) {
	return scanReview(q.db.QueryRow(ctx, createReview,
		arg.ID,
		arg.TransactionID,
		arg.ReviewerID,
		arg.ReviewedID,
		arg.Rating,
		arg.Comment,
	))
}

const reviewExists = `SELECT EXISTS (SELECT 1 FROM reviews WHERE transaction_id = $1 AND reviewer_id = $2)`

func (q *Queries) ReviewExists(ctx context.Context, arg ReviewExistsParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, reviewExists, arg.TransactionID, arg.ReviewerID).Scan(&exists)
	return exists, err
}

const listReviewsForAccount = `
SELECT ` + reviewColumns + `
FROM reviews
WHERE reviewed_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

func (q *Queries) ListReviewsForAccount(ctx context.Context, arg ListByAccountParams) ([]models.Review, error) {
	rows, err := q.db.Query(ctx, listReviewsForAccount, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Review, error) {
		return scanReview(row)
	})
}
