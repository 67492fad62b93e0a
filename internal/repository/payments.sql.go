package repository

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const depositColumns = `id, account_id, amount, invoice_id, pay_url, status, created_at, paid_at`

func scanDeposit(row pgx.Row) (models.Deposit, error) {
	var d models.Deposit
	err := row.Scan(
		&d.ID,
		&d.AccountID,
		&d.Amount,
		&d.InvoiceID,
		&d.PayURL,
		&d.Status,
		&d.CreatedAt,
		&d.PaidAt,
	)
	return d, err
}

const createDeposit = `
INSERT INTO deposits (id, account_id, amount, invoice_id, pay_url, status, created_at)
VALUES ($1, $2, $3, $4, $5, 'pending', NOW())
RETURNING ` + depositColumns

func (q *Queries) CreateDeposit(ctx context.Context, arg CreateDepositParams) (models.Deposit, error) {
	return scanDeposit(q.db.QueryRow(ctx, createDeposit,
		arg.ID,
		arg.AccountID,
		arg.Amount,
		arg.InvoiceID,
		arg.PayURL,
	))
}

const getDeposit = `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`

func (q *Queries) GetDeposit(ctx context.Context, id uuid.UUID) (models.Deposit, error) {
	return scanDeposit(q.db.QueryRow(ctx, getDeposit, id))
}

const getDepositForUpdate = `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetDepositForUpdate(ctx context.Context, id uuid.UUID) (models.Deposit, error) {
	return scanDeposit(q.db.QueryRow(ctx, getDepositForUpdate, id))
}

const markDepositPaid = `UPDATE deposits SET status = 'paid', paid_at = NOW() WHERE id = $1 AND status = 'pending'`

func (q *Queries) MarkDepositPaid(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markDepositPaid, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const payoutColumns = `id, account_id, amount, status, settlement_ref, failure_reason, created_at, updated_at`

func scanPayout(row pgx.Row) (models.Payout, error) {
	var p models.Payout
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.Amount,
		&p.Status,
		&p.SettlementRef,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func collectPayouts(rows pgx.Rows) ([]models.Payout, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Payout, error) {
		return scanPayout(row)
	})
}

const createPayout = `
INSERT INTO payouts (id, account_id, amount, status, created_at, updated_at)
VALUES ($1, $2, $3, 'PENDING', NOW(), NOW())
RETURNING ` + payoutColumns

func (q *Queries) CreatePayout(ctx context.Context, arg CreatePayoutParams) (models.Payout, error) {
	return scanPayout(q.db.QueryRow(ctx, createPayout, arg.ID, arg.AccountID, arg.Amount))
}

const getPayout = `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`

func (q *Queries) GetPayout(ctx context.Context, id uuid.UUID) (models.Payout, error) {
	return scanPayout(q.db.QueryRow(ctx, getPayout, id))
}

const getPayoutForUpdate = `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetPayoutForUpdate(ctx context.Context, id uuid.UUID) (models.Payout, error) {
	return scanPayout(q.db.QueryRow(ctx, getPayoutForUpdate, id))
}

const claimPendingPayouts = `
SELECT ` + payoutColumns + `
FROM payouts
WHERE status = 'PENDING'
ORDER BY created_at, id
LIMIT $1
FOR NO KEY UPDATE SKIP LOCKED`

func (q *Queries) ClaimPendingPayouts(ctx context.Context, limit int32) ([]models.Payout, error) {
	rows, err := q.db.Query(ctx, claimPendingPayouts, limit)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

const getStaleProcessingPayouts = `
SELECT ` + payoutColumns + `
FROM payouts
WHERE status = 'PROCESSING' AND updated_at < $1
ORDER BY updated_at, id
LIMIT $2
FOR NO KEY UPDATE SKIP LOCKED`

func (q *Queries) GetStaleProcessingPayouts(ctx context.Context, arg GetStaleProcessingPayoutsParams) ([]models.Payout, error) {
	rows, err := q.db.Query(ctx, getStaleProcessingPayouts, arg.UpdatedBefore, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

const updatePayoutStatus = `
UPDATE payouts
SET status = $2,
    settlement_ref = COALESCE($3, settlement_ref),
    failure_reason = COALESCE($4, failure_reason),
    updated_at = NOW()
WHERE id = $1`

func (q *Queries) UpdatePayoutStatus(ctx context.Context, arg UpdatePayoutStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updatePayoutStatus, arg.ID, arg.Status, arg.SettlementRef, arg.FailureReason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listPayoutsByStatus = `
SELECT ` + payoutColumns + `
FROM payouts
WHERE status = $1
ORDER BY created_at, id
LIMIT $2 OFFSET $3`

func (q *Queries) ListPayoutsByStatus(ctx context.Context, arg ListPayoutsByStatusParams) ([]models.Payout, error) {
	rows, err := q.db.Query(ctx, listPayoutsByStatus, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

const countPayoutsByStatus = `SELECT COUNT(*) FROM payouts WHERE status = $1`

func (q *Queries) CountPayoutsByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countPayoutsByStatus, status).Scan(&count)
	return count, err
}
