package repository

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, username, balance, held, rating, total_reviews, is_blocked, is_admin, created_at, updated_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Balance,
		&a.Held,
		&a.Rating,
		&a.TotalReviews,
		&a.IsBlocked,
		&a.IsAdmin,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

const upsertAccount = `
INSERT INTO accounts (id, username)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE
SET username = CASE WHEN EXCLUDED.username = '' THEN accounts.username ELSE EXCLUDED.username END,
    updated_at = NOW()
RETURNING ` + accountColumns

func (q *Queries) UpsertAccount(ctx context.Context, arg UpsertAccountParams) (models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, upsertAccount, arg.ID, arg.Username))
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

func (q *Queries) GetAccount(ctx context.Context, id int64) (models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccount, id))
}

// Row locks in this package are NO KEY UPDATE: no statement changes a key, and
// the weaker lock lets foreign-key checks (KEY SHARE) from inserts into
// entries, listings or reviews proceed while a balance is being updated.
const getAccountForUpdate = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetAccountForUpdate(ctx context.Context, id int64) (models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountForUpdate, id))
}

// The held guard keeps reserved payout funds out of reach of debits.
const addAccountBalance = `
UPDATE accounts
SET balance = balance + $2, updated_at = NOW()
WHERE id = $1 AND balance + $2 >= held`

func (q *Queries) AddAccountBalance(ctx context.Context, arg AddAccountBalanceParams) (int64, error) {
	tag, err := q.db.Exec(ctx, addAccountBalance, arg.ID, arg.Delta)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setAccountBalance = `
UPDATE accounts
SET balance = $2, updated_at = NOW()
WHERE id = $1 AND held <= $2`

func (q *Queries) SetAccountBalance(ctx context.Context, arg SetAccountBalanceParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setAccountBalance, arg.ID, arg.Balance)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const holdAccountFunds = `
UPDATE accounts
SET held = held + $2, updated_at = NOW()
WHERE id = $1 AND balance - held >= $2`

func (q *Queries) HoldAccountFunds(ctx context.Context, arg AccountAmountParams) (int64, error) {
	tag, err := q.db.Exec(ctx, holdAccountFunds, arg.ID, arg.Amount)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const releaseAccountFunds = `
UPDATE accounts
SET held = held - $2, updated_at = NOW()
WHERE id = $1 AND held >= $2`

func (q *Queries) ReleaseAccountFunds(ctx context.Context, arg AccountAmountParams) (int64, error) {
	tag, err := q.db.Exec(ctx, releaseAccountFunds, arg.ID, arg.Amount)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deductHeldFunds = `
UPDATE accounts
SET balance = balance - $2, held = held - $2, updated_at = NOW()
WHERE id = $1 AND held >= $2`

func (q *Queries) DeductHeldFunds(ctx context.Context, arg AccountAmountParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deductHeldFunds, arg.ID, arg.Amount)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setAccountBlocked = `UPDATE accounts SET is_blocked = $2, updated_at = NOW() WHERE id = $1`

func (q *Queries) SetAccountBlocked(ctx context.Context, arg SetAccountFlagParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setAccountBlocked, arg.ID, arg.Value)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setAccountAdmin = `UPDATE accounts SET is_admin = $2, updated_at = NOW() WHERE id = $1`

func (q *Queries) SetAccountAdmin(ctx context.Context, arg SetAccountFlagParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setAccountAdmin, arg.ID, arg.Value)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const refreshAccountRating = `
UPDATE accounts
SET rating = COALESCE((SELECT AVG(r.rating)::float8 FROM reviews r WHERE r.reviewed_id = $1), 5.0),
    total_reviews = (SELECT COUNT(*) FROM reviews r WHERE r.reviewed_id = $1),
    updated_at = NOW()
WHERE id = $1
RETURNING ` + accountColumns

func (q *Queries) RefreshAccountRating(ctx context.Context, id int64) (models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, refreshAccountRating, id))
}

const sumAccountBalances = `SELECT COALESCE(SUM(balance), 0)::bigint FROM accounts`

func (q *Queries) SumAccountBalances(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, sumAccountBalances).Scan(&total)
	return total, err
}
