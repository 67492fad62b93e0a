package repository

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/jackc/pgx/v5"
)

const createEntry = `
INSERT INTO entries (id, account_id, amount, direction, kind, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())`

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) error {
	_, err := q.db.Exec(ctx, createEntry,
		arg.ID,
		arg.AccountID,
		arg.Amount,
		arg.Direction,
		arg.Kind,
		arg.ReferenceID,
	)
	return err
}

const listEntries = `
SELECT id, account_id, amount, direction, kind, reference_id, created_at
FROM entries
WHERE account_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

func (q *Queries) ListEntries(ctx context.Context, arg ListByAccountParams) ([]models.Entry, error) {
	rows, err := q.db.Query(ctx, listEntries, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Entry, error) {
		var e models.Entry
		err := row.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Direction, &e.Kind, &e.ReferenceID, &e.CreatedAt)
		return e, err
	})
}

const listBalanceDrift = `
SELECT a.id, a.balance, COALESCE(e.net, 0)::bigint AS entries_net
FROM accounts a
LEFT JOIN (
    SELECT account_id,
           SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END) AS net
    FROM entries
    GROUP BY account_id
) e ON e.account_id = a.id
WHERE a.balance <> COALESCE(e.net, 0)
ORDER BY a.id`

func (q *Queries) ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := q.db.Query(ctx, listBalanceDrift)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BalanceDrift, error) {
		var d BalanceDrift
		err := row.Scan(&d.AccountID, &d.Balance, &d.EntriesNet)
		return d, err
	})
}

const sumEntriesByKind = `
SELECT kind,
       COALESCE(SUM(amount) FILTER (WHERE direction = 'credit'), 0)::bigint AS credits,
       COALESCE(SUM(amount) FILTER (WHERE direction = 'debit'), 0)::bigint AS debits
FROM entries
GROUP BY kind
ORDER BY kind`

func (q *Queries) SumEntriesByKind(ctx context.Context) ([]KindTotal, error) {
	rows, err := q.db.Query(ctx, sumEntriesByKind)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (KindTotal, error) {
		var k KindTotal
		err := row.Scan(&k.Kind, &k.Credits, &k.Debits)
		return k, err
	})
}
