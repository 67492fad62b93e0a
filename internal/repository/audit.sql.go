package repository

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/jackc/pgx/v5"
)

const insertAuditLog = `
INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error {
	_, err := q.db.Exec(ctx, insertAuditLog,
		arg.EntityType,
		arg.EntityID,
		arg.ActorID,
		arg.Action,
		arg.PrevState,
		arg.NextState,
		arg.Metadata,
	)
	return err
}

const listAuditLog = `
SELECT id, entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at
FROM audit_log
WHERE entity_type = $1 AND entity_id = $2
ORDER BY id`

func (q *Queries) ListAuditLog(ctx context.Context, arg ListAuditLogParams) ([]models.AuditEntry, error) {
	rows, err := q.db.Query(ctx, listAuditLog, arg.EntityType, arg.EntityID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AuditEntry, error) {
		var e models.AuditEntry
		err := row.Scan(
			&e.ID,
			&e.EntityType,
			&e.EntityID,
			&e.ActorID,
			&e.Action,
			&e.PrevState,
			&e.NextState,
			&e.Metadata,
			&e.CreatedAt,
		)
		return e, err
	})
}
