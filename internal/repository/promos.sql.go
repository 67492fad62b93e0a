package repository

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const promoColumns = `id, code, amount, max_uses, current_uses, active, created_by, expires_at, redeemed_by, created_at`

func scanPromoCode(row pgx.Row) (models.PromoCode, error) {
	var p models.PromoCode
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Amount,
		&p.MaxUses,
		&p.CurrentUses,
		&p.Active,
		&p.CreatedBy,
		&p.ExpiresAt,
		&p.RedeemedBy,
		&p.CreatedAt,
	)
	return p, err
}

const createPromoCode = `
INSERT INTO promo_codes (id, code, amount, max_uses, current_uses, active, created_by, expires_at, created_at)
VALUES ($1, $2, $3, $4, 0, TRUE, $5, $6, NOW())
RETURNING ` + promoColumns

func (q *Queries) CreatePromoCode(ctx context.Context, arg CreatePromoCodeParams) (models.PromoCode, error) {
	return scanPromoCode(q.db.QueryRow(ctx, createPromoCode,
		arg.ID,
		arg.Code,
		arg.Amount,
		arg.MaxUses,
		arg.CreatedBy,
		arg.ExpiresAt,
	))
}

const getPromoCode = `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`

func (q *Queries) GetPromoCode(ctx context.Context, code string) (models.PromoCode, error) {
	return scanPromoCode(q.db.QueryRow(ctx, getPromoCode, code))
}

const getPromoCodeForUpdate = `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1 FOR NO KEY UPDATE`

func (q *Queries) GetPromoCodeForUpdate(ctx context.Context, code string) (models.PromoCode, error) {
	return scanPromoCode(q.db.QueryRow(ctx, getPromoCodeForUpdate, code))
}

// The WHERE clause repeats the cap check so the counter can never pass max_uses.
const consumePromoCode = `
UPDATE promo_codes
SET current_uses = current_uses + 1,
    active = current_uses + 1 < max_uses,
    redeemed_by = $2
WHERE id = $1 AND active AND current_uses < max_uses
RETURNING ` + promoColumns

func (q *Queries) ConsumePromoCode(ctx context.Context, arg ConsumePromoCodeParams) (models.PromoCode, error) {
	return scanPromoCode(q.db.QueryRow(ctx, consumePromoCode, arg.ID, arg.RedeemedBy))
}

const deactivatePromoCode = `UPDATE promo_codes SET active = FALSE WHERE id = $1 AND active`

func (q *Queries) DeactivatePromoCode(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deactivatePromoCode, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const createPromoRedemption = `
INSERT INTO promo_redemptions (id, promo_id, account_id, amount, created_at)
VALUES ($1, $2, $3, $4, NOW())`

func (q *Queries) CreatePromoRedemption(ctx context.Context, arg CreatePromoRedemptionParams) error {
	_, err := q.db.Exec(ctx, createPromoRedemption, arg.ID, arg.PromoID, arg.AccountID, arg.Amount)
	return err
}
