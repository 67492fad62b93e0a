package repository

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const listingColumns = `id, seller_id, category, payload, duration_hours, price, active, created_at`

func scanListing(row pgx.Row) (models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID,
		&l.SellerID,
		&l.Category,
		&l.Payload,
		&l.DurationHours,
		&l.Price,
		&l.Active,
		&l.CreatedAt,
	)
	return l, err
}

const createListing = `
INSERT INTO listings (id, seller_id, category, payload, duration_hours, price, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
RETURNING ` + listingColumns

func (q *Queries) CreateListing(ctx context.Context, arg CreateListingParams) (models.Listing, error) {
	return scanListing(q.db.QueryRow(ctx, createListing,
		arg.ID,
		arg.SellerID,
		arg.Category,
		arg.Payload,
		arg.DurationHours,
		arg.Price,
	))
}

const getListing = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

func (q *Queries) GetListing(ctx context.Context, id uuid.UUID) (models.Listing, error) {
	return scanListing(q.db.QueryRow(ctx, getListing, id))
}

const getListingForUpdate = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetListingForUpdate(ctx context.Context, id uuid.UUID) (models.Listing, error) {
	return scanListing(q.db.QueryRow(ctx, getListingForUpdate, id))
}

// Only the call that flips active from true to false sees one affected row.
const deactivateListing = `UPDATE listings SET active = FALSE WHERE id = $1 AND active`

func (q *Queries) DeactivateListing(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deactivateListing, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListListings streams active listings matching arg. Each range over the
// returned sequence runs a fresh query; breaking early closes the rows.
func (q *Queries) ListListings(ctx context.Context, arg ListListingsParams) iter.Seq2[models.Listing, error] {
	query, args := buildListListings(arg)
	return func(yield func(models.Listing, error) bool) {
		rows, err := q.db.Query(ctx, query, args...)
		if err != nil {
			yield(models.Listing{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			listing, err := scanListing(rows)
			if !yield(listing, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Listing{}, err)
		}
	}
}

func buildListListings(arg ListListingsParams) (string, []any) {
	var (
		conds = []string{"active"}
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if arg.Category != "" {
		add("category = $%d", arg.Category)
	}
	if arg.SellerID != 0 {
		add("seller_id = $%d", arg.SellerID)
	}
	if arg.MinPrice > 0 {
		add("price >= $%d", arg.MinPrice)
	}
	if arg.MaxPrice > 0 {
		add("price <= $%d", arg.MaxPrice)
	}

	order := "created_at DESC, id"
	switch arg.OrderBy {
	case domain.ListingOrderPriceAsc:
		order = "price ASC, created_at DESC, id"
	case domain.ListingOrderPriceDesc:
		order = "price DESC, created_at DESC, id"
	}

	args = append(args, arg.Limit)
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s ORDER BY %s LIMIT $%d`,
		listingColumns, strings.Join(conds, " AND "), order, len(args))
	return query, args
}
