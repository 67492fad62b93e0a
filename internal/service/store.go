package service

import (
	"context"

	"github.com/ayo6706/escrow-market/internal/repository"
)

// QueryStore is what every service needs from storage: a querier for reads
// and a unit of work for mutations. Row locks taken inside fn are held until
// fn returns, so a read-check-write sequence in fn is atomic.
//
// repository.Store implements it on Postgres and memstore.Store in memory.
type QueryStore interface {
	Queries() repository.Querier
	RunInTx(ctx context.Context, fn func(q repository.Querier) error) error
}
