// Package memstore is an in-memory implementation of repository.Querier for
// service tests. Transactions are serialized by one mutex and applied
// copy-on-commit, which gives the same observable outcome as row locks for the
// single-row races the services guard against.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type state struct {
	accounts     map[int64]models.Account
	entries      []models.Entry
	listings     map[uuid.UUID]models.Listing
	transactions map[uuid.UUID]models.Transaction
	disputes     map[uuid.UUID]models.Dispute
	promos       map[string]models.PromoCode
	redemptions  []models.PromoRedemption
	reviews      []models.Review
	deposits     map[uuid.UUID]models.Deposit
	payouts      map[uuid.UUID]models.Payout
	audit        []models.AuditEntry
	lastTime     time.Time
}

func newState() *state {
	return &state{
		accounts:     map[int64]models.Account{},
		listings:     map[uuid.UUID]models.Listing{},
		transactions: map[uuid.UUID]models.Transaction{},
		disputes:     map[uuid.UUID]models.Dispute{},
		promos:       map[string]models.PromoCode{},
		deposits:     map[uuid.UUID]models.Deposit{},
		payouts:      map[uuid.UUID]models.Payout{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		accounts:     cloneMap(s.accounts),
		entries:      append([]models.Entry(nil), s.entries...),
		listings:     cloneMap(s.listings),
		transactions: cloneMap(s.transactions),
		disputes:     cloneMap(s.disputes),
		promos:       cloneMap(s.promos),
		redemptions:  append([]models.PromoRedemption(nil), s.redemptions...),
		reviews:      append([]models.Review(nil), s.reviews...),
		deposits:     cloneMap(s.deposits),
		payouts:      cloneMap(s.payouts),
		audit:        append([]models.AuditEntry(nil), s.audit...),
		lastTime:     s.lastTime,
	}
}

// now returns a strictly increasing timestamp so ordering by creation time is stable.
func (s *state) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = t
	return t
}

// Store mirrors repository.Store.
type Store struct {
	mu sync.Mutex
	st *state

	// failCommit, when set, makes the next RunInTx discard its work and return the error.
	failCommit error
}

func New() *Store {
	return &Store{st: newState()}
}

// Queries returns a querier that applies each call atomically to committed state.
func (s *Store) Queries() repository.Querier {
	return &querier{store: s}
}

// RunInTx runs fn against a private copy of the state and publishes it only
// when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&querier{store: s, tx: work}); err != nil {
		return err
	}
	if s.failCommit != nil {
		err := s.failCommit
		s.failCommit = nil
		return err
	}
	s.st = work
	return nil
}

// FailNextCommit makes the next transaction roll back with err after fn succeeds.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = err
}

// Entries returns a copy of every ledger entry.
func (s *Store) Entries() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Entry(nil), s.st.entries...)
}

// Redemptions returns a copy of every promo redemption.
func (s *Store) Redemptions() []models.PromoRedemption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PromoRedemption(nil), s.st.redemptions...)
}

// Accounts returns a copy of every account.
func (s *Store) Accounts() []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Account, 0, len(s.st.accounts))
	for _, a := range s.st.accounts {
		out = append(out, a)
	}
	return out
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func foreignKeyViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint, Message: "insert or update violates foreign key constraint"}
}
