package service

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService owns account balances. Every balance change goes through
// postCredit or postDebit, which write exactly one entry per change.
type LedgerService struct {
	store QueryStore
	audit *AuditService
}

func NewLedgerService(store QueryStore) *LedgerService {
	return &LedgerService{
		store: store,
		audit: NewAuditService(store),
	}
}

// EnsureAccount creates the account on first contact and refreshes the username otherwise.
func (s *LedgerService) EnsureAccount(ctx context.Context, id int64, username string) (models.Account, error) {
	if id <= 0 {
		return models.Account{}, domain.NewValidationError("id", "must be a positive platform user id")
	}
	acc, err := s.store.Queries().UpsertAccount(ctx, repository.UpsertAccountParams{ID: id, Username: username})
	if err != nil {
		return models.Account{}, fmt.Errorf("upsert account: %w", err)
	}
	return acc, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, id int64) (models.Account, error) {
	acc, err := s.store.Queries().GetAccount(ctx, id)
	if err != nil {
		return models.Account{}, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	return acc, nil
}

// GetBalance returns the spendable balance, excluding funds held for payouts.
func (s *LedgerService) GetBalance(ctx context.Context, id int64) (int64, error) {
	acc, err := s.GetAccount(ctx, id)
	if err != nil {
		return 0, err
	}
	return acc.Available(), nil
}

// GetStatement lists the account's ledger entries, newest first.
func (s *LedgerService) GetStatement(ctx context.Context, id int64, limit, offset int32) ([]models.Entry, error) {
	if _, err := s.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	entries, err := s.store.Queries().ListEntries(ctx, repository.ListByAccountParams{
		AccountID: id,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *LedgerService) Credit(ctx context.Context, accountID, amount int64, kind string, ref uuid.UUID) (models.Account, error) {
	if amount <= 0 {
		return models.Account{}, domain.ErrInvalidAmount
	}
	if ref == uuid.Nil {
		ref = uuid.New()
	}
	var out models.Account
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := lockAccounts(ctx, qtx, accountID); err != nil {
			return err
		}
		if err := postCredit(ctx, qtx, accountID, amount, kind, ref); err != nil {
			return err
		}
		var err error
		out, err = qtx.GetAccount(ctx, accountID)
		return err
	})
	return out, err
}

func (s *LedgerService) Debit(ctx context.Context, accountID, amount int64, kind string, ref uuid.UUID) (models.Account, error) {
	if amount <= 0 {
		return models.Account{}, domain.ErrInvalidAmount
	}
	if ref == uuid.Nil {
		ref = uuid.New()
	}
	var out models.Account
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := lockAccounts(ctx, qtx, accountID); err != nil {
			return err
		}
		if err := postDebit(ctx, qtx, accountID, amount, kind, ref); err != nil {
			return err
		}
		var err error
		out, err = qtx.GetAccount(ctx, accountID)
		return err
	})
	return out, err
}

// Transfer moves amount from one account to another in a single transaction.
func (s *LedgerService) Transfer(ctx context.Context, from, to, amount int64, kind string, ref uuid.UUID) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if ref == uuid.Nil {
		ref = uuid.New()
	}
	return s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		return transferFunds(ctx, qtx, from, to, amount, kind, ref)
	})
}

// SetBalance overwrites an account balance. The difference is booked as an
// adjustment entry so reconciliation still holds.
func (s *LedgerService) SetBalance(ctx context.Context, adminID, accountID, value int64) (models.Account, error) {
	if value < 0 {
		return models.Account{}, domain.ErrInvalidAmount
	}
	var out models.Account
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := requireAdmin(ctx, qtx, adminID); err != nil {
			return err
		}
		locked, err := lockAccounts(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		acc := locked[accountID]
		if value < acc.Held {
			return fmt.Errorf("%w: balance cannot drop below held funds", domain.ErrInvalidAmount)
		}

		ref := uuid.New()
		switch delta := value - acc.Balance; {
		case delta > 0:
			err = postCredit(ctx, qtx, accountID, delta, domain.EntryKindAdjustment, ref)
		case delta < 0:
			err = postDebit(ctx, qtx, accountID, -delta, domain.EntryKindAdjustment, ref)
		}
		if err != nil {
			return err
		}

		metadata, err := json.Marshal(map[string]any{"reference_id": ref})
		if err != nil {
			return fmt.Errorf("marshal balance metadata: %w", err)
		}
		if err := s.audit.Write(ctx, qtx, "account", strconv.FormatInt(accountID, 10), &adminID, "balance_set",
			domain.FormatMicros(acc.Balance), domain.FormatMicros(value), metadata); err != nil {
			return err
		}
		out, err = qtx.GetAccount(ctx, accountID)
		return err
	})
	if err != nil {
		return models.Account{}, err
	}

	zap.L().Warn("account balance overridden",
		zap.Int64("admin_id", adminID),
		zap.Int64("account_id", accountID),
		zap.String("balance", domain.FormatMicros(value)),
	)
	return out, nil
}

// SetBlocked blocks or unblocks an account.
func (s *LedgerService) SetBlocked(ctx context.Context, adminID, accountID int64, blocked bool) (models.Account, error) {
	var out models.Account
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := requireAdmin(ctx, qtx, adminID); err != nil {
			return err
		}
		locked, err := lockAccounts(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		prev := locked[accountID].IsBlocked
		rows, err := qtx.SetAccountBlocked(ctx, repository.SetAccountFlagParams{ID: accountID, Value: blocked})
		if err != nil {
			return fmt.Errorf("set account blocked: %w", err)
		}
		if err := requireExactlyOne(rows, "set account blocked"); err != nil {
			return err
		}
		if err := s.audit.Write(ctx, qtx, "account", strconv.FormatInt(accountID, 10), &adminID, "blocked_set",
			strconv.FormatBool(prev), strconv.FormatBool(blocked), nil); err != nil {
			return err
		}
		out, err = qtx.GetAccount(ctx, accountID)
		return err
	})
	if err != nil {
		return models.Account{}, err
	}
	zap.L().Warn("account block flag changed",
		zap.Int64("admin_id", adminID),
		zap.Int64("account_id", accountID),
		zap.Bool("blocked", blocked),
	)
	return out, nil
}

// GrantAdmin marks an account as admin, creating it if needed. It is the
// operator bootstrap path and performs no caller check.
func (s *LedgerService) GrantAdmin(ctx context.Context, accountID int64) (models.Account, error) {
	if accountID <= 0 {
		return models.Account{}, domain.NewValidationError("id", "must be a positive platform user id")
	}
	var out models.Account
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		acc, err := qtx.UpsertAccount(ctx, repository.UpsertAccountParams{ID: accountID})
		if err != nil {
			return fmt.Errorf("upsert account: %w", err)
		}
		if acc.IsAdmin {
			out = acc
			return nil
		}
		rows, err := qtx.SetAccountAdmin(ctx, repository.SetAccountFlagParams{ID: accountID, Value: true})
		if err != nil {
			return fmt.Errorf("set account admin: %w", err)
		}
		if err := requireExactlyOne(rows, "set account admin"); err != nil {
			return err
		}
		if err := s.audit.Write(ctx, qtx, "account", strconv.FormatInt(accountID, 10), nil, "admin_granted", "false", "true", nil); err != nil {
			return err
		}
		out, err = qtx.GetAccount(ctx, accountID)
		return err
	})
	return out, err
}

// requireAdmin checks the caller's stored admin flag; tokens alone are not trusted.
func requireAdmin(ctx context.Context, qtx repository.Querier, adminID int64) error {
	acc, err := qtx.GetAccount(ctx, adminID)
	if err != nil {
		return notFound(err, domain.ErrNotAdmin, "get admin account")
	}
	if !acc.IsAdmin {
		return domain.ErrNotAdmin
	}
	return nil
}

// lockAccounts takes row locks on the given accounts in ascending id order.
func lockAccounts(ctx context.Context, qtx repository.Querier, ids ...int64) (map[int64]models.Account, error) {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, cmp.Compare[int64])
	sorted = slices.Compact(sorted)

	locked := make(map[int64]models.Account, len(sorted))
	for _, id := range sorted {
		acc, err := qtx.GetAccountForUpdate(ctx, id)
		if err != nil {
			return nil, notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		locked[id] = acc
	}
	return locked, nil
}

// postCredit books a credit on an account the caller has already locked.
func postCredit(ctx context.Context, qtx repository.Querier, accountID, amount int64, kind string, ref uuid.UUID) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	rows, err := qtx.AddAccountBalance(ctx, repository.AddAccountBalanceParams{ID: accountID, Delta: amount})
	if err != nil {
		return fmt.Errorf("credit account %d: %w", accountID, err)
	}
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	return createEntry(ctx, qtx, accountID, amount, domain.DirectionCredit, kind, ref)
}

// postDebit books a debit on an account the caller has already locked. The
// guarded update refuses to eat into held funds.
func postDebit(ctx context.Context, qtx repository.Querier, accountID, amount int64, kind string, ref uuid.UUID) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	rows, err := qtx.AddAccountBalance(ctx, repository.AddAccountBalanceParams{ID: accountID, Delta: -amount})
	if err != nil {
		return fmt.Errorf("debit account %d: %w", accountID, err)
	}
	if rows == 0 {
		return domain.ErrInsufficientFunds
	}
	return createEntry(ctx, qtx, accountID, amount, domain.DirectionDebit, kind, ref)
}

func createEntry(ctx context.Context, qtx repository.Querier, accountID, amount int64, direction, kind string, ref uuid.UUID) error {
	if err := qtx.CreateEntry(ctx, repository.CreateEntryParams{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Direction:   direction,
		Kind:        kind,
		ReferenceID: ref,
	}); err != nil {
		return fmt.Errorf("create %s entry: %w", direction, err)
	}
	return nil
}

// transferFunds locks both accounts and moves amount between them inside qtx.
func transferFunds(ctx context.Context, qtx repository.Querier, from, to, amount int64, kind string, ref uuid.UUID) error {
	if from == to {
		return domain.NewValidationError("to", "cannot transfer to the same account")
	}
	locked, err := lockAccounts(ctx, qtx, from, to)
	if err != nil {
		return err
	}
	if locked[from].Available() < amount {
		return domain.ErrInsufficientFunds
	}
	if err := postDebit(ctx, qtx, from, amount, kind, ref); err != nil {
		return err
	}
	return postCredit(ctx, qtx, to, amount, kind, ref)
}
