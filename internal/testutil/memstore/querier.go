package memstore

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type querier struct {
	store *Store
	tx    *state
}

var _ repository.Querier = (*querier)(nil)

// do runs fn against the transaction copy, or against committed state under the store lock.
func (q *querier) do(fn func(st *state) error) error {
	if q.tx != nil {
		return fn(q.tx)
	}
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	return fn(q.store.st)
}

func ptr[T any](v T) *T { return &v }

func page[T any](items []T, limit, offset int32) []T {
	if offset < 0 {
		offset = 0
	}
	if int(offset) >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

func newerFirst(a, b time.Time, ida, idb string) int {
	if c := b.Compare(a); c != 0 {
		return c
	}
	return cmp.Compare(ida, idb)
}

// accounts

func (q *querier) UpsertAccount(ctx context.Context, arg repository.UpsertAccountParams) (models.Account, error) {
	var out models.Account
	err := q.do(func(st *state) error {
		now := st.now()
		acc, ok := st.accounts[arg.ID]
		if !ok {
			acc = models.Account{ID: arg.ID, Rating: domain.DefaultRating, CreatedAt: now}
		}
		if arg.Username != "" {
			acc.Username = arg.Username
		}
		acc.UpdatedAt = now
		st.accounts[arg.ID] = acc
		out = acc
		return nil
	})
	return out, err
}

func (q *querier) GetAccount(ctx context.Context, id int64) (models.Account, error) {
	var out models.Account
	err := q.do(func(st *state) error {
		acc, ok := st.accounts[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = acc
		return nil
	})
	return out, err
}

func (q *querier) GetAccountForUpdate(ctx context.Context, id int64) (models.Account, error) {
	return q.GetAccount(ctx, id)
}

// updateAccount applies fn when the account exists and guard passes, reporting rows affected.
func (q *querier) updateAccount(id int64, guard func(models.Account) bool, fn func(*models.Account)) (int64, error) {
	var rows int64
	err := q.do(func(st *state) error {
		acc, ok := st.accounts[id]
		if !ok || (guard != nil && !guard(acc)) {
			return nil
		}
		fn(&acc)
		acc.UpdatedAt = st.now()
		st.accounts[id] = acc
		rows = 1
		return nil
	})
	return rows, err
}

func (q *querier) AddAccountBalance(ctx context.Context, arg repository.AddAccountBalanceParams) (int64, error) {
	return q.updateAccount(arg.ID,
		func(a models.Account) bool { return a.Balance+arg.Delta >= a.Held },
		func(a *models.Account) { a.Balance += arg.Delta })
}

func (q *querier) SetAccountBalance(ctx context.Context, arg repository.SetAccountBalanceParams) (int64, error) {
	return q.updateAccount(arg.ID,
		func(a models.Account) bool { return a.Held <= arg.Balance },
		func(a *models.Account) { a.Balance = arg.Balance })
}

func (q *querier) HoldAccountFunds(ctx context.Context, arg repository.AccountAmountParams) (int64, error) {
	return q.updateAccount(arg.ID,
		func(a models.Account) bool { return a.Balance-a.Held >= arg.Amount },
		func(a *models.Account) { a.Held += arg.Amount })
}

func (q *querier) ReleaseAccountFunds(ctx context.Context, arg repository.AccountAmountParams) (int64, error) {
	return q.updateAccount(arg.ID,
		func(a models.Account) bool { return a.Held >= arg.Amount },
		func(a *models.Account) { a.Held -= arg.Amount })
}

func (q *querier) DeductHeldFunds(ctx context.Context, arg repository.AccountAmountParams) (int64, error) {
	return q.updateAccount(arg.ID,
		func(a models.Account) bool { return a.Held >= arg.Amount },
		func(a *models.Account) {
			a.Balance -= arg.Amount
			a.Held -= arg.Amount
		})
}

func (q *querier) SetAccountBlocked(ctx context.Context, arg repository.SetAccountFlagParams) (int64, error) {
	return q.updateAccount(arg.ID, nil, func(a *models.Account) { a.IsBlocked = arg.Value })
}

func (q *querier) SetAccountAdmin(ctx context.Context, arg repository.SetAccountFlagParams) (int64, error) {
	return q.updateAccount(arg.ID, nil, func(a *models.Account) { a.IsAdmin = arg.Value })
}

func (q *querier) RefreshAccountRating(ctx context.Context, id int64) (models.Account, error) {
	var out models.Account
	err := q.do(func(st *state) error {
		acc, ok := st.accounts[id]
		if !ok {
			return pgx.ErrNoRows
		}
		var sum, n int64
		for _, r := range st.reviews {
			if r.ReviewedID == id {
				sum += int64(r.Rating)
				n++
			}
		}
		acc.Rating = domain.DefaultRating
		if n > 0 {
			acc.Rating = float64(sum) / float64(n)
		}
		acc.TotalReviews = int32(n)
		acc.UpdatedAt = st.now()
		st.accounts[id] = acc
		out = acc
		return nil
	})
	return out, err
}

func (q *querier) SumAccountBalances(ctx context.Context) (int64, error) {
	var total int64
	err := q.do(func(st *state) error {
		for _, a := range st.accounts {
			total += a.Balance
		}
		return nil
	})
	return total, err
}

// entries

func (q *querier) CreateEntry(ctx context.Context, arg repository.CreateEntryParams) error {
	return q.do(func(st *state) error {
		if _, ok := st.accounts[arg.AccountID]; !ok {
			return foreignKeyViolation("entries_account_id_fkey")
		}
		st.entries = append(st.entries, models.Entry{
			ID:          arg.ID,
			AccountID:   arg.AccountID,
			Amount:      arg.Amount,
			Direction:   arg.Direction,
			Kind:        arg.Kind,
			ReferenceID: arg.ReferenceID,
			CreatedAt:   st.now(),
		})
		return nil
	})
}

func (q *querier) ListEntries(ctx context.Context, arg repository.ListByAccountParams) ([]models.Entry, error) {
	var out []models.Entry
	err := q.do(func(st *state) error {
		for _, e := range st.entries {
			if e.AccountID == arg.AccountID {
				out = append(out, e)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Entry) int {
		return newerFirst(a.CreatedAt, b.CreatedAt, a.ID.String(), b.ID.String())
	})
	return page(out, arg.Limit, arg.Offset), err
}

func signed(e models.Entry) int64 {
	if e.Direction == domain.DirectionDebit {
		return -e.Amount
	}
	return e.Amount
}

func (q *querier) ListBalanceDrift(ctx context.Context) ([]repository.BalanceDrift, error) {
	var out []repository.BalanceDrift
	err := q.do(func(st *state) error {
		net := map[int64]int64{}
		for _, e := range st.entries {
			net[e.AccountID] += signed(e)
		}
		for id, a := range st.accounts {
			if a.Balance != net[id] {
				out = append(out, repository.BalanceDrift{AccountID: id, Balance: a.Balance, EntriesNet: net[id]})
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b repository.BalanceDrift) int { return cmp.Compare(a.AccountID, b.AccountID) })
	return out, err
}

func (q *querier) SumEntriesByKind(ctx context.Context) ([]repository.KindTotal, error) {
	totals := map[string]*repository.KindTotal{}
	err := q.do(func(st *state) error {
		for _, e := range st.entries {
			t, ok := totals[e.Kind]
			if !ok {
				t = &repository.KindTotal{Kind: e.Kind}
				totals[e.Kind] = t
			}
			if e.Direction == domain.DirectionDebit {
				t.Debits += e.Amount
			} else {
				t.Credits += e.Amount
			}
		}
		return nil
	})
	out := make([]repository.KindTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b repository.KindTotal) int { return cmp.Compare(a.Kind, b.Kind) })
	return out, err
}

// listings

func (q *querier) CreateListing(ctx context.Context, arg repository.CreateListingParams) (models.Listing, error) {
	var out models.Listing
	err := q.do(func(st *state) error {
		if _, ok := st.accounts[arg.SellerID]; !ok {
			return foreignKeyViolation("listings_seller_id_fkey")
		}
		out = models.Listing{
			ID:            arg.ID,
			SellerID:      arg.SellerID,
			Category:      arg.Category,
			Payload:       arg.Payload,
			DurationHours: arg.DurationHours,
			Price:         arg.Price,
			Active:        true,
			CreatedAt:     st.now(),
		}
		st.listings[arg.ID] = out
		return nil
	})
	return out, err
}

func (q *querier) GetListing(ctx context.Context, id uuid.UUID) (models.Listing, error) {
	var out models.Listing
	err := q.do(func(st *state) error {
		l, ok := st.listings[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = l
		return nil
	})
	return out, err
}

func (q *querier) GetListingForUpdate(ctx context.Context, id uuid.UUID) (models.Listing, error) {
	return q.GetListing(ctx, id)
}

func (q *querier) DeactivateListing(ctx context.Context, id uuid.UUID) (int64, error) {
	var rows int64
	err := q.do(func(st *state) error {
		l, ok := st.listings[id]
		if !ok || !l.Active {
			return nil
		}
		l.Active = false
		st.listings[id] = l
		rows = 1
		return nil
	})
	return rows, err
}

func (q *querier) ListListings(ctx context.Context, arg repository.ListListingsParams) iter.Seq2[models.Listing, error] {
	return func(yield func(models.Listing, error) bool) {
		var matched []models.Listing
		err := q.do(func(st *state) error {
			for _, l := range st.listings {
				switch {
				case !l.Active,
					arg.Category != "" && l.Category != arg.Category,
					arg.SellerID != 0 && l.SellerID != arg.SellerID,
					arg.MinPrice > 0 && l.Price < arg.MinPrice,
					arg.MaxPrice > 0 && l.Price > arg.MaxPrice:
					continue
				}
				matched = append(matched, l)
			}
			return nil
		})
		if err != nil {
			yield(models.Listing{}, err)
			return
		}
		slices.SortFunc(matched, func(a, b models.Listing) int {
			switch arg.OrderBy {
			case domain.ListingOrderPriceAsc:
				if c := cmp.Compare(a.Price, b.Price); c != 0 {
					return c
				}
			case domain.ListingOrderPriceDesc:
				if c := cmp.Compare(b.Price, a.Price); c != 0 {
					return c
				}
			}
			return newerFirst(a.CreatedAt, b.CreatedAt, a.ID.String(), b.ID.String())
		})
		for _, l := range page(matched, arg.Limit, 0) {
			if !yield(l, nil) {
				return
			}
		}
	}
}

// transactions

func (q *querier) CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (models.Transaction, error) {
	var out models.Transaction
	err := q.do(func(st *state) error {
		for _, t := range st.transactions {
			if t.ListingID == arg.ListingID {
				return uniqueViolation("idx_transactions_listing")
			}
		}
		now := st.now()
		out = models.Transaction{
			ID:        arg.ID,
			ListingID: arg.ListingID,
			BuyerID:   arg.BuyerID,
			SellerID:  arg.SellerID,
			Amount:    arg.Amount,
			Status:    arg.Status,
			CreatedAt: now,
		}
		if arg.Status == domain.TxStatusCompleted {
			out.CompletedAt = ptr(now)
		}
		st.transactions[arg.ID] = out
		return nil
	})
	return out, err
}

func (q *querier) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	var out models.Transaction
	err := q.do(func(st *state) error {
		t, ok := st.transactions[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = t
		return nil
	})
	return out, err
}

func (q *querier) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return q.GetTransaction(ctx, id)
}

func (q *querier) UpdateTransactionStatus(ctx context.Context, arg repository.UpdateTransactionStatusParams) (int64, error) {
	var rows int64
	err := q.do(func(st *state) error {
		t, ok := st.transactions[arg.ID]
		if !ok {
			return nil
		}
		t.Status = arg.Status
		if arg.Status == domain.TxStatusCompleted && t.CompletedAt == nil {
			t.CompletedAt = ptr(st.now())
		}
		st.transactions[arg.ID] = t
		rows = 1
		return nil
	})
	return rows, err
}

func (q *querier) ListTransactionsByAccount(ctx context.Context, arg repository.ListByAccountParams) ([]models.Transaction, error) {
	var out []models.Transaction
	err := q.do(func(st *state) error {
		for _, t := range st.transactions {
			if t.BuyerID == arg.AccountID || t.SellerID == arg.AccountID {
				out = append(out, t)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Transaction) int {
		return newerFirst(a.CreatedAt, b.CreatedAt, a.ID.String(), b.ID.String())
	})
	return page(out, arg.Limit, arg.Offset), err
}

// disputes

func (q *querier) CreateDispute(ctx context.Context, arg repository.CreateDisputeParams) (models.Dispute, error) {
	var out models.Dispute
	err := q.do(func(st *state) error {
		for _, d := range st.disputes {
			if d.TransactionID == arg.TransactionID && d.Status == domain.DisputeStatusOpen {
				return uniqueViolation("idx_disputes_one_open")
			}
		}
		out = models.Dispute{
			ID:            arg.ID,
			TransactionID: arg.TransactionID,
			InitiatorID:   arg.InitiatorID,
			BuyerID:       arg.BuyerID,
			SellerID:      arg.SellerID,
			Description:   arg.Description,
			Status:        domain.DisputeStatusOpen,
			CreatedAt:     st.now(),
		}
		st.disputes[arg.ID] = out
		return nil
	})
	return out, err
}

func (q *querier) GetDispute(ctx context.Context, id uuid.UUID) (models.Dispute, error) {
	var out models.Dispute
	err := q.do(func(st *state) error {
		d, ok := st.disputes[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = d
		return nil
	})
	return out, err
}

func (q *querier) GetDisputeForUpdate(ctx context.Context, id uuid.UUID) (models.Dispute, error) {
	return q.GetDispute(ctx, id)
}

func (q *querier) GetOpenDisputeByTransaction(ctx context.Context, transactionID uuid.UUID) (models.Dispute, error) {
	var out models.Dispute
	err := q.do(func(st *state) error {
		for _, d := range st.disputes {
			if d.TransactionID == transactionID && d.Status == domain.DisputeStatusOpen {
				out = d
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return out, err
}

func (q *querier) SettleDispute(ctx context.Context, arg repository.SettleDisputeParams) (int64, error) {
	var rows int64
	err := q.do(func(st *state) error {
		d, ok := st.disputes[arg.ID]
		if !ok || d.Status != domain.DisputeStatusOpen {
			return nil
		}
		d.Status = arg.Status
		d.Winner = arg.Winner
		d.ResolvedBy = ptr(arg.ResolvedBy)
		d.Resolution = arg.Resolution
		d.ResolvedAt = ptr(st.now())
		st.disputes[arg.ID] = d
		rows = 1
		return nil
	})
	return rows, err
}

func (q *querier) ListDisputesByStatus(ctx context.Context, arg repository.ListDisputesParams) ([]models.Dispute, error) {
	var out []models.Dispute
	err := q.do(func(st *state) error {
		for _, d := range st.disputes {
			if d.Status == arg.Status {
				out = append(out, d)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Dispute) int {
		return newerFirst(b.CreatedAt, a.CreatedAt, a.ID.String(), b.ID.String())
	})
	return page(out, arg.Limit, arg.Offset), err
}

// promos

func (q *querier) CreatePromoCode(ctx context.Context, arg repository.CreatePromoCodeParams) (models.PromoCode, error) {
	var out models.PromoCode
	err := q.do(func(st *state) error {
		if _, ok := st.promos[arg.Code]; ok {
			return uniqueViolation("promo_codes_code_key")
		}
		out = models.PromoCode{
			ID:        arg.ID,
			Code:      arg.Code,
			Amount:    arg.Amount,
			MaxUses:   arg.MaxUses,
			Active:    true,
			CreatedBy: arg.CreatedBy,
			ExpiresAt: arg.ExpiresAt,
			CreatedAt: st.now(),
		}
		st.promos[arg.Code] = out
		return nil
	})
	return out, err
}

func (q *querier) GetPromoCode(ctx context.Context, code string) (models.PromoCode, error) {
	var out models.PromoCode
	err := q.do(func(st *state) error {
		p, ok := st.promos[code]
		if !ok {
			return pgx.ErrNoRows
		}
		out = p
		return nil
	})
	return out, err
}

func (q *querier) GetPromoCodeForUpdate(ctx context.Context, code string) (models.PromoCode, error) {
	return q.GetPromoCode(ctx, code)
}

func (q *querier) findPromo(st *state, id uuid.UUID) (models.PromoCode, bool) {
	for _, p := range st.promos {
		if p.ID == id {
			return p, true
		}
	}
	return models.PromoCode{}, false
}

func (q *querier) ConsumePromoCode(ctx context.Context, arg repository.ConsumePromoCodeParams) (models.PromoCode, error) {
	var out models.PromoCode
	err := q.do(func(st *state) error {
		p, ok := q.findPromo(st, arg.ID)
		if !ok || !p.Active || p.CurrentUses >= p.MaxUses {
			return pgx.ErrNoRows
		}
		p.CurrentUses++
		p.Active = p.CurrentUses < p.MaxUses
		p.RedeemedBy = ptr(arg.RedeemedBy)
		st.promos[p.Code] = p
		out = p
		return nil
	})
	return out, err
}

func (q *querier) DeactivatePromoCode(ctx context.Context, id uuid.UUID) (int64, error) {
	var rows int64
	err := q.do(func(st *state) error {
		p, ok := q.findPromo(st, id)
		if !ok || !p.Active {
			return nil
		}
		p.Active = false
		st.promos[p.Code] = p
		rows = 1
		return nil
	})
	return rows, err
}

func (q *querier) CreatePromoRedemption(ctx context.Context, arg repository.CreatePromoRedemptionParams) error {
	return q.do(func(st *state) error {
		st.redemptions = append(st.redemptions, models.PromoRedemption{
			ID:        arg.ID,
			PromoID:   arg.PromoID,
			AccountID: arg.AccountID,
			Amount:    arg.Amount,
			CreatedAt: st.now(),
		})
		return nil
	})
}

// reviews

func (q *querier) CreateReview(ctx context.Context, arg repository.CreateReviewParams) (models.Review, error) {
	var out models.Review
	err := q.do(func(st *state) error {
		for _, r := range st.reviews {
			if r.TransactionID == arg.TransactionID && r.ReviewerID == arg.ReviewerID {
				return uniqueViolation("reviews_transaction_id_reviewer_id_key")
			}
		}
		out = models.Review{
			ID:            arg.ID,
			TransactionID: arg.TransactionID,
			ReviewerID:    arg.ReviewerID,
			ReviewedID:    arg.ReviewedID,
			Rating:        arg.Rating,
			Comment:       arg.Comment,
			CreatedAt:     st.now(),
		}
		st.reviews = append(st.reviews, out)
		return nil
	})
	return out, err
}

func (q *querier) ReviewExists(ctx context.Context, arg repository.ReviewExistsParams) (bool, error) {
	var exists bool
	err := q.do(func(st *state) error {
		exists = slices.ContainsFunc(st.reviews, func(r models.Review) bool {
			return r.TransactionID == arg.TransactionID && r.ReviewerID == arg.ReviewerID
		})
		return nil
	})
	return exists, err
}

func (q *querier) ListReviewsForAccount(ctx context.Context, arg repository.ListByAccountParams) ([]models.Review, error) {
	var out []models.Review
	err := q.do(func(st *state) error {
		for _, r := range st.reviews {
			if r.ReviewedID == arg.AccountID {
				out = append(out, r)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Review) int {
		return newerFirst(a.CreatedAt, b.CreatedAt, a.ID.String(), b.ID.String())
	})
	return page(out, arg.Limit, arg.Offset), err
}

// deposits

func (q *querier) CreateDeposit(ctx context.Context, arg repository.CreateDepositParams) (models.Deposit, error) {
	var out models.Deposit
	err := q.do(func(st *state) error {
		if _, ok := st.accounts[arg.AccountID]; !ok {
			return foreignKeyViolation("deposits_account_id_fkey")
		}
		out = models.Deposit{
			ID:        arg.ID,
			AccountID: arg.AccountID,
			Amount:    arg.Amount,
			InvoiceID: arg.InvoiceID,
			PayURL:    arg.PayURL,
			Status:    domain.DepositStatusPending,
			CreatedAt: st.now(),
		}
		st.deposits[arg.ID] = out
		return nil
	})
	return out, err
}

func (q *querier) GetDeposit(ctx context.Context, id uuid.UUID) (models.Deposit, error) {
	var out models.Deposit
	err := q.do(func(st *state) error {
		d, ok := st.deposits[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = d
		return nil
	})
	return out, err
}

func (q *querier) GetDepositForUpdate(ctx context.Context, id uuid.UUID) (models.Deposit, error) {
	return q.GetDeposit(ctx, id)
}

func (q *querier) MarkDepositPaid(ctx context.Context, id uuid.UUID) (int64, error) {
	var rows int64
	err := q.do(func(st *state) error {
		d, ok := st.deposits[id]
		if !ok || d.Status != domain.DepositStatusPending {
			return nil
		}
		d.Status = domain.DepositStatusPaid
		d.PaidAt = ptr(st.now())
		st.deposits[id] = d
		rows = 1
		return nil
	})
	return rows, err
}

// payouts

func (q *querier) CreatePayout(ctx context.Context, arg repository.CreatePayoutParams) (models.Payout, error) {
	var out models.Payout
	err := q.do(func(st *state) error {
		if _, ok := st.accounts[arg.AccountID]; !ok {
			return foreignKeyViolation("payouts_account_id_fkey")
		}
		now := st.now()
		out = models.Payout{
			ID:        arg.ID,
			AccountID: arg.AccountID,
			Amount:    arg.Amount,
			Status:    domain.PayoutStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.payouts[arg.ID] = out
		return nil
	})
	return out, err
}

func (q *querier) GetPayout(ctx context.Context, id uuid.UUID) (models.Payout, error) {
	var out models.Payout
	err := q.do(func(st *state) error {
		p, ok := st.payouts[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = p
		return nil
	})
	return out, err
}

func (q *querier) GetPayoutForUpdate(ctx context.Context, id uuid.UUID) (models.Payout, error) {
	return q.GetPayout(ctx, id)
}

func (q *querier) payoutsWhere(pred func(models.Payout) bool, byUpdated bool) ([]models.Payout, error) {
	var out []models.Payout
	err := q.do(func(st *state) error {
		for _, p := range st.payouts {
			if pred(p) {
				out = append(out, p)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Payout) int {
		if byUpdated {
			return newerFirst(b.UpdatedAt, a.UpdatedAt, a.ID.String(), b.ID.String())
		}
		return newerFirst(b.CreatedAt, a.CreatedAt, a.ID.String(), b.ID.String())
	})
	return out, err
}

func (q *querier) ClaimPendingPayouts(ctx context.Context, limit int32) ([]models.Payout, error) {
	out, err := q.payoutsWhere(func(p models.Payout) bool { return p.Status == domain.PayoutStatusPending }, false)
	return page(out, limit, 0), err
}

func (q *querier) GetStaleProcessingPayouts(ctx context.Context, arg repository.GetStaleProcessingPayoutsParams) ([]models.Payout, error) {
	out, err := q.payoutsWhere(func(p models.Payout) bool {
		return p.Status == domain.PayoutStatusProcessing && p.UpdatedAt.Before(arg.UpdatedBefore)
	}, true)
	return page(out, arg.Limit, 0), err
}

func (q *querier) UpdatePayoutStatus(ctx context.Context, arg repository.UpdatePayoutStatusParams) (int64, error) {
	var rows int64
	err := q.do(func(st *state) error {
		p, ok := st.payouts[arg.ID]
		if !ok {
			return nil
		}
		p.Status = arg.Status
		if arg.SettlementRef != nil {
			p.SettlementRef = arg.SettlementRef
		}
		if arg.FailureReason != nil {
			p.FailureReason = arg.FailureReason
		}
		p.UpdatedAt = st.now()
		st.payouts[arg.ID] = p
		rows = 1
		return nil
	})
	return rows, err
}

func (q *querier) ListPayoutsByStatus(ctx context.Context, arg repository.ListPayoutsByStatusParams) ([]models.Payout, error) {
	out, err := q.payoutsWhere(func(p models.Payout) bool { return p.Status == arg.Status }, false)
	return page(out, arg.Limit, arg.Offset), err
}

func (q *querier) CountPayoutsByStatus(ctx context.Context, status string) (int64, error) {
	out, err := q.payoutsWhere(func(p models.Payout) bool { return p.Status == status }, false)
	return int64(len(out)), err
}

// audit

func (q *querier) InsertAuditLog(ctx context.Context, arg repository.InsertAuditLogParams) error {
	return q.do(func(st *state) error {
		st.audit = append(st.audit, models.AuditEntry{
			ID:         int64(len(st.audit) + 1),
			EntityType: arg.EntityType,
			EntityID:   arg.EntityID,
			ActorID:    arg.ActorID,
			Action:     arg.Action,
			PrevState:  arg.PrevState,
			NextState:  arg.NextState,
			Metadata:   arg.Metadata,
			CreatedAt:  st.now(),
		})
		return nil
	})
}

func (q *querier) ListAuditLog(ctx context.Context, arg repository.ListAuditLogParams) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := q.do(func(st *state) error {
		for _, e := range st.audit {
			if e.EntityType == arg.EntityType && e.EntityID == arg.EntityID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
