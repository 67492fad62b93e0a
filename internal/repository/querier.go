package repository

import (
	"context"
	"iter"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/google/uuid"
)

// Querier is the data access contract used by the service layer. Methods
// named *ForUpdate take a row lock and are only meaningful inside RunInTx.
// Lookups of a missing row return pgx.ErrNoRows.
type Querier interface {
	UpsertAccount(ctx context.Context, arg UpsertAccountParams) (models.Account, error)
	GetAccount(ctx context.Context, id int64) (models.Account, error)
	GetAccountForUpdate(ctx context.Context, id int64) (models.Account, error)
	AddAccountBalance(ctx context.Context, arg AddAccountBalanceParams) (int64, error)
	SetAccountBalance(ctx context.Context, arg SetAccountBalanceParams) (int64, error)
	HoldAccountFunds(ctx context.Context, arg AccountAmountParams) (int64, error)
	ReleaseAccountFunds(ctx context.Context, arg AccountAmountParams) (int64, error)
	DeductHeldFunds(ctx context.Context, arg AccountAmountParams) (int64, error)
	SetAccountBlocked(ctx context.Context, arg SetAccountFlagParams) (int64, error)
	SetAccountAdmin(ctx context.Context, arg SetAccountFlagParams) (int64, error)
	RefreshAccountRating(ctx context.Context, id int64) (models.Account, error)
	SumAccountBalances(ctx context.Context) (int64, error)

	CreateEntry(ctx context.Context, arg CreateEntryParams) error
	ListEntries(ctx context.Context, arg ListByAccountParams) ([]models.Entry, error)
	ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error)
	SumEntriesByKind(ctx context.Context) ([]KindTotal, error)

	CreateListing(ctx context.Context, arg CreateListingParams) (models.Listing, error)
	GetListing(ctx context.Context, id uuid.UUID) (models.Listing, error)
	GetListingForUpdate(ctx context.Context, id uuid.UUID) (models.Listing, error)
	DeactivateListing(ctx context.Context, id uuid.UUID) (int64, error)
	ListListings(ctx context.Context, arg ListListingsParams) iter.Seq2[models.Listing, error]

	CreateTransaction(ctx context.Context, arg CreateTransactionParams) (models.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (int64, error)
	ListTransactionsByAccount(ctx context.Context, arg ListByAccountParams) ([]models.Transaction, error)

	CreateDispute(ctx context.Context, arg CreateDisputeParams) (models.Dispute, error)
	GetDispute(ctx context.Context, id uuid.UUID) (models.Dispute, error)
	GetDisputeForUpdate(ctx context.Context, id uuid.UUID) (models.Dispute, error)
	GetOpenDisputeByTransaction(ctx context.Context, transactionID uuid.UUID) (models.Dispute, error)
	SettleDispute(ctx context.Context, arg SettleDisputeParams) (int64, error)
	ListDisputesByStatus(ctx context.Context, arg ListDisputesParams) ([]models.Dispute, error)

	CreatePromoCode(ctx context.Context, arg CreatePromoCodeParams) (models.PromoCode, error)
	GetPromoCode(ctx context.Context, code string) (models.PromoCode, error)
	GetPromoCodeForUpdate(ctx context.Context, code string) (models.PromoCode, error)
	ConsumePromoCode(ctx context.Context, arg ConsumePromoCodeParams) (models.PromoCode, error)
	DeactivatePromoCode(ctx context.Context, id uuid.UUID) (int64, error)
	CreatePromoRedemption(ctx context.Context, arg CreatePromoRedemptionParams) error

	CreateReview(ctx context.Context, arg CreateReviewParams) (models.Review, error)
	ReviewExists(ctx context.Context, arg ReviewExistsParams) (bool, error)
	ListReviewsForAccount(ctx context.Context, arg ListByAccountParams) ([]models.Review, error)

	CreateDeposit(ctx context.Context, arg CreateDepositParams) (models.Deposit, error)
	GetDeposit(ctx context.Context, id uuid.UUID) (models.Deposit, error)
	GetDepositForUpdate(ctx context.Context, id uuid.UUID) (models.Deposit, error)
	MarkDepositPaid(ctx context.Context, id uuid.UUID) (int64, error)

	CreatePayout(ctx context.Context, arg CreatePayoutParams) (models.Payout, error)
	GetPayout(ctx context.Context, id uuid.UUID) (models.Payout, error)
	GetPayoutForUpdate(ctx context.Context, id uuid.UUID) (models.Payout, error)
	ClaimPendingPayouts(ctx context.Context, limit int32) ([]models.Payout, error)
	GetStaleProcessingPayouts(ctx context.Context, arg GetStaleProcessingPayoutsParams) ([]models.Payout, error)
	UpdatePayoutStatus(ctx context.Context, arg UpdatePayoutStatusParams) (int64, error)
	ListPayoutsByStatus(ctx context.Context, arg ListPayoutsByStatusParams) ([]models.Payout, error)
	CountPayoutsByStatus(ctx context.Context, status string) (int64, error)

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error
	ListAuditLog(ctx context.Context, arg ListAuditLogParams) ([]models.AuditEntry, error)
}
