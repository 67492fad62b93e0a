package repository

import (
	"time"

	"github.com/google/uuid"
)

type UpsertAccountParams struct {
	ID       int64
	Username string
}

type AddAccountBalanceParams struct {
	ID    int64
	Delta int64
}

type SetAccountBalanceParams struct {
	ID      int64
	Balance int64
}

type AccountAmountParams struct {
	ID     int64
	Amount int64
}

type SetAccountFlagParams struct {
	ID    int64
	Value bool
}

type CreateEntryParams struct {
	ID          uuid.UUID
	AccountID   int64
	Amount      int64
	Direction   string
	Kind        string
	ReferenceID uuid.UUID
}

type ListByAccountParams struct {
	AccountID int64
	Limit     int32
	Offset    int32
}

// BalanceDrift is an account whose stored balance disagrees with its entries.
type BalanceDrift struct {
	AccountID  int64
	Balance    int64
	EntriesNet int64
}

// KindTotal sums ledger entries of one kind.
type KindTotal struct {
	Kind    string
	Credits int64
	Debits  int64
}

type CreateListingParams struct {
	ID            uuid.UUID
	SellerID      int64
	Category      string
	Payload       string
	DurationHours int32
	Price         int64
}

type ListListingsParams struct {
	Category string
	SellerID int64
	MinPrice int64
	MaxPrice int64
	OrderBy  string
	Limit    int32
}

type CreateTransactionParams struct {
	ID        uuid.UUID
	ListingID uuid.UUID
	BuyerID   int64
	SellerID  int64
	Amount    int64
	Status    string
}

type UpdateTransactionStatusParams struct {
	ID     uuid.UUID
	Status string
}

type CreateDisputeParams struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	InitiatorID   int64
	BuyerID       int64
	SellerID      int64
	Description   string
}

type SettleDisputeParams struct {
	ID         uuid.UUID
	Status     string
	Winner     *string
	ResolvedBy int64
	Resolution *string
}

type ListDisputesParams struct {
	Status string
	Limit  int32
	Offset int32
}

type CreatePromoCodeParams struct {
	ID        uuid.UUID
	Code      string
	Amount    int64
	MaxUses   int32
	CreatedBy int64
	ExpiresAt *time.Time
}

type ConsumePromoCodeParams struct {
	ID         uuid.UUID
	RedeemedBy int64
}

type CreatePromoRedemptionParams struct {
	ID        uuid.UUID
	PromoID   uuid.UUID
	AccountID int64
	Amount    int64
}

type CreateReviewParams struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	ReviewerID    int64
	ReviewedID    int64
	Rating        int32
	Comment       string
}

type ReviewExistsParams struct {
	TransactionID uuid.UUID
	ReviewerID    int64
}

type CreateDepositParams struct {
	ID        uuid.UUID
	AccountID int64
	Amount    int64
	InvoiceID string
	PayURL    string
}

type CreatePayoutParams struct {
	ID        uuid.UUID
	AccountID int64
	Amount    int64
}

type GetStaleProcessingPayoutsParams struct {
	UpdatedBefore time.Time
	Limit         int32
}

type UpdatePayoutStatusParams struct {
	ID            uuid.UUID
	Status        string
	SettlementRef *string
	FailureReason *string
}

type ListPayoutsByStatusParams struct {
	Status string
	Limit  int32
	Offset int32
}

type InsertAuditLogParams struct {
	EntityType string
	EntityID   string
	ActorID    *int64
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

type ListAuditLogParams struct {
	EntityType string
	EntityID   string
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	IdempotencyKey string
	RequestHash    string
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	InProgress     bool
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
}
