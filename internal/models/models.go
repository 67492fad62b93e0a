package models

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Balance      int64     `json:"balance_micros"`
	Held         int64     `json:"held_micros"`
	Rating       float64   `json:"rating"`
	TotalReviews int32     `json:"total_reviews"`
	IsBlocked    bool      `json:"is_blocked"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Available is the part of the balance not reserved for pending payouts.
func (a Account) Available() int64 {
	return a.Balance - a.Held
}

type Listing struct {
	ID            uuid.UUID `json:"id"`
	SellerID      int64     `json:"seller_id"`
	Category      string    `json:"category"`
	Payload       string    `json:"payload"`
	DurationHours int32     `json:"duration_hours"`
	Price         int64     `json:"price_micros"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	ListingID   uuid.UUID  `json:"listing_id"`
	BuyerID     int64      `json:"buyer_id"`
	SellerID    int64      `json:"seller_id"`
	Amount      int64      `json:"amount_micros"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Counterparty returns the other side of the transaction, or false when
// accountID did not take part in it.
func (t Transaction) Counterparty(accountID int64) (int64, bool) {
	switch accountID {
	case t.BuyerID:
		return t.SellerID, true
	case t.SellerID:
		return t.BuyerID, true
	default:
		return 0, false
	}
}

type Dispute struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	InitiatorID   int64      `json:"initiator_id"`
	BuyerID       int64      `json:"buyer_id"`
	SellerID      int64      `json:"seller_id"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Winner        *string    `json:"winner,omitempty"`
	ResolvedBy    *int64     `json:"resolved_by,omitempty"`
	Resolution    *string    `json:"resolution,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type PromoCode struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	Amount      int64      `json:"amount_micros"`
	MaxUses     int32      `json:"max_uses"`
	CurrentUses int32      `json:"current_uses"`
	Active      bool       `json:"active"`
	CreatedBy   int64      `json:"created_by"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RedeemedBy  *int64     `json:"redeemed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type PromoRedemption struct {
	ID        uuid.UUID `json:"id"`
	PromoID   uuid.UUID `json:"promo_id"`
	AccountID int64     `json:"account_id"`
	Amount    int64     `json:"amount_micros"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ReviewerID    int64     `json:"reviewer_id"`
	ReviewedID    int64     `json:"reviewed_id"`
	Rating        int32     `json:"rating"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}

type Entry struct {
	ID          uuid.UUID `json:"id"`
	AccountID   int64     `json:"account_id"`
	Amount      int64     `json:"amount_micros"`
	Direction   string    `json:"direction"` // "debit" or "credit"
	Kind        string    `json:"kind"`
	ReferenceID uuid.UUID `json:"reference_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Deposit struct {
	ID        uuid.UUID  `json:"id"`
	AccountID int64      `json:"account_id"`
	Amount    int64      `json:"amount_micros"`
	InvoiceID string     `json:"invoice_id"`
	PayURL    string     `json:"pay_url"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type Payout struct {
	ID            uuid.UUID `json:"id"`
	AccountID     int64     `json:"account_id"`
	Amount        int64     `json:"amount_micros"`
	Status        string    `json:"status"`
	SettlementRef *string   `json:"settlement_ref,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type AuditEntry struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	Action     string    `json:"action"`
	PrevState  *string   `json:"prev_state,omitempty"`
	NextState  *string   `json:"next_state,omitempty"`
	Metadata   []byte    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
