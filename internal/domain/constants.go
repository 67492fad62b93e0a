package domain

const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"

	// Entry kinds. Purchase and refund move money between two accounts and
	// must net to zero; the rest inject or remove money at the platform edge.
	EntryKindPurchase   = "purchase"
	EntryKindRefund     = "refund"
	EntryKindDeposit    = "deposit"
	EntryKindPromo      = "promo"
	EntryKindAdjustment = "adjustment"
	EntryKindPayout     = "payout"

	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusDisputed  = "disputed"
	TxStatusRefunded  = "refunded"
	TxStatusResolved  = "resolved"

	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
	DisputeStatusClosed   = "closed"

	WinnerBuyer  = "buyer"
	WinnerSeller = "seller"

	DepositStatusPending = "pending"
	DepositStatusPaid    = "paid"

	// Payout statuses
	PayoutStatusPending      = "PENDING"
	PayoutStatusProcessing   = "PROCESSING"
	PayoutStatusCompleted    = "COMPLETED"
	PayoutStatusFailed       = "FAILED"
	PayoutStatusManualReview = "MANUAL_REVIEW"

	ListingOrderNewest    = "newest"
	ListingOrderPriceAsc  = "price_asc"
	ListingOrderPriceDesc = "price_desc"

	MinRentalHours = 1
	MaxRentalHours = 168

	// DefaultRating is shown until an account receives its first review.
	DefaultRating = 5.0
)

// ListingCategories are the services a rented number can be used with.
var ListingCategories = []string{
	"whatsapp",
	"telegram",
	"viber",
	"vkontakte",
	"facebook",
	"instagram",
	"twitter",
	"snapchat",
	"tiktok",
	"google",
}
