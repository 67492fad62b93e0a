package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller should react to it.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindForbidden   Kind = "forbidden"
	KindBusiness    Kind = "business"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// Error is a sentinel error with a stable code and a kind.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

var (
	ErrInvalidAmount   = newError(KindValidation, "invalid-amount", "amount must be greater than zero")
	ErrInvalidPrice    = newError(KindValidation, "invalid-price", "price is below the minimum listing price")
	ErrInvalidRating   = newError(KindValidation, "invalid-rating", "rating must be between 1 and 5")
	ErrInvalidCode     = newError(KindValidation, "invalid-code", "promo code is malformed")
	ErrInvalidDecision = newError(KindValidation, "invalid-decision", "decision is not recognised")
	ErrDraftIncomplete = newError(KindValidation, "draft-incomplete", "listing draft is missing required fields")

	ErrAccountNotFound     = newError(KindNotFound, "account-not-found", "account not found")
	ErrListingNotFound     = newError(KindNotFound, "listing-not-found", "listing not found")
	ErrTransactionNotFound = newError(KindNotFound, "transaction-not-found", "transaction not found")
	ErrDisputeNotFound     = newError(KindNotFound, "dispute-not-found", "dispute not found")
	ErrCodeNotFound        = newError(KindNotFound, "code-not-found", "promo code not found")
	ErrDepositNotFound     = newError(KindNotFound, "deposit-not-found", "deposit not found")
	ErrPayoutNotFound      = newError(KindNotFound, "payout-not-found", "payout not found")

	ErrListingUnavailable      = newError(KindConflict, "listing-unavailable", "listing is no longer available")
	ErrAlreadyDisputed         = newError(KindConflict, "already-disputed", "transaction already has an open dispute")
	ErrNotDisputable           = newError(KindConflict, "not-disputable", "transaction can no longer be disputed")
	ErrNotOpen                 = newError(KindConflict, "not-open", "dispute is not open")
	ErrCodeExpired             = newError(KindConflict, "code-expired", "promo code has expired")
	ErrCodeExhausted           = newError(KindConflict, "code-exhausted", "promo code has no uses left")
	ErrCodeConflict            = newError(KindConflict, "code-conflict", "promo code already exists")
	ErrDuplicateReview         = newError(KindConflict, "duplicate-review", "transaction already reviewed by this account")
	ErrInvalidTransition       = newError(KindConflict, "invalid-transition", "transaction status transition is not allowed")
	ErrDepositPayloadMismatch  = newError(KindConflict, "deposit-mismatch", "payment does not match the pending deposit")
	ErrPayoutNotInManualReview = newError(KindConflict, "payout-not-in-manual-review", "payout is not in manual review")

	ErrNotAdmin         = newError(KindForbidden, "not-admin", "admin privileges required")
	ErrNotParticipant   = newError(KindForbidden, "not-participant", "account is not a participant of this transaction")
	ErrAccountBlocked   = newError(KindForbidden, "account-blocked", "account is blocked")
	ErrInvalidSignature = newError(KindForbidden, "invalid-signature", "invalid signature")

	ErrInsufficientFunds = newError(KindBusiness, "insufficient-funds", "insufficient funds")

	ErrProviderUnavailable = newError(KindUnavailable, "provider-unavailable", "payment provider unavailable, try again later")
)

// ValidationError reports a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// KindOf reports the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation
	}
	return KindInternal
}

// CodeOf returns the stable code of a classified error, or "internal".
func CodeOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return "invalid-" + validationErr.Field
	}
	return "internal"
}
