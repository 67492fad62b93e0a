package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the external payment provider used for deposits and withdrawals.
type Provider interface {
	// CreateInvoice registers a payable invoice. payload is echoed back in
	// the payment confirmation webhook.
	CreateInvoice(ctx context.Context, amount int64, description, payload string) (Invoice, error)
	// Transfer sends amount to the platform user. spendID makes retries
	// idempotent at the provider. Returns the provider's settlement id.
	Transfer(ctx context.Context, userID int64, amount int64, spendID string) (string, error)
}

// Invoice is a created deposit invoice.
type Invoice struct {
	ID     string
	PayURL string
}

// ProviderError is a definite refusal: the provider processed the request and
// said no, so nothing was paid.
type ProviderError struct {
	Method string
	Status int
	Code   int
	Name   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s rejected by provider: %s (code %d, http %d)", e.Method, e.Name, e.Code, e.Status)
}

// IsRejection reports whether err is a definite refusal rather than an unknown outcome.
func IsRejection(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
