package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
)

const mockInvoiceBase = 100000

// MockProvider simulates the payment provider for local runs and tests.
// It is deterministic unless FailureRate or Latency are set.
type MockProvider struct {
	// FailureRate is the probability (0.0 to 1.0) that a transfer is rejected.
	FailureRate float64
	// Latency is added to every call to mimic a slow network.
	Latency time.Duration
	// BaseURL prefixes generated pay URLs.
	BaseURL string

	mu        sync.Mutex
	rng       *rand.Rand
	invoices  int
	transfers map[string]string
}

// NewMockProvider creates a MockProvider that always succeeds.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		BaseURL:   "https://pay.mock.local/invoice",
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		transfers: map[string]string{},
	}
}

func (m *MockProvider) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Latency):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: mock call canceled: %v", domain.ErrProviderUnavailable, ctx.Err())
	}
}

func (m *MockProvider) CreateInvoice(ctx context.Context, amount int64, description, payload string) (Invoice, error) {
	if err := m.wait(ctx); err != nil {
		return Invoice{}, err
	}
	if amount <= 0 {
		return Invoice{}, &ProviderError{Method: "createInvoice", Status: 400, Code: 400, Name: "AMOUNT_INVALID"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices++
	id := strconv.Itoa(mockInvoiceBase + m.invoices)
	return Invoice{ID: id, PayURL: m.BaseURL + "/" + id}, nil
}

// Transfer returns the same reference for a repeated spendID, like the real API.
func (m *MockProvider) Transfer(ctx context.Context, userID int64, amount int64, spendID string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if ref, ok := m.transfers[spendID]; ok {
		return ref, nil
	}
	if m.FailureRate > 0 && m.rng.Float64() < m.FailureRate {
		return "", &ProviderError{Method: "transfer", Status: 400, Code: 400, Name: "INSUFFICIENT_FUNDS"}
	}

	// Format: MOCK-YYYYMMDD-HHMMSS-XXXXX
	ref := fmt.Sprintf("MOCK-%s-%05d", time.Now().Format("20060102-150405"), m.rng.Intn(100000))
	m.transfers[spendID] = ref
	return ref, nil
}
