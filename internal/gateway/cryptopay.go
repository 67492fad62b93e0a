package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// CryptoPayConfig configures the Crypto Pay API client.
type CryptoPayConfig struct {
	BaseURL    string
	Token      string
	Asset      string
	InvoiceTTL time.Duration
	// TransferRetries bounds retries of a transfer after a transport error.
	TransferRetries uint64
}

// CryptoPayClient talks to the Crypto Pay API.
type CryptoPayClient struct {
	cfg  CryptoPayConfig
	http *http.Client
}

func NewCryptoPayClient(cfg CryptoPayConfig, httpClient *http.Client) *CryptoPayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.InvoiceTTL <= 0 {
		cfg.InvoiceTTL = time.Hour
	}
	if cfg.Asset == "" {
		cfg.Asset = "USDT"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CryptoPayClient{cfg: cfg, http: httpClient}
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

func (c *CryptoPayClient) CreateInvoice(ctx context.Context, amount int64, description, payload string) (Invoice, error) {
	params := map[string]any{
		"asset":       c.cfg.Asset,
		"amount":      domain.FormatMicros(amount),
		"description": description,
		"payload":     payload,
		"expires_in":  int(c.cfg.InvoiceTTL.Seconds()),
	}
	var result struct {
		InvoiceID     int64  `json:"invoice_id"`
		PayURL        string `json:"pay_url"`
		BotInvoiceURL string `json:"bot_invoice_url"`
	}
	if err := c.call(ctx, "createInvoice", params, &result); err != nil {
		return Invoice{}, err
	}
	url := result.BotInvoiceURL
	if url == "" {
		url = result.PayURL
	}
	return Invoice{ID: strconv.FormatInt(result.InvoiceID, 10), PayURL: url}, nil
}

// Transfer retries transport failures with exponential backoff; spend_id
// keeps a retried transfer from paying twice.
func (c *CryptoPayClient) Transfer(ctx context.Context, userID int64, amount int64, spendID string) (string, error) {
	params := map[string]any{
		"user_id":  userID,
		"asset":    c.cfg.Asset,
		"amount":   domain.FormatMicros(amount),
		"spend_id": spendID,
		"comment":  "Withdrawal",
	}

	var ref string
	op := func() error {
		var result struct {
			TransferID int64 `json:"transfer_id"`
		}
		err := c.call(ctx, "transfer", params, &result)
		if err != nil {
			if IsRejection(err) {
				return backoff.Permanent(err)
			}
			zap.L().Warn("crypto pay transfer attempt failed", zap.String("spend_id", spendID), zap.Error(err))
			return err
		}
		ref = strconv.FormatInt(result.TransferID, 10)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.TransferRetries), ctx)); err != nil {
		return "", err
	}
	return ref, nil
}

// call posts params to {base}/{method}. Transport failures and 5xx responses
// have an unknown outcome and wrap domain.ErrProviderUnavailable; explicit
// refusals come back as *ProviderError.
func (c *CryptoPayClient) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Crypto-Pay-API-Token", c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", domain.ErrProviderUnavailable, method, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s returned http %d", domain.ErrProviderUnavailable, method, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &ProviderError{Method: method, Status: resp.StatusCode, Name: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("%w: decode %s response: %v", domain.ErrProviderUnavailable, method, err)
	}
	if !env.OK || resp.StatusCode >= http.StatusBadRequest {
		pe := &ProviderError{Method: method, Status: resp.StatusCode, Name: "UNKNOWN_ERROR"}
		if env.Error != nil {
			pe.Code = env.Error.Code
			pe.Name = env.Error.Name
		}
		return pe
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: decode %s result: %v", domain.ErrProviderUnavailable, method, err)
	}
	return nil
}
