// Package paystack wraps the subset of the Paystack REST API the payments
// service depends on: initializing hosted-checkout transactions and verifying
// a transaction's authoritative status.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/datamart-payments-ledger/internal/config"
)

// ErrUpstream indicates the provider was unreachable or answered with a
// server-side failure. The deposit stays pending; callers may retry.
var ErrUpstream = errors.New("payment provider unavailable")

// TransactionStatus values reported by the provider's verify endpoint.
const (
	TxStatusSuccess   = "success"
	TxStatusFailed    = "failed"
	TxStatusAbandoned = "abandoned"
	TxStatusPending   = "pending"
)

// Checkout is the hosted payment page handle returned on initialization.
type Checkout struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction is the provider's authoritative view of a charge.
type Transaction struct {
	Reference string     `json:"reference"`
	Status    string     `json:"status"`
	Amount    int64      `json:"amount"` // Minor units (pesewas)
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	Channel   string     `json:"channel,omitempty"`
}

// HTTPDoer wraps http.Client for testability
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Paystack API
type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  HTTPDoer
	logger      *slog.Logger
}

// NewClient creates a Paystack API client with a bounded request timeout.
func NewClient(logger *slog.Logger, cfg *config.PaystackConfig) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransaction creates a hosted checkout session for the given
// deposit. The reference correlates the session with our pending ledger entry.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount int64, currency, reference string) (*Checkout, error) {
	body := map[string]interface{}{
		"email":     email,
		"amount":    amount,
		"currency":  currency,
		"reference": reference,
	}
	if c.callbackURL != "" {
		body["callback_url"] = c.callbackURL
	}

	var checkout Checkout
	if err := c.post(ctx, "/transaction/initialize", body, &checkout); err != nil {
		return nil, err
	}

	c.logger.Info("Initialized provider checkout", "reference", reference, "amount", amount)
	return &checkout, nil
}

// VerifyTransaction queries the provider for the authoritative status of a
// charge. Used by the verification poller and the background reconciler when
// the webhook has not arrived.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	var tx Transaction
	if err := c.get(ctx, "/transaction/verify/"+reference, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Provider request failed", "path", req.URL.Path, "error", err)
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUpstream, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Warn("Provider returned server error", "path", req.URL.Path, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !envelope.Status {
		return fmt.Errorf("provider rejected request: %s (status %d)", envelope.Message, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode provider response data: %w", err)
		}
	}
	return nil
}
