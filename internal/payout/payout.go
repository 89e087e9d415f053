// Package payout sends collected funds onward to vendors through the payment
// provider's multivendor transfer endpoint.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/pincrypt"
)

// ErrMissingCredential is returned when the transfer PIN or the API key is
// not configured; the provider rejects unauthenticated transfers, so nothing
// is sent.
var ErrMissingCredential = errors.New("payout: transfer credentials are not configured")

// SplitMismatchError reports a vendor split that does not add up to the total
// being disbursed. The transfer is refused locally; partial or padded splits
// never reach the provider.
type SplitMismatchError struct {
	Total int64
	Sum   int64
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("payout: vendor split sums to %d, total is %d", e.Sum, e.Total)
}

// Error describes a transfer the provider rejected or that failed in flight.
type Error struct {
	Status int
	Reason string
	Body   string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("payout: %s", e.Reason)
	}
	return fmt.Sprintf("payout: %s (status %d)", e.Reason, e.Status)
}

// Vendor is one recipient of a disbursement.
type Vendor struct {
	AccountNumber string `json:"account_number"`
	AmountMinor   int64  `json:"amount"`
}

// Receipt is the provider's acknowledgement of a completed transfer.
type Receipt struct {
	TransactionID string
	Message       string
}

type Config struct {
	BaseURL string
	APIKey  string
	PIN     string
	Cipher  pincrypt.Cipher
	Vendors []Vendor
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	pin     string
	cipher  pincrypt.Cipher
	vendors []Vendor
	httpc   *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		pin:     cfg.PIN,
		cipher:  cfg.Cipher,
		vendors: cfg.Vendors,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Vendors returns the configured default split.
func (c *Client) Vendors() []Vendor {
	return c.vendors
}

// Distribute transfers totalMinor across the vendor split. An empty split
// falls back to the configured vendors. The split must sum to the total
// exactly; the PIN is encrypted per transfer and never sent in the clear.
func (c *Client) Distribute(ctx context.Context, totalMinor int64, vendors []Vendor) (*Receipt, error) {
	if len(vendors) == 0 {
		vendors = c.vendors
	}

	var sum int64
	for _, v := range vendors {
		sum += v.AmountMinor
	}
	if sum != totalMinor {
		return nil, &SplitMismatchError{Total: totalMinor, Sum: sum}
	}

	if c.pin == "" || c.apiKey == "" {
		return nil, ErrMissingCredential
	}
	encryptedPIN, err := c.cipher.Encrypt(c.pin)
	if err != nil {
		return nil, fmt.Errorf("encrypt pin: %w", err)
	}

	body, err := json.Marshal(transferRequest{PIN: encryptedPIN, Vendors: vendors})
	if err != nil {
		return nil, fmt.Errorf("encode transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions/multivendor", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "API-KEY "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("transfer request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Status: resp.StatusCode,
			Reason: "transfer rejected",
			Body:   readErrorBody(resp.Body),
		}
	}

	var parsed transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Status: resp.StatusCode, Reason: fmt.Sprintf("decode transfer response: %v", err)}
	}
	if !parsed.Success {
		return nil, &Error{Status: resp.StatusCode, Reason: "transfer reported failure", Body: parsed.Message}
	}
	return &Receipt{TransactionID: parsed.TransactionID, Message: parsed.Message}, nil
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

type transferRequest struct {
	PIN     string   `json:"pin"`
	Vendors []Vendor `json:"vendors"`
}

type transferResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}
