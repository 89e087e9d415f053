// Package gateway is the client for the payment provider's hosted checkout.
// A session is opened per order and the customer finishes payment on the
// provider's page; settlement comes back through the callback endpoints baked
// into the session.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/callback"
	"github.com/TheHadiAhmadi/hesabpay/internal/models"
)

// ErrMissingAPIKey is returned when no API key is configured; nothing is sent
// to the provider in that case.
var ErrMissingAPIKey = errors.New("gateway: api key is not configured")

// Error describes a create-session attempt the provider rejected or that never
// produced a usable session. Status is zero when the request itself failed
// before an HTTP response arrived.
type Error struct {
	Status int
	Reason string
	Body   string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gateway: %s", e.Reason)
	}
	return fmt.Sprintf("gateway: %s (status %d)", e.Reason, e.Status)
}

// Session is a checkout session opened with the provider. The customer must
// be redirected to PaymentURL to pay.
type Session struct {
	PaymentURL string
}

type Config struct {
	BaseURL    string
	APIKey     string
	Email      string
	Currency   string
	AppBaseURL string
	Signer     *callback.Signer
	Timeout    time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	email      string
	currency   string
	appBaseURL string
	signer     *callback.Signer
	httpc      *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		email:      cfg.Email,
		currency:   cfg.Currency,
		appBaseURL: strings.TrimRight(cfg.AppBaseURL, "/"),
		signer:     cfg.Signer,
		httpc:      &http.Client{Timeout: timeout},
	}
}

// CreateSession opens a checkout session for the order. The order id rides
// along in both callback URLs, which is the only way settlement is later tied
// back to the order.
func (c *Client) CreateSession(ctx context.Context, order *models.Order) (*Session, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	items := order.Items
	if len(items) == 0 {
		items = c.syntheticItems(order)
	}

	body, err := json.Marshal(sessionRequest{
		Email:              c.email,
		Amount:             order.AmountMinor,
		Currency:           c.currency,
		Items:              items,
		SuccessCallbackURL: c.callbackURL(callback.ScopeSuccess, order.ID),
		FailureCallbackURL: c.callbackURL(callback.ScopeFailure, order.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment/create-session", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "API-KEY "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("create session request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Status: resp.StatusCode,
			Reason: "create session rejected",
			Body:   readErrorBody(resp.Body),
		}
	}

	var parsed sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Status: resp.StatusCode, Reason: fmt.Sprintf("decode session response: %v", err)}
	}
	if parsed.URL == "" {
		return nil, &Error{Status: resp.StatusCode, Reason: "session response has no payment url"}
	}
	return &Session{PaymentURL: parsed.URL}, nil
}

// callbackURL builds the redirect target the provider will send the customer
// to after the payment attempt, carrying the order id and, when verification
// is enabled, its signature.
func (c *Client) callbackURL(scope, orderID string) string {
	q := url.Values{"order_id": {orderID}}
	if c.signer != nil && c.signer.Enabled() {
		q.Set("sig", c.signer.Sign(scope, orderID))
	}
	return fmt.Sprintf("%s/payments/callback/%s?%s", c.appBaseURL, scope, q.Encode())
}

// syntheticItems builds a single line item for orders created without an
// itemised breakdown; the provider requires at least one item per session.
func (c *Client) syntheticItems(order *models.Order) json.RawMessage {
	name := order.Description
	if name == "" {
		name = "Order " + order.ID
	}
	items, _ := json.Marshal([]sessionItem{{Name: name, Amount: order.AmountMinor}})
	return items
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

type sessionRequest struct {
	Email              string          `json:"email,omitempty"`
	Amount             int64           `json:"amount"`
	Currency           string          `json:"currency"`
	Items              json.RawMessage `json:"items"`
	SuccessCallbackURL string          `json:"success_callback_url"`
	FailureCallbackURL string          `json:"failure_callback_url"`
}

type sessionItem struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

type sessionResponse struct {
	URL string `json:"url"`
}
