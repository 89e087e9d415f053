package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TheHadiAhmadi/hesabpay/internal/callback"
	"github.com/TheHadiAhmadi/hesabpay/internal/events"
	"github.com/TheHadiAhmadi/hesabpay/internal/gateway"
	"github.com/TheHadiAhmadi/hesabpay/internal/payout"
	"github.com/TheHadiAhmadi/hesabpay/internal/services"
	"github.com/TheHadiAhmadi/hesabpay/internal/store"

	"go.uber.org/zap"
)

// TestPaymentLifecycle walks the whole flow with a real store and a real
// gateway client against a stubbed provider: create a payment, follow the
// callback URLs the provider was given, and check the order settles exactly
// once.
func TestPaymentLifecycle(t *testing.T) {
	repo, err := store.OpenSQLite(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(repo.Close)

	signer := callback.NewSigner("cb-secret")
	hub := events.NewHub()
	svc := &services.PaymentService{
		Repo:     repo,
		Signer:   signer,
		Events:   hub,
		Currency: "AFN",
		Log:      zap.NewNop().Sugar(),
	}
	handler := NewHandler(svc, &stubDisburser{receipt: &payout.Receipt{}}, hub, adminHash(t), zap.NewNop().Sugar())
	app := httptest.NewServer(NewServer(handler).Router)
	defer app.Close()

	var successURL, failureURL string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Success string `json:"success_callback_url"`
			Failure string `json:"failure_callback_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode session request: %v", err)
		}
		successURL, failureURL = req.Success, req.Failure
		w.Write([]byte(`{"url":"https://pay.example/checkout/1"}`))
	}))
	defer provider.Close()

	svc.Gateway = gateway.NewClient(gateway.Config{
		BaseURL:    provider.URL,
		APIKey:     "key-1",
		Email:      "merchant@example.com",
		Currency:   "AFN",
		AppBaseURL: app.URL,
		Signer:     signer,
	})

	// create the payment
	resp, err := http.Post(app.URL+"/payments/create", "application/json",
		strings.NewReader(`{"amount":15000,"description":"two widgets"}`))
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	var created struct {
		Success    bool   `json:"success"`
		OrderID    string `json:"order_id"`
		Status     string `json:"status"`
		PaymentURL string `json:"payment_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create payment returned %d", resp.StatusCode)
	}
	if !created.Success || created.Status != "PENDING" || created.PaymentURL != "https://pay.example/checkout/1" {
		t.Fatalf("create response %+v", created)
	}
	if successURL == "" || failureURL == "" {
		t.Fatal("provider did not receive callback urls")
	}
	if !strings.HasPrefix(successURL, app.URL) {
		t.Fatalf("success callback url %q does not point at the app", successURL)
	}

	// the customer pays and the provider redirects through the success url
	page := getBody(t, successURL+"&transaction_id=TX-77")
	if !strings.Contains(page, "Payment Successful") {
		t.Errorf("success page: %s", page)
	}

	order := fetchOrder(t, app.URL, created.OrderID)
	if order.Status != "PAID" {
		t.Fatalf("got status %q after success callback, want PAID", order.Status)
	}
	if order.TransactionID != "TX-77" {
		t.Errorf("got transaction id %q, want TX-77", order.TransactionID)
	}

	// the provider retries, then delivers a stale failure; neither may win
	getBody(t, successURL+"&transaction_id=TX-78")
	stale := getBody(t, failureURL)
	if !strings.Contains(stale, "Payment Failed") {
		t.Errorf("failure page: %s", stale)
	}

	order = fetchOrder(t, app.URL, created.OrderID)
	if order.Status != "PAID" {
		t.Errorf("got status %q after stale callbacks, want PAID", order.Status)
	}
	if order.TransactionID != "TX-77" {
		t.Errorf("got transaction id %q after stale callbacks, want TX-77", order.TransactionID)
	}
}

func getBody(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s returned %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

type orderView struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func fetchOrder(t *testing.T, baseURL, id string) orderView {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/orders/"+id, nil)
	if err != nil {
		t.Fatalf("build order request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get order returned %d", resp.StatusCode)
	}
	var order orderView
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	return order
}
