package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/events"
	"github.com/TheHadiAhmadi/hesabpay/internal/gateway"
	"github.com/TheHadiAhmadi/hesabpay/internal/models"
	"github.com/TheHadiAhmadi/hesabpay/internal/payout"
	"github.com/TheHadiAhmadi/hesabpay/internal/services"
	"github.com/TheHadiAhmadi/hesabpay/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Disburser sends a collected total onward to a vendor split.
type Disburser interface {
	Distribute(ctx context.Context, totalMinor int64, vendors []payout.Vendor) (*payout.Receipt, error)
}

type Handler struct {
	Payments       *services.PaymentService
	Payout         Disburser
	Events         *events.Hub
	AdminTokenHash string
	Log            *zap.SugaredLogger
}

func NewHandler(payments *services.PaymentService, disburser Disburser, hub *events.Hub, adminTokenHash string, log *zap.SugaredLogger) *Handler {
	return &Handler{
		Payments:       payments,
		Payout:         disburser,
		Events:         hub,
		AdminTokenHash: adminTokenHash,
		Log:            log,
	}
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json body")
		return
	}

	created, err := h.Payments.CreatePayment(r.Context(), services.CreatePaymentInput{
		AmountMinor: req.Amount,
		Description: req.Description,
		Items:       req.Items,
	})
	if err != nil {
		var gwErr *gateway.Error
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			writeFailure(w, http.StatusBadRequest, "amount must be a positive integer")
		case errors.Is(err, services.ErrInvalidItems):
			writeFailure(w, http.StatusBadRequest, "items must be a json array")
		case errors.Is(err, gateway.ErrMissingAPIKey):
			writeFailure(w, http.StatusPreconditionFailed, "payment provider api key not configured")
		case errors.As(err, &gwErr):
			writeFailure(w, http.StatusBadGateway, "payment provider error: "+gwErr.Reason)
		default:
			writeFailure(w, http.StatusInternalServerError, "create payment failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, createPaymentResponse{
		Success:    true,
		OrderID:    created.Order.ID,
		Status:     string(created.Order.Status),
		PaymentURL: created.PaymentURL,
	})
}

// PaymentSuccess handles the provider redirect after a completed payment. The
// page renders the same way whether or not the order was found or already
// settled, so the endpoint cannot be probed for order existence.
func (h *Handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("order_id")

	if _, err := h.Payments.ReconcileSuccess(r.Context(), orderID, q.Get("transaction_id"), q.Get("sig")); err != nil {
		h.Log.Warnw("success callback not applied", "order_id", orderID, "error", err)
	}
	renderPage(w, successPage, orderID)
}

// PaymentFailure handles the provider redirect after a failed or cancelled
// payment attempt.
func (h *Handler) PaymentFailure(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("order_id")

	if _, err := h.Payments.ReconcileFailure(r.Context(), orderID, q.Get("sig")); err != nil {
		h.Log.Warnw("failure callback not applied", "order_id", orderID, "error", err)
	}
	renderPage(w, failurePage, orderID)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Payments.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list orders failed")
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.Payments.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get order failed")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) Disburse(w http.ResponseWriter, r *http.Request) {
	var req disburseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive integer")
		return
	}

	vendors := make([]payout.Vendor, 0, len(req.Vendors))
	for _, v := range req.Vendors {
		vendors = append(vendors, payout.Vendor{AccountNumber: v.AccountNumber, AmountMinor: v.Amount})
	}

	receipt, err := h.Payout.Distribute(r.Context(), req.Amount, vendors)
	if err != nil {
		var splitErr *payout.SplitMismatchError
		var payoutErr *payout.Error
		switch {
		case errors.As(err, &splitErr):
			writeError(w, http.StatusBadRequest, splitErr.Error())
		case errors.Is(err, payout.ErrMissingCredential):
			writeError(w, http.StatusPreconditionFailed, "transfer credentials not configured")
		case errors.As(err, &payoutErr):
			writeError(w, http.StatusBadGateway, "payment provider error: "+payoutErr.Reason)
		default:
			writeError(w, http.StatusInternalServerError, "disburse failed")
		}
		return
	}

	h.Log.Infow("disbursement sent", "amount", req.Amount, "vendors", len(vendors), "transaction_id", receipt.TransactionID)
	writeJSON(w, http.StatusOK, disburseResponse{
		TransactionID: receipt.TransactionID,
		Message:       receipt.Message,
	})
}

// requireAdmin guards the internal endpoints with a bearer token checked
// against the configured bcrypt hash. With no hash configured the endpoints
// are disabled outright; order inspection then goes through payctl.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.AdminTokenHash == "" {
			writeError(w, http.StatusForbidden, "admin endpoints are disabled")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(h.AdminTokenHash), []byte(token)) != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		OrderID:     order.ID,
		Amount:      order.AmountMinor,
		Currency:    order.Currency,
		Description: order.Description,
		Items:       order.Items,
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   order.UpdatedAt.Format(time.RFC3339),
	}
	if order.TransactionID != nil {
		resp.TransactionID = *order.TransactionID
	}
	return resp
}

type createPaymentRequest struct {
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	Items       json.RawMessage `json:"items"`
}

type createPaymentResponse struct {
	Success    bool   `json:"success"`
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url"`
}

type orderResponse struct {
	OrderID       string          `json:"order_id"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description,omitempty"`
	Items         json.RawMessage `json:"items,omitempty"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type disburseRequest struct {
	Amount  int64 `json:"amount"`
	Vendors []struct {
		AccountNumber string `json:"account_number"`
		Amount        int64  `json:"amount"`
	} `json:"vendors"`
}

type disburseResponse struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message,omitempty"`
}
