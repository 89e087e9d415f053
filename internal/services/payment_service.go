package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/callback"
	"github.com/TheHadiAhmadi/hesabpay/internal/events"
	"github.com/TheHadiAhmadi/hesabpay/internal/gateway"
	"github.com/TheHadiAhmadi/hesabpay/internal/models"
	"github.com/TheHadiAhmadi/hesabpay/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount    = errors.New("amount must be a positive integer")
	ErrInvalidItems     = errors.New("items must be a json array")
	ErrMissingOrderID   = errors.New("missing order id")
	ErrInvalidSignature = errors.New("callback signature mismatch")
)

// SessionCreator opens a hosted checkout session for an order.
type SessionCreator interface {
	CreateSession(ctx context.Context, order *models.Order) (*gateway.Session, error)
}

type PaymentService struct {
	Repo     store.OrderRepository
	Gateway  SessionCreator
	Signer   *callback.Signer
	Events   *events.Hub
	Currency string
	Log      *zap.SugaredLogger
}

// CreatePaymentInput is the caller-supplied part of a new payment. Items, when
// given, must be a JSON array of line items and is forwarded to the provider
// as-is.
type CreatePaymentInput struct {
	AmountMinor int64
	Description string
	Items       json.RawMessage
}

// CreatedPayment pairs the stored order with the checkout URL the customer
// must be sent to.
type CreatedPayment struct {
	Order      *models.Order
	PaymentURL string
}

// CreatePayment stores a PENDING order and opens a checkout session for it.
// When the provider call fails the order is kept as-is: the customer never got
// a payment page, so no callback will ever settle it, and it stays visible as
// PENDING in the diagnostic listing.
func (s PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatedPayment, error) {
	if in.AmountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(in.Items) > 0 && !isJSONArray(in.Items) {
		return nil, ErrInvalidItems
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:          "ORD-" + uuid.NewString(),
		AmountMinor: in.AmountMinor,
		Currency:    s.Currency,
		Description: in.Description,
		Items:       in.Items,
		Status:      models.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Create(ctx, order); err != nil {
		return nil, err
	}

	session, err := s.Gateway.CreateSession(ctx, order)
	if err != nil {
		s.Log.Errorw("create session failed", "order_id", order.ID, "error", err)
		return nil, err
	}

	s.Log.Infow("payment created", "order_id", order.ID, "amount", order.AmountMinor, "currency", order.Currency)
	return &CreatedPayment{Order: order, PaymentURL: session.PaymentURL}, nil
}

// ReconcileSuccess settles an order as PAID after the provider redirected the
// customer to the success callback. Only PENDING orders transition; repeated
// or late callbacks are no-ops, as are callbacks for unknown orders.
func (s PaymentService) ReconcileSuccess(ctx context.Context, orderID, transactionID, sig string) (store.TransitionOutcome, error) {
	return s.reconcile(ctx, callback.ScopeSuccess, orderID, transactionID, sig, models.OrderPaid)
}

// ReconcileFailure settles an order as FAILED after the failure callback.
func (s PaymentService) ReconcileFailure(ctx context.Context, orderID, sig string) (store.TransitionOutcome, error) {
	return s.reconcile(ctx, callback.ScopeFailure, orderID, "", sig, models.OrderFailed)
}

func (s PaymentService) reconcile(ctx context.Context, scope, orderID, transactionID, sig string, to models.OrderStatus) (store.TransitionOutcome, error) {
	if orderID == "" {
		return store.TransitionNotFound, ErrMissingOrderID
	}
	if !s.Signer.Verify(scope, orderID, sig) {
		s.Log.Warnw("callback signature rejected", "order_id", orderID, "scope", scope)
		return store.TransitionNotFound, ErrInvalidSignature
	}

	var txID *string
	if transactionID != "" {
		txID = &transactionID
	}

	outcome, err := s.Repo.Transition(ctx, orderID, []models.OrderStatus{models.OrderPending}, to, txID)
	if err != nil {
		return outcome, err
	}

	switch outcome {
	case store.TransitionApplied:
		s.Log.Infow("order settled", "order_id", orderID, "status", to, "transaction_id", transactionID)
		s.Events.Publish(events.OrderEvent{
			OrderID:       orderID,
			Status:        to,
			TransactionID: transactionID,
			OccurredAt:    time.Now().UTC(),
		})
	case store.TransitionAlreadySettled:
		s.Log.Infow("repeat callback ignored", "order_id", orderID, "scope", scope)
	case store.TransitionNotFound:
		s.Log.Warnw("callback for unknown order", "order_id", orderID, "scope", scope)
	}
	return outcome, nil
}

func (s PaymentService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.Repo.Get(ctx, orderID)
}

func (s PaymentService) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return s.Repo.List(ctx)
}

func isJSONArray(raw json.RawMessage) bool {
	var items []json.RawMessage
	return json.Unmarshal(raw, &items) == nil
}
