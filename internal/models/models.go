package models

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "PENDING"
	OrderPaid    OrderStatus = "PAID"
	OrderFailed  OrderStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderFailed
}

type Order struct {
	ID            string          `json:"order_id"`
	AmountMinor   int64           `json:"amount"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description,omitempty"`
	Items         json.RawMessage `json:"items,omitempty"`
	Status        OrderStatus     `json:"status"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
