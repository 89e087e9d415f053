package store

import (
	"context"
	"errors"

	"github.com/TheHadiAhmadi/hesabpay/internal/models"
)

var (
	ErrDuplicateID = errors.New("order id already exists")
	ErrNotFound    = errors.New("order not found")
)

type TransitionOutcome int

const (
	// TransitionApplied means the order moved to the requested status.
	TransitionApplied TransitionOutcome = iota
	// TransitionAlreadySettled means the order exists but its current status
	// was not in the accepted set; the call is a no-op.
	TransitionAlreadySettled
	// TransitionNotFound means no order with that id exists; also a no-op.
	TransitionNotFound
)

func (o TransitionOutcome) String() string {
	switch o {
	case TransitionApplied:
		return "applied"
	case TransitionAlreadySettled:
		return "already_settled"
	case TransitionNotFound:
		return "not_found"
	}
	return "unknown"
}

// OrderRepository is the persistence contract for orders. Transition is a
// compare-and-set: it succeeds only while the current status is in from, and
// repeated or late calls report a no-op outcome instead of an error. Both
// implementations make the check-and-update atomic per order id, so concurrent
// callbacks for the same order resolve to exactly one terminal status.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	Transition(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, transactionID *string) (TransitionOutcome, error)
	List(ctx context.Context) ([]*models.Order, error)
	Close()
}
