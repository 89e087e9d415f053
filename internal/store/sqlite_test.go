package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func pendingOrder(id string) *models.Order {
	now := time.Now().UTC()
	return &models.Order{
		ID:          id,
		AmountMinor: 15000,
		Currency:    "AFN",
		Description: "test order",
		Items:       json.RawMessage(`[{"name":"test order","amount":15000}]`),
		Status:      models.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSQLiteCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := pendingOrder("ORD-1")
	if err := s.Create(ctx, want); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != want.ID || got.AmountMinor != want.AmountMinor || got.Currency != want.Currency {
		t.Errorf("got order %+v, want %+v", got, want)
	}
	if got.Status != models.OrderPending {
		t.Errorf("got status %q, want %q", got.Status, models.OrderPending)
	}
	if got.TransactionID != nil {
		t.Errorf("got transaction id %q, want none", *got.TransactionID)
	}
	if string(got.Items) != string(want.Items) {
		t.Errorf("got items %s, want %s", got.Items, want.Items)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("timestamps did not round-trip: got %v/%v, want %v/%v",
			got.CreatedAt, got.UpdatedAt, want.CreatedAt, want.UpdatedAt)
	}
}

func TestSQLiteCreateDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pendingOrder("ORD-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, pendingOrder("ORD-1")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("got error %v, want ErrDuplicateID", err)
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get(context.Background(), "ORD-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got error %v, want ErrNotFound", err)
	}
}

func TestSQLiteTransition(t *testing.T) {
	fromPending := []models.OrderStatus{models.OrderPending}
	txID := "TX-1"

	tests := []struct {
		name    string
		seed    bool
		prepare models.OrderStatus
		to      models.OrderStatus
		want    TransitionOutcome
	}{
		{name: "pending to paid", seed: true, prepare: models.OrderPending, to: models.OrderPaid, want: TransitionApplied},
		{name: "pending to failed", seed: true, prepare: models.OrderPending, to: models.OrderFailed, want: TransitionApplied},
		{name: "paid stays paid", seed: true, prepare: models.OrderPaid, to: models.OrderFailed, want: TransitionAlreadySettled},
		{name: "failed stays failed", seed: true, prepare: models.OrderFailed, to: models.OrderPaid, want: TransitionAlreadySettled},
		{name: "unknown order", seed: false, to: models.OrderPaid, want: TransitionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()

			if tt.seed {
				if err := s.Create(ctx, pendingOrder("ORD-1")); err != nil {
					t.Fatalf("create: %v", err)
				}
				if tt.prepare != models.OrderPending {
					if _, err := s.Transition(ctx, "ORD-1", fromPending, tt.prepare, nil); err != nil {
						t.Fatalf("prepare transition: %v", err)
					}
				}
			}

			got, err := s.Transition(ctx, "ORD-1", fromPending, tt.to, &txID)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if got != tt.want {
				t.Errorf("got outcome %v, want %v", got, tt.want)
			}

			if tt.seed {
				order, err := s.Get(ctx, "ORD-1")
				if err != nil {
					t.Fatalf("get: %v", err)
				}
				if got == TransitionApplied && order.Status != tt.to {
					t.Errorf("got status %q, want %q", order.Status, tt.to)
				}
				if got == TransitionAlreadySettled && order.Status != tt.prepare {
					t.Errorf("no-op changed status to %q, want %q", order.Status, tt.prepare)
				}
			}
		})
	}
}

func TestSQLiteTransitionKeepsFirstTransactionID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fromPending := []models.OrderStatus{models.OrderPending}

	if err := s.Create(ctx, pendingOrder("ORD-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	first := "TX-first"
	if _, err := s.Transition(ctx, "ORD-1", fromPending, models.OrderPaid, &first); err != nil {
		t.Fatalf("transition: %v", err)
	}

	second := "TX-second"
	out, err := s.Transition(ctx, "ORD-1", fromPending, models.OrderFailed, &second)
	if err != nil {
		t.Fatalf("repeat transition: %v", err)
	}
	if out != TransitionAlreadySettled {
		t.Fatalf("got outcome %v, want TransitionAlreadySettled", out)
	}

	order, err := s.Get(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if order.Status != models.OrderPaid {
		t.Errorf("got status %q, want %q", order.Status, models.OrderPaid)
	}
	if order.TransactionID == nil || *order.TransactionID != first {
		t.Errorf("got transaction id %v, want %q", order.TransactionID, first)
	}
	if !order.UpdatedAt.After(order.CreatedAt) {
		t.Errorf("updated_at %v not after created_at %v", order.UpdatedAt, order.CreatedAt)
	}
}

func TestSQLiteConcurrentTransitionsSettleOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fromPending := []models.OrderStatus{models.OrderPending}

	if err := s.Create(ctx, pendingOrder("ORD-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	const attempts = 10
	type result struct {
		target  models.OrderStatus
		outcome TransitionOutcome
	}
	results := make([]result, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := models.OrderPaid
			if i%2 == 1 {
				target = models.OrderFailed
			}
			txID := "TX-race"
			out, err := s.Transition(ctx, "ORD-1", fromPending, target, &txID)
			if err != nil {
				t.Errorf("transition %d: %v", i, err)
				return
			}
			results[i] = result{target: target, outcome: out}
		}(i)
	}
	wg.Wait()

	applied := 0
	var winner models.OrderStatus
	for _, r := range results {
		if r.outcome == TransitionApplied {
			applied++
			winner = r.target
		}
	}
	if applied != 1 {
		t.Fatalf("got %d applied transitions, want exactly 1", applied)
	}

	order, err := s.Get(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if order.Status != winner {
		t.Errorf("got final status %q, want winner %q", order.Status, winner)
	}
	if !order.Status.Terminal() {
		t.Errorf("final status %q is not terminal", order.Status)
	}
}

func TestSQLiteReopenSeesSettledOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	if err := s.Create(ctx, pendingOrder("ORD-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	txID := "TX-1"
	if _, err := s.Transition(ctx, "ORD-1", []models.OrderStatus{models.OrderPending}, models.OrderPaid, &txID); err != nil {
		t.Fatalf("transition: %v", err)
	}
	s.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite store: %v", err)
	}
	defer reopened.Close()

	order, err := reopened.Get(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if order.Status != models.OrderPaid {
		t.Errorf("got status %q after reopen, want %q", order.Status, models.OrderPaid)
	}
	if order.TransactionID == nil || *order.TransactionID != txID {
		t.Errorf("got transaction id %v after reopen, want %q", order.TransactionID, txID)
	}
}

func TestSQLiteList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		o := pendingOrder(id)
		if err := s.Create(ctx, o); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	orders, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3", len(orders))
	}
}
