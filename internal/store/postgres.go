package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TheHadiAhmadi/hesabpay/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, order *models.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, amount_minor, currency, description, items,
			status, transaction_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		order.ID,
		order.AmountMinor,
		order.Currency,
		order.Description,
		order.Items,
		order.Status,
		order.TransactionID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT order_id, amount_minor, currency, description, items,
			status, transaction_id, created_at, updated_at
		FROM orders WHERE order_id=$1
	`, id)
	return scanPgOrder(row)
}

func (s *PostgresStore) Transition(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, transactionID *string) (TransitionOutcome, error) {
	accepted := make([]string, 0, len(from))
	for _, st := range from {
		accepted = append(accepted, string(st))
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return TransitionNotFound, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, transaction_id=COALESCE(transaction_id, $3), updated_at=now()
		WHERE order_id=$1 AND status = ANY($4)
	`, id, to, transactionID, accepted)
	if err != nil {
		return TransitionNotFound, fmt.Errorf("transition order: %w", err)
	}

	outcome := TransitionApplied
	if res.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE order_id=$1`, id).Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			outcome = TransitionNotFound
		case err != nil:
			return TransitionNotFound, fmt.Errorf("classify transition: %w", err)
		default:
			outcome = TransitionAlreadySettled
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return TransitionNotFound, fmt.Errorf("commit transition: %w", err)
	}
	return outcome, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT order_id, amount_minor, currency, description, items,
			status, transaction_id, created_at, updated_at
		FROM orders
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanPgOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

func scanPgOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	var txID sql.NullString

	err := row.Scan(
		&order.ID,
		&order.AmountMinor,
		&order.Currency,
		&order.Description,
		&order.Items,
		&order.Status,
		&txID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if txID.Valid {
		order.TransactionID = &txID.String
	}
	return &order, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
