package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/models"

	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id       TEXT PRIMARY KEY,
	amount_minor   INTEGER NOT NULL,
	currency       TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	items          TEXT,
	status         TEXT NOT NULL,
	transaction_id TEXT,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
`

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file and ensures the
// schema exists. WAL keeps readers unblocked during writes and _txlock=immediate
// takes the write lock at BEGIN, so a transition transaction never upgrades
// mid-flight.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, order *models.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			order_id, amount_minor, currency, description, items,
			status, transaction_id, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?)
	`,
		order.ID,
		order.AmountMinor,
		order.Currency,
		order.Description,
		nullableBytes(order.Items),
		string(order.Status),
		order.TransactionID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, amount_minor, currency, description, items,
			status, transaction_id, created_at, updated_at
		FROM orders WHERE order_id=?
	`, id)
	return scanSQLiteOrder(row.Scan)
}

func (s *SQLiteStore) Transition(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, transactionID *string) (TransitionOutcome, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")

	args := []any{string(to), transactionID, time.Now().UTC(), id}
	for _, st := range from {
		args = append(args, string(st))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TransitionNotFound, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status=?, transaction_id=COALESCE(transaction_id, ?), updated_at=?
		WHERE order_id=? AND status IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return TransitionNotFound, fmt.Errorf("transition order: %w", err)
	}

	outcome := TransitionApplied
	affected, err := res.RowsAffected()
	if err != nil {
		return TransitionNotFound, fmt.Errorf("transition order: %w", err)
	}
	if affected == 0 {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE order_id=?`, id).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			outcome = TransitionNotFound
		case err != nil:
			return TransitionNotFound, fmt.Errorf("classify transition: %w", err)
		default:
			outcome = TransitionAlreadySettled
		}
	}

	if err := tx.Commit(); err != nil {
		return TransitionNotFound, fmt.Errorf("commit transition: %w", err)
	}
	return outcome, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		order, err := scanSQLiteOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func scanSQLiteOrder(scan func(...any) error) (*models.Order, error) {
	var order models.Order
	var status string
	var items, txID sql.NullString

	err := scan(
		&order.ID,
		&order.AmountMinor,
		&order.Currency,
		&order.Description,
		&items,
		&status,
		&txID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	order.Status = models.OrderStatus(status)
	if items.Valid {
		order.Items = []byte(items.String)
	}
	if txID.Valid {
		order.TransactionID = &txID.String
	}
	return &order, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
