package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pedidosbot/core/logger"
	"log/slog"
)

// OrderRepo persists orders and their line items.
type OrderRepo struct {
	db *sqlx.DB
}

// NewOrderRepo constructs an OrderRepo over the shared pool.
func NewOrderRepo(db *sqlx.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create writes the order header and its line items in one transaction and
// decrements product stock for each line. Any failure rolls the whole order
// back; the caller never sees a header without its items.
func (r *OrderRepo) Create(ctx context.Context, o Order, items []OrderItem) (Order, error) {
	if len(items) == 0 {
		return Order{}, fmt.Errorf("order create: no items")
	}
	start := time.Now()
	o.Ref = uuid.NewString()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Order{}, fmt.Errorf("order create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowxContext(ctx,
		`INSERT INTO orders (ref, company, customer_code, seller_code, total, paid, created_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, NOW())
		 RETURNING id, created_at`,
		o.Ref, o.Company, o.CustomerCode, o.SellerCode, o.Total)
	if err := row.Scan(&o.ID, &o.CreatedAt); err != nil {
		return Order{}, fmt.Errorf("order create: header: %w", err)
	}

	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_code, description, unit_price, quantity, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, it.ProductCode, it.Description, it.UnitPrice, it.Quantity, it.LineTotal); err != nil {
			return Order{}, fmt.Errorf("order create: item %d: %w", it.ProductCode, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = GREATEST(stock - $1, 0)
			 WHERE company = $2 AND code = $3`,
			it.Quantity, o.Company, it.ProductCode); err != nil {
			return Order{}, fmt.Errorf("order create: stock %d: %w", it.ProductCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Order{}, fmt.Errorf("order create: commit: %w", err)
	}

	logger.SVCOrders.Info("order committed",
		slog.String("event", "order.create"),
		slog.Int("company", o.Company),
		slog.Int("customer_code", o.CustomerCode),
		slog.Int64("order_id", o.ID),
		slog.String("order_ref", o.Ref),
		slog.Int("items", len(items)),
		slog.Float64("total", o.Total),
		slog.Duration("duration", logger.Took(start)),
	)
	return o, nil
}

// ListUnpaid returns the customer's unpaid orders, oldest first.
func (r *OrderRepo) ListUnpaid(ctx context.Context, company, customerCode int) ([]Order, error) {
	var out []Order
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM orders
		 WHERE company = $1 AND customer_code = $2 AND NOT paid
		 ORDER BY created_at`,
		company, customerCode)
	if err != nil {
		return nil, fmt.Errorf("orders unpaid: %w", err)
	}
	return out, nil
}

// MarkPaid marks the given orders paid in one transaction and returns the sum
// of their totals. Orders already paid or belonging to another company are
// ignored by the WHERE clause, not failed.
func (r *OrderRepo) MarkPaid(ctx context.Context, company int, ids []int64) (float64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("orders mark paid: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx,
		`UPDATE orders SET paid = TRUE
		 WHERE company = $1 AND id = ANY($2) AND NOT paid
		 RETURNING total`,
		company, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("orders mark paid: %w", err)
	}
	var (
		total float64
		paid  int
	)
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return 0, fmt.Errorf("orders mark paid: scan: %w", err)
		}
		total += t
		paid++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("orders mark paid: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("orders mark paid: commit: %w", err)
	}

	logger.SVCOrders.Info("orders paid",
		slog.String("event", "order.paid"),
		slog.Int("company", company),
		slog.Int("orders_paid", paid),
		slog.Float64("total", total),
	)
	return total, nil
}

// TotalsBetween returns the order count and summed totals for a date range.
func (r *OrderRepo) TotalsBetween(ctx context.Context, company int, from, to time.Time) (int, float64, error) {
	var row struct {
		Count int             `db:"count"`
		Total sql.NullFloat64 `db:"total"`
	}
	err := r.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS count, SUM(total) AS total
		 FROM orders
		 WHERE company = $1 AND created_at >= $2 AND created_at < $3`,
		company, from, to)
	if err != nil {
		return 0, 0, fmt.Errorf("orders totals: %w", err)
	}
	return row.Count, row.Total.Float64, nil
}
