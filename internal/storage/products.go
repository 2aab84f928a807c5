package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"pedidosbot/core/logger"
	"log/slog"
)

// ProductRepo reads and writes catalog entries.
type ProductRepo struct {
	db *sqlx.DB
}

// NewProductRepo constructs a ProductRepo over the shared pool.
func NewProductRepo(db *sqlx.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// GetByCode returns the product with the exact code within the company,
// whether active or not.
func (r *ProductRepo) GetByCode(ctx context.Context, company, code int) (Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM products WHERE company = $1 AND code = $2`, company, code)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("product by code: %w", err)
	}
	return p, nil
}

// ListActive returns one page of active products ordered by code.
func (r *ProductRepo) ListActive(ctx context.Context, company, offset, limit int) ([]Product, error) {
	var out []Product
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM products WHERE company = $1 AND active
		 ORDER BY code OFFSET $2 LIMIT $3`,
		company, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("products list: %w", err)
	}
	return out, nil
}

// CountActive returns the number of active products in the company.
func (r *ProductRepo) CountActive(ctx context.Context, company int) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM products WHERE company = $1 AND active`, company); err != nil {
		return 0, fmt.Errorf("products count: %w", err)
	}
	return n, nil
}

// Create inserts an active product, assigning the next free code within the
// company.
func (r *ProductRepo) Create(ctx context.Context, p Product) (Product, error) {
	query := `
INSERT INTO products (company, code, name, price, stock, active)
VALUES ($1,
        COALESCE((SELECT MAX(code) + 1 FROM products WHERE company = $1), 1),
        $2, $3, $4, TRUE)
RETURNING id, code`
	row := r.db.QueryRowxContext(ctx, query, p.Company, p.Name, p.Price, p.Stock)
	if err := row.Scan(&p.ID, &p.Code); err != nil {
		return Product{}, fmt.Errorf("product create: %w", err)
	}
	p.Active = true
	logger.SVCProducts.Info("product created",
		slog.String("event", "product.create"),
		slog.Int("company", p.Company),
		slog.Int("product_code", p.Code),
	)
	return p, nil
}

// UpdateField sets one editable column on a product. Numeric fields are
// parsed here so the edit flow can stay string-based.
func (r *ProductRepo) UpdateField(ctx context.Context, company, code int, field, value string) error {
	var (
		query string
		arg   any
	)
	switch field {
	case "name":
		query, arg = `UPDATE products SET name = $1 WHERE company = $2 AND code = $3`, value
	case "price":
		price, err := strconv.ParseFloat(value, 64)
		if err != nil || price < 0 {
			return fmt.Errorf("product update: invalid price %q", value)
		}
		query, arg = `UPDATE products SET price = $1 WHERE company = $2 AND code = $3`, price
	case "stock":
		stock, err := strconv.Atoi(value)
		if err != nil || stock < 0 {
			return fmt.Errorf("product update: invalid stock %q", value)
		}
		query, arg = `UPDATE products SET stock = $1 WHERE company = $2 AND code = $3`, stock
	default:
		return fmt.Errorf("product update: unknown field %q", field)
	}
	res, err := r.db.ExecContext(ctx, query, arg, company, code)
	if err != nil {
		return fmt.Errorf("product update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock changes stock by delta, flooring at zero, and returns the new
// level. Negative deltas model egress, positive ingress.
func (r *ProductRepo) AdjustStock(ctx context.Context, company, code, delta int) (int, error) {
	var stock int
	err := r.db.GetContext(ctx, &stock,
		`UPDATE products SET stock = GREATEST(stock + $1, 0)
		 WHERE company = $2 AND code = $3
		 RETURNING stock`,
		delta, company, code)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("stock adjust: %w", err)
	}
	logger.SVCStock.Info("stock adjusted",
		slog.String("event", "stock.adjust"),
		slog.Int("company", company),
		slog.Int("product_code", code),
		slog.Int("qty", delta),
		slog.Int("stock", stock),
	)
	return stock, nil
}

// Deactivate hides a product from grids while preserving order history.
func (r *ProductRepo) Deactivate(ctx context.Context, company, code int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET active = FALSE WHERE company = $1 AND code = $2`, company, code)
	if err != nil {
		return fmt.Errorf("product deactivate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	logger.SVCProducts.Info("product deactivated",
		slog.String("event", "product.delete"),
		slog.Int("company", company),
		slog.Int("product_code", code),
	)
	return nil
}
