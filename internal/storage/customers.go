package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"pedidosbot/core/logger"
	"log/slog"
)

const customerBalanceSelect = `
SELECT c.id, c.company, c.code, c.name, c.surname, c.phone, c.address,
       c.zone_id, c.deposits,
       COALESCE((SELECT SUM(o.total) FROM orders o
                 WHERE o.company = c.company AND o.customer_code = c.code AND NOT o.paid), 0) AS balance
FROM customers c`

// CustomerRepo reads and writes customer records.
type CustomerRepo struct {
	db *sqlx.DB
}

// NewCustomerRepo constructs a CustomerRepo over the shared pool.
func NewCustomerRepo(db *sqlx.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// GetByCode returns the customer with the exact code within the company.
func (r *CustomerRepo) GetByCode(ctx context.Context, company, code int) (Customer, error) {
	var c Customer
	query := customerBalanceSelect + ` WHERE c.company = $1 AND c.code = $2`
	err := r.db.GetContext(ctx, &c, query, company, code)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("customer by code: %w", err)
	}
	return c, nil
}

// SearchByName returns customers whose name or surname matches the fragment,
// case-insensitively, ordered by code.
func (r *CustomerRepo) SearchByName(ctx context.Context, company int, q string) ([]Customer, error) {
	var out []Customer
	query := customerBalanceSelect + `
 WHERE c.company = $1 AND (c.name ILIKE $2 OR c.surname ILIKE $2)
 ORDER BY c.code`
	if err := r.db.SelectContext(ctx, &out, query, company, "%"+q+"%"); err != nil {
		return nil, fmt.Errorf("customer search: %w", err)
	}
	return out, nil
}

// ListWithBalance returns every customer of the company holding an unpaid
// balance, ordered by code.
func (r *CustomerRepo) ListWithBalance(ctx context.Context, company int) ([]Customer, error) {
	var out []Customer
	query := customerBalanceSelect + `
 WHERE c.company = $1
   AND EXISTS (SELECT 1 FROM orders o
               WHERE o.company = c.company AND o.customer_code = c.code AND NOT o.paid)
 ORDER BY c.code`
	if err := r.db.SelectContext(ctx, &out, query, company); err != nil {
		return nil, fmt.Errorf("customers with balance: %w", err)
	}
	return out, nil
}

// Create inserts a customer, assigning the next free code within the company.
func (r *CustomerRepo) Create(ctx context.Context, c Customer) (Customer, error) {
	start := time.Now()
	query := `
INSERT INTO customers (company, code, name, surname, phone, address, zone_id, deposits)
VALUES ($1,
        COALESCE((SELECT MAX(code) + 1 FROM customers WHERE company = $1), 1),
        $2, $3, $4, $5, $6, 0)
RETURNING id, code`
	row := r.db.QueryRowxContext(ctx, query, c.Company, c.Name, c.Surname, c.Phone, c.Address, c.ZoneID)
	if err := row.Scan(&c.ID, &c.Code); err != nil {
		return Customer{}, fmt.Errorf("customer create: %w", err)
	}
	logger.SVCCustomers.Info("customer created",
		slog.String("event", "customer.create"),
		slog.Int("company", c.Company),
		slog.Int("customer_code", c.Code),
		slog.Duration("duration", logger.Took(start)),
	)
	return c, nil
}

// Editable customer columns, keyed by the field names the edit flow uses.
var customerColumns = map[string]string{
	"name":    "name",
	"surname": "surname",
	"phone":   "phone",
	"address": "address",
}

// UpdateField sets one editable column on a customer.
func (r *CustomerRepo) UpdateField(ctx context.Context, company, code int, field, value string) error {
	col, ok := customerColumns[field]
	if !ok {
		return fmt.Errorf("customer update: unknown field %q", field)
	}
	query := fmt.Sprintf(`UPDATE customers SET %s = $1 WHERE company = $2 AND code = $3`, col)
	res, err := r.db.ExecContext(ctx, query, value, company, code)
	if err != nil {
		return fmt.Errorf("customer update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignZone sets the delivery zone of a customer.
func (r *CustomerRepo) AssignZone(ctx context.Context, company, code int, zoneID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET zone_id = $1 WHERE company = $2 AND code = $3`,
		zoneID, company, code)
	if err != nil {
		return fmt.Errorf("customer zone assign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustDeposits changes the returnable-container count by delta, flooring at
// zero, and returns the new count.
func (r *CustomerRepo) AdjustDeposits(ctx context.Context, company, code, delta int) (int, error) {
	var deposits int
	err := r.db.GetContext(ctx, &deposits,
		`UPDATE customers SET deposits = GREATEST(deposits + $1, 0)
		 WHERE company = $2 AND code = $3
		 RETURNING deposits`,
		delta, company, code)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("customer deposits: %w", err)
	}
	return deposits, nil
}

// Delete removes a customer record.
func (r *CustomerRepo) Delete(ctx context.Context, company, code int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM customers WHERE company = $1 AND code = $2`, company, code)
	if err != nil {
		return fmt.Errorf("customer delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	logger.SVCCustomers.Info("customer deleted",
		slog.String("event", "customer.delete"),
		slog.Int("company", company),
		slog.Int("customer_code", code),
	)
	return nil
}
