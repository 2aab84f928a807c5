// Package storage provides the Postgres repositories behind the bot: sellers,
// customers, products, orders, and zones, all scoped by company code.
package storage

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup by code matches no row.
var ErrNotFound = errors.New("storage: not found")

// Seller is a sales agent allowed to operate the bot.
type Seller struct {
	ID         int64  `db:"id"`
	TelegramID int64  `db:"telegram_id"`
	Code       int    `db:"code"`
	Company    int    `db:"company"`
	Name       string `db:"name"`
}

// Zone is a delivery zone within a company.
type Zone struct {
	ID      int64  `db:"id"`
	Company int    `db:"company"`
	Name    string `db:"name"`
}

// Customer is a registered client of a company. Balance is the sum of the
// customer's unpaid order totals; it is computed by the queries that return
// it, not stored.
type Customer struct {
	ID       int64         `db:"id"`
	Company  int           `db:"company"`
	Code     int           `db:"code"`
	Name     string        `db:"name"`
	Surname  string        `db:"surname"`
	Phone    string        `db:"phone"`
	Address  string        `db:"address"`
	ZoneID   sql.NullInt64 `db:"zone_id"`
	Deposits int           `db:"deposits"`
	Balance  float64       `db:"balance"`
}

// FullName returns the display name used in prompts and keyboards.
func (c Customer) FullName() string {
	if c.Surname == "" {
		return c.Name
	}
	return c.Name + " " + c.Surname
}

// Product is a catalog entry. Inactive products stay for order history but
// never appear in product grids.
type Product struct {
	ID      int64   `db:"id"`
	Company int     `db:"company"`
	Code    int     `db:"code"`
	Name    string  `db:"name"`
	Price   float64 `db:"price"`
	Stock   int     `db:"stock"`
	Active  bool    `db:"active"`
}

// Order is a committed order header.
type Order struct {
	ID           int64     `db:"id"`
	Ref          string    `db:"ref"`
	Company      int       `db:"company"`
	CustomerCode int       `db:"customer_code"`
	SellerCode   int       `db:"seller_code"`
	Total        float64   `db:"total"`
	Paid         bool      `db:"paid"`
	CreatedAt    time.Time `db:"created_at"`
}

// OrderItem is one line of an order. LineTotal is Quantity * UnitPrice at
// selection time; catalog price changes do not retroactively affect it.
type OrderItem struct {
	ID          int64   `db:"id"`
	OrderID     int64   `db:"order_id"`
	ProductCode int     `db:"product_code"`
	Description string  `db:"description"`
	UnitPrice   float64 `db:"unit_price"`
	Quantity    int     `db:"quantity"`
	LineTotal   float64 `db:"line_total"`
}
