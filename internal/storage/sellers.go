package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SellerRepo resolves Telegram users to sales agents.
type SellerRepo struct {
	db *sqlx.DB
}

// NewSellerRepo constructs a SellerRepo over the shared pool.
func NewSellerRepo(db *sqlx.DB) *SellerRepo {
	return &SellerRepo{db: db}
}

// GetByTelegramID returns the seller bound to the Telegram account.
func (r *SellerRepo) GetByTelegramID(ctx context.Context, tgID int64) (Seller, error) {
	var s Seller
	err := r.db.GetContext(ctx, &s,
		`SELECT * FROM sellers WHERE telegram_id = $1`, tgID)
	if errors.Is(err, sql.ErrNoRows) {
		return Seller{}, ErrNotFound
	}
	if err != nil {
		return Seller{}, fmt.Errorf("seller by telegram id: %w", err)
	}
	return s, nil
}
