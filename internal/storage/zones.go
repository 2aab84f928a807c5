package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ZoneRepo reads delivery zones.
type ZoneRepo struct {
	db *sqlx.DB
}

// NewZoneRepo constructs a ZoneRepo over the shared pool.
func NewZoneRepo(db *sqlx.DB) *ZoneRepo {
	return &ZoneRepo{db: db}
}

// List returns the company's zones ordered by name.
func (r *ZoneRepo) List(ctx context.Context, company int) ([]Zone, error) {
	var out []Zone
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM zones WHERE company = $1 ORDER BY name`, company)
	if err != nil {
		return nil, fmt.Errorf("zones list: %w", err)
	}
	return out, nil
}
