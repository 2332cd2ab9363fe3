// Package directory resolves phone-hash identifiers against the identity
// service's users table. Read-only: identity owns that table, this
// adapter never writes to it.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pesacore/internal/payment"
)

type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) ResolvePhoneHash(ctx context.Context, phoneHash string) (uuid.UUID, error) {
	var id uuid.UUID
	err := d.pool.QueryRow(ctx, `SELECT id FROM users WHERE mobile_hash = $1`, phoneHash).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, payment.ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("resolve phone hash: %w", err)
	}
	return id, nil
}
