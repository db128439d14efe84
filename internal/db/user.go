package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserDeleted is returned when the email belongs to a soft-deleted user.
var ErrUserDeleted = errors.New("user is deleted")

// GetOrCreateUser returns the user's id for the given email.
// If no user exists with that email, it creates a new one. A soft-deleted
// user is never resurrected; the caller gets ErrUserDeleted instead.
func GetOrCreateUser(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	var userID string

	err := pool.QueryRow(ctx, `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		WHERE users.deleted_at IS NULL
		RETURNING id
	`, email).Scan(&userID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserDeleted
	}
	if err != nil {
		return "", fmt.Errorf("failed to get or create user: %w", err)
	}

	return userID, nil
}
