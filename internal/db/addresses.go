package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAddressNotFound is returned when a requested email address cannot be found.
var ErrAddressNotFound = errors.New("email address not found")

// GetOrCreateEmailAddress returns the address record for (accountID, address),
// creating it on first sighting. Name and raw are display fields captured at
// creation; an existing record keeps whatever it was first seen with.
func GetOrCreateEmailAddress(ctx context.Context, pool *pgxpool.Pool, accountID string, address *models.EmailAddress) (*models.EmailAddress, error) {
	existing, err := GetEmailAddress(ctx, pool, accountID, address.Address)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrAddressNotFound) {
		return nil, err
	}

	var created models.EmailAddress
	err = pool.QueryRow(ctx, `
		INSERT INTO email_addresses (account_id, address, name, raw)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, address) DO UPDATE SET address = EXCLUDED.address
		RETURNING id, account_id, address, name, raw
	`, accountID, address.Address, address.Name, address.Raw).Scan(
		&created.ID,
		&created.AccountID,
		&created.Address,
		&created.Name,
		&created.Raw,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create email address: %w", err)
	}

	return &created, nil
}

// GetEmailAddress returns the address record for (accountID, address).
func GetEmailAddress(ctx context.Context, pool *pgxpool.Pool, accountID, address string) (*models.EmailAddress, error) {
	var found models.EmailAddress

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, address, name, raw
		FROM email_addresses
		WHERE account_id = $1 AND address = $2 AND deleted_at IS NULL
	`, accountID, address).Scan(
		&found.ID,
		&found.AccountID,
		&found.Address,
		&found.Name,
		&found.Raw,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAddressNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get email address: %w", err)
	}

	return &found, nil
}
