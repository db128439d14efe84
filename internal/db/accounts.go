package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound is returned when a requested account cannot be found.
var ErrAccountNotFound = errors.New("account not found")

// ErrStaleDeltaToken is returned when a delta token update loses a
// compare-and-swap against a concurrently updated cursor.
var ErrStaleDeltaToken = errors.New("delta token changed concurrently")

// SaveAccount inserts or updates an account. The search index blob and the
// delta token are deliberately not touched here; they have their own writers.
func SaveAccount(ctx context.Context, pool *pgxpool.Pool, account *models.Account) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO accounts (id, user_id, email_address, name, encrypted_token)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email_address = EXCLUDED.email_address,
			name = EXCLUDED.name,
			encrypted_token = EXCLUDED.encrypted_token,
			updated_at = now()
		RETURNING id
	`,
		account.ID,
		account.UserID,
		account.EmailAddress,
		account.Name,
		account.EncryptedToken,
	).Scan(&account.ID)

	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// GetAccountByID returns an account by its id.
func GetAccountByID(ctx context.Context, pool *pgxpool.Pool, accountID string) (*models.Account, error) {
	var account models.Account

	err := pool.QueryRow(ctx, `
		SELECT id, user_id, email_address, name, encrypted_token, next_delta_token, search_index, created_at, updated_at
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL
	`, accountID).Scan(
		&account.ID,
		&account.UserID,
		&account.EmailAddress,
		&account.Name,
		&account.EncryptedToken,
		&account.NextDeltaToken,
		&account.SearchIndex,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetAccountsForUser returns all accounts owned by the given user.
func GetAccountsForUser(ctx context.Context, pool *pgxpool.Pool, userID string) ([]*models.Account, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, email_address, name, encrypted_token, next_delta_token, search_index, created_at, updated_at
		FROM accounts
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`, userID)

	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.EmailAddress,
			&account.Name,
			&account.EncryptedToken,
			&account.NextDeltaToken,
			&account.SearchIndex,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// ListAccounts returns all live accounts. Used by the sync scheduler.
func ListAccounts(ctx context.Context, pool *pgxpool.Pool) ([]*models.Account, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, email_address, name, encrypted_token, next_delta_token, search_index, created_at, updated_at
		FROM accounts
		WHERE deleted_at IS NULL
		ORDER BY created_at
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.EmailAddress,
			&account.Name,
			&account.EncryptedToken,
			&account.NextDeltaToken,
			&account.SearchIndex,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// UpdateDeltaToken advances the account's sync cursor with a compare-and-swap
// against the cursor the run started from. A concurrent run that already
// moved the cursor makes the swap fail with ErrStaleDeltaToken so a stale
// run cannot regress it.
func UpdateDeltaToken(ctx context.Context, pool *pgxpool.Pool, accountID string, oldToken *string, newToken string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE accounts
		SET next_delta_token = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND next_delta_token IS NOT DISTINCT FROM $3
	`, accountID, newToken, oldToken)

	if err != nil {
		return fmt.Errorf("failed to update delta token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the account is gone or another run won the race.
		if _, getErr := GetAccountByID(ctx, pool, accountID); getErr != nil {
			return getErr
		}
		return ErrStaleDeltaToken
	}

	return nil
}

// UpdateSearchIndex writes the serialized search index blob back to the account.
func UpdateSearchIndex(ctx context.Context, pool *pgxpool.Pool, accountID string, blob []byte) error {
	tag, err := pool.Exec(ctx, `
		UPDATE accounts
		SET search_index = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, accountID, blob)

	if err != nil {
		return fmt.Errorf("failed to update search index: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// SoftDeleteAccount marks an account as deleted without removing the row.
func SoftDeleteAccount(ctx context.Context, pool *pgxpool.Pool, accountID string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE accounts
		SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, accountID)

	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}
