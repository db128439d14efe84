package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrThreadNotFound is returned when a requested thread cannot be found.
var ErrThreadNotFound = errors.New("thread not found")

// UpsertThread saves or updates a thread keyed by the remote thread id.
//
// On create the folder flags are seeded from the triggering email's label and
// done starts false. On update only subject, last message date and the
// participant set change: participant_ids becomes the deduplicated union of
// the stored set and the incoming one, and done is left alone so a thread a
// user marked done stays done across re-syncs.
func UpsertThread(ctx context.Context, pool *pgxpool.Pool, thread *models.Thread) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO threads (id, account_id, subject, last_message_date, participant_ids, done, inbox_status, draft_status, sent_status)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			last_message_date = EXCLUDED.last_message_date,
			participant_ids = ARRAY(
				SELECT DISTINCT unnest(threads.participant_ids || EXCLUDED.participant_ids)
			),
			updated_at = now()
		RETURNING id, done, inbox_status, draft_status, sent_status, participant_ids
	`,
		thread.ID,
		thread.AccountID,
		thread.Subject,
		thread.LastMessageDate,
		thread.ParticipantIDs,
		thread.InboxStatus,
		thread.DraftStatus,
		thread.SentStatus,
	).Scan(
		&thread.ID,
		&thread.Done,
		&thread.InboxStatus,
		&thread.DraftStatus,
		&thread.SentStatus,
		&thread.ParticipantIDs,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}

	return nil
}

// GetThreadByID returns a thread by its remote id.
func GetThreadByID(ctx context.Context, pool *pgxpool.Pool, threadID string) (*models.Thread, error) {
	var thread models.Thread

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, subject, last_message_date, participant_ids, done, inbox_status, draft_status, sent_status
		FROM threads
		WHERE id = $1 AND deleted_at IS NULL
	`, threadID).Scan(
		&thread.ID,
		&thread.AccountID,
		&thread.Subject,
		&thread.LastMessageDate,
		&thread.ParticipantIDs,
		&thread.Done,
		&thread.InboxStatus,
		&thread.DraftStatus,
		&thread.SentStatus,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return &thread, nil
}

// UpdateThreadFolderFlags persists the recomputed folder classification.
// Exactly one of the three flags is expected to be true.
func UpdateThreadFolderFlags(ctx context.Context, pool *pgxpool.Pool, threadID string, inbox, draft, sent bool) error {
	tag, err := pool.Exec(ctx, `
		UPDATE threads
		SET inbox_status = $2, draft_status = $3, sent_status = $4, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, threadID, inbox, draft, sent)

	if err != nil {
		return fmt.Errorf("failed to update thread folder flags: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrThreadNotFound
	}

	return nil
}

// SetThreadDone sets the user-controlled done flag.
func SetThreadDone(ctx context.Context, pool *pgxpool.Pool, threadID string, done bool) error {
	tag, err := pool.Exec(ctx, `
		UPDATE threads
		SET done = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, threadID, done)

	if err != nil {
		return fmt.Errorf("failed to update thread done flag: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrThreadNotFound
	}

	return nil
}

// GetThreadsForFolder returns an account's threads for one of the three
// folder views, newest activity first.
func GetThreadsForFolder(ctx context.Context, pool *pgxpool.Pool, accountID, folder string, limit, offset int) ([]*models.Thread, error) {
	var flagColumn string
	switch folder {
	case "inbox":
		flagColumn = "inbox_status"
	case "drafts":
		flagColumn = "draft_status"
	case "sent":
		flagColumn = "sent_status"
	default:
		return nil, fmt.Errorf("unknown folder %q", folder)
	}

	rows, err := pool.Query(ctx, `
		SELECT id, account_id, subject, last_message_date, participant_ids, done, inbox_status, draft_status, sent_status
		FROM threads
		WHERE account_id = $1 AND deleted_at IS NULL AND `+flagColumn+` = TRUE
		ORDER BY last_message_date DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to get threads: %w", err)
	}
	defer rows.Close()

	var threads []*models.Thread
	for rows.Next() {
		var thread models.Thread
		if err := rows.Scan(
			&thread.ID,
			&thread.AccountID,
			&thread.Subject,
			&thread.LastMessageDate,
			&thread.ParticipantIDs,
			&thread.Done,
			&thread.InboxStatus,
			&thread.DraftStatus,
			&thread.SentStatus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, &thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}
