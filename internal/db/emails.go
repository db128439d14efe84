package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmailNotFound is returned when a requested email cannot be found.
var ErrEmailNotFound = errors.New("email not found")

// UpsertEmail saves or updates an email keyed by the remote message id and
// replaces its recipient sets. The row upsert and the recipient replacement
// run in one transaction so a re-sync can never leave a half-updated email,
// and re-reconciling the same message never accumulates duplicate recipients.
func UpsertEmail(ctx context.Context, pool *pgxpool.Pool, email *models.Email) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO emails (
			id, thread_id, created_time, last_modified_time, sent_at, received_at,
			internet_message_id, subject, sys_labels, keywords, sys_classifications,
			sensitivity, meeting_message_method, from_id, has_attachments,
			internet_headers, body, body_snippet, in_reply_to, references_header,
			thread_index, folder_id, omitted, email_label
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO UPDATE SET
			thread_id = EXCLUDED.thread_id,
			created_time = EXCLUDED.created_time,
			last_modified_time = EXCLUDED.last_modified_time,
			sent_at = EXCLUDED.sent_at,
			received_at = EXCLUDED.received_at,
			internet_message_id = EXCLUDED.internet_message_id,
			subject = EXCLUDED.subject,
			sys_labels = EXCLUDED.sys_labels,
			keywords = EXCLUDED.keywords,
			sys_classifications = EXCLUDED.sys_classifications,
			sensitivity = EXCLUDED.sensitivity,
			meeting_message_method = EXCLUDED.meeting_message_method,
			from_id = EXCLUDED.from_id,
			has_attachments = EXCLUDED.has_attachments,
			internet_headers = EXCLUDED.internet_headers,
			body = EXCLUDED.body,
			body_snippet = EXCLUDED.body_snippet,
			in_reply_to = EXCLUDED.in_reply_to,
			references_header = EXCLUDED.references_header,
			thread_index = EXCLUDED.thread_index,
			folder_id = EXCLUDED.folder_id,
			omitted = EXCLUDED.omitted,
			email_label = EXCLUDED.email_label
	`,
		email.ID,
		email.ThreadID,
		email.CreatedTime,
		email.LastModifiedTime,
		email.SentAt,
		email.ReceivedAt,
		email.InternetMessageID,
		email.Subject,
		email.SysLabels,
		email.Keywords,
		email.SysClassifications,
		email.Sensitivity,
		email.MeetingMessageMethod,
		email.FromID,
		email.HasAttachments,
		email.InternetHeaders,
		email.Body,
		email.BodySnippet,
		email.InReplyTo,
		email.References,
		email.ThreadIndex,
		email.FolderID,
		email.Omitted,
		email.EmailLabel,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert email: %w", err)
	}

	recipientSets := []struct {
		kind models.RecipientKind
		ids  []string
	}{
		{models.RecipientTo, email.ToIDs},
		{models.RecipientCc, email.CcIDs},
		{models.RecipientBcc, email.BccIDs},
		{models.RecipientReplyTo, email.ReplyToIDs},
	}

	for _, set := range recipientSets {
		if err := replaceRecipients(ctx, tx, email.ID, set.kind, set.ids); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit email upsert: %w", err)
	}

	return nil
}

// replaceRecipients swaps out one recipient set wholesale. Replace, never
// append: the remote message is the source of truth for who it went to.
func replaceRecipients(ctx context.Context, tx pgx.Tx, emailID string, kind models.RecipientKind, addressIDs []string) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM email_recipients WHERE email_id = $1 AND kind = $2
	`, emailID, kind); err != nil {
		return fmt.Errorf("failed to clear %s recipients: %w", kind, err)
	}

	seen := make(map[string]struct{}, len(addressIDs))
	pos := 0
	for _, addressID := range addressIDs {
		if _, dup := seen[addressID]; dup {
			continue
		}
		seen[addressID] = struct{}{}

		if _, err := tx.Exec(ctx, `
			INSERT INTO email_recipients (email_id, address_id, kind, pos)
			VALUES ($1, $2, $3, $4)
		`, emailID, addressID, kind, pos); err != nil {
			return fmt.Errorf("failed to insert %s recipient: %w", kind, err)
		}
		pos++
	}

	return nil
}

// GetEmailsForThread returns all of a thread's emails ordered by receive
// time ascending. Recipient ids are loaded alongside each row.
func GetEmailsForThread(ctx context.Context, pool *pgxpool.Pool, threadID string) ([]*models.Email, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, thread_id, created_time, last_modified_time, sent_at, received_at,
			internet_message_id, subject, sys_labels, keywords, sys_classifications,
			sensitivity, meeting_message_method, from_id, has_attachments,
			internet_headers, body, body_snippet, in_reply_to, references_header,
			thread_index, folder_id, omitted, email_label
		FROM emails
		WHERE thread_id = $1 AND deleted_at IS NULL
		ORDER BY received_at ASC
	`, threadID)

	if err != nil {
		return nil, fmt.Errorf("failed to get emails: %w", err)
	}
	defer rows.Close()

	var emails []*models.Email
	for rows.Next() {
		var email models.Email
		if err := rows.Scan(
			&email.ID,
			&email.ThreadID,
			&email.CreatedTime,
			&email.LastModifiedTime,
			&email.SentAt,
			&email.ReceivedAt,
			&email.InternetMessageID,
			&email.Subject,
			&email.SysLabels,
			&email.Keywords,
			&email.SysClassifications,
			&email.Sensitivity,
			&email.MeetingMessageMethod,
			&email.FromID,
			&email.HasAttachments,
			&email.InternetHeaders,
			&email.Body,
			&email.BodySnippet,
			&email.InReplyTo,
			&email.References,
			&email.ThreadIndex,
			&email.FolderID,
			&email.Omitted,
			&email.EmailLabel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, &email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	for _, email := range emails {
		if err := loadRecipients(ctx, pool, email); err != nil {
			return nil, err
		}
	}

	return emails, nil
}

// GetEmailByID returns one email with its recipient ids.
func GetEmailByID(ctx context.Context, pool *pgxpool.Pool, emailID string) (*models.Email, error) {
	var email models.Email

	err := pool.QueryRow(ctx, `
		SELECT id, thread_id, created_time, last_modified_time, sent_at, received_at,
			internet_message_id, subject, sys_labels, keywords, sys_classifications,
			sensitivity, meeting_message_method, from_id, has_attachments,
			internet_headers, body, body_snippet, in_reply_to, references_header,
			thread_index, folder_id, omitted, email_label
		FROM emails
		WHERE id = $1 AND deleted_at IS NULL
	`, emailID).Scan(
		&email.ID,
		&email.ThreadID,
		&email.CreatedTime,
		&email.LastModifiedTime,
		&email.SentAt,
		&email.ReceivedAt,
		&email.InternetMessageID,
		&email.Subject,
		&email.SysLabels,
		&email.Keywords,
		&email.SysClassifications,
		&email.Sensitivity,
		&email.MeetingMessageMethod,
		&email.FromID,
		&email.HasAttachments,
		&email.InternetHeaders,
		&email.Body,
		&email.BodySnippet,
		&email.InReplyTo,
		&email.References,
		&email.ThreadIndex,
		&email.FolderID,
		&email.Omitted,
		&email.EmailLabel,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmailNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	if err := loadRecipients(ctx, pool, &email); err != nil {
		return nil, err
	}

	return &email, nil
}

func loadRecipients(ctx context.Context, pool *pgxpool.Pool, email *models.Email) error {
	rows, err := pool.Query(ctx, `
		SELECT address_id, kind
		FROM email_recipients
		WHERE email_id = $1
		ORDER BY kind, pos
	`, email.ID)

	if err != nil {
		return fmt.Errorf("failed to get recipients: %w", err)
	}
	defer rows.Close()

	email.ToIDs = nil
	email.CcIDs = nil
	email.BccIDs = nil
	email.ReplyToIDs = nil

	for rows.Next() {
		var addressID string
		var kind models.RecipientKind
		if err := rows.Scan(&addressID, &kind); err != nil {
			return fmt.Errorf("failed to scan recipient: %w", err)
		}

		switch kind {
		case models.RecipientTo:
			email.ToIDs = append(email.ToIDs, addressID)
		case models.RecipientCc:
			email.CcIDs = append(email.CcIDs, addressID)
		case models.RecipientBcc:
			email.BccIDs = append(email.BccIDs, addressID)
		case models.RecipientReplyTo:
			email.ReplyToIDs = append(email.ReplyToIDs, addressID)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating recipients: %w", err)
	}

	return nil
}
