package db

import (
	"context"
	"fmt"

	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertAttachment saves or replaces an attachment keyed by the remote
// attachment id. Pure replace semantics: every field mirrors the remote.
func UpsertAttachment(ctx context.Context, pool *pgxpool.Pool, attachment *models.Attachment) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO email_attachments (id, email_id, name, mime_type, size, inline, content_id, content, content_location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email_id = EXCLUDED.email_id,
			name = EXCLUDED.name,
			mime_type = EXCLUDED.mime_type,
			size = EXCLUDED.size,
			inline = EXCLUDED.inline,
			content_id = EXCLUDED.content_id,
			content = EXCLUDED.content,
			content_location = EXCLUDED.content_location
	`,
		attachment.ID,
		attachment.EmailID,
		attachment.Name,
		attachment.MimeType,
		attachment.Size,
		attachment.Inline,
		attachment.ContentID,
		attachment.Content,
		attachment.ContentLocation,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert attachment: %w", err)
	}

	return nil
}

// GetAttachmentsForEmail returns all attachments of an email.
func GetAttachmentsForEmail(ctx context.Context, pool *pgxpool.Pool, emailID string) ([]*models.Attachment, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email_id, name, mime_type, size, inline, content_id, content, content_location
		FROM email_attachments
		WHERE email_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`, emailID)

	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var attachment models.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.EmailID,
			&attachment.Name,
			&attachment.MimeType,
			&attachment.Size,
			&attachment.Inline,
			&attachment.ContentID,
			&attachment.Content,
			&attachment.ContentLocation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &attachment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachments, nil
}
