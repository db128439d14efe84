package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/hithere-devs/email-saas/internal/models"
	"github.com/hithere-devs/email-saas/internal/provider"
	"github.com/hithere-devs/email-saas/internal/search"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnresolvableSender is returned for a message whose from address could
// not be resolved; such a message cannot be reconciled and is skipped.
var ErrUnresolvableSender = errors.New("message sender could not be resolved")

// DocumentIndexer receives the searchable projection of each reconciled email.
type DocumentIndexer interface {
	Insert(ctx context.Context, accountID string, doc search.Document) error
}

// Reconciler folds raw remote messages into normalized rows and the search
// index. Every operation is an idempotent upsert, so replaying a batch after
// a crash converges on the same state.
type Reconciler struct {
	pool      *pgxpool.Pool
	indexer   DocumentIndexer
	converter *BodyConverter
}

// New creates a reconciler.
func New(pool *pgxpool.Pool, indexer DocumentIndexer) *Reconciler {
	return &Reconciler{
		pool:      pool,
		indexer:   indexer,
		converter: NewBodyConverter(),
	}
}

// ReconcileBatch folds a batch of messages into the account's mailbox
// mirror. Failures are isolated per message: a message that cannot be
// reconciled is logged and skipped, and the rest of the batch proceeds.
// Missed messages self-heal on the next run because upserts are idempotent.
func (r *Reconciler) ReconcileBatch(ctx context.Context, accountID string, messages []provider.Message) {
	for i := range messages {
		if err := r.ReconcileMessage(ctx, accountID, &messages[i]); err != nil {
			log.Printf("Warning: failed to reconcile message %s: %v", messages[i].ID, err)
		}
	}
}

// ReconcileMessage folds one raw message into the relational model and the
// search index.
func (r *Reconciler) ReconcileMessage(ctx context.Context, accountID string, message *provider.Message) error {
	label := ClassifyLabel(message.SysLabels)

	addressMap := r.resolveAddresses(ctx, accountID, message)

	from, ok := addressMap[message.From.Address]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnresolvableSender, message.From.Address)
	}

	toIDs := resolveIDs(addressMap, message.To)
	ccIDs := resolveIDs(addressMap, message.Cc)
	bccIDs := resolveIDs(addressMap, message.Bcc)
	replyToIDs := resolveIDs(addressMap, message.ReplyTo)

	participantIDs := dedupe(append(append(append(append([]string{from.ID}, toIDs...), ccIDs...), bccIDs...), replyToIDs...))

	thread := &models.Thread{
		ID:              message.ThreadID,
		AccountID:       accountID,
		Subject:         message.Subject,
		LastMessageDate: message.SentAt,
		ParticipantIDs:  participantIDs,
		InboxStatus:     label == models.EmailLabelInbox,
		DraftStatus:     label == models.EmailLabelDraft,
		SentStatus:      label == models.EmailLabelSent,
	}
	if err := db.UpsertThread(ctx, r.pool, thread); err != nil {
		return err
	}

	email := &models.Email{
		ID:                   message.ID,
		ThreadID:             thread.ID,
		CreatedTime:          message.CreatedTime,
		LastModifiedTime:     time.Now(),
		SentAt:               message.SentAt,
		ReceivedAt:           message.ReceivedAt,
		InternetMessageID:    message.InternetMessageID,
		Subject:              message.Subject,
		SysLabels:            message.SysLabels,
		Keywords:             message.Keywords,
		SysClassifications:   message.SysClassifications,
		Sensitivity:          message.Sensitivity,
		MeetingMessageMethod: message.MeetingMessageMethod,
		FromID:               from.ID,
		ToIDs:                toIDs,
		CcIDs:                ccIDs,
		BccIDs:               bccIDs,
		ReplyToIDs:           replyToIDs,
		HasAttachments:       message.HasAttachments,
		InternetHeaders:      message.InternetHeaders,
		Body:                 message.Body,
		BodySnippet:          message.BodySnippet,
		InReplyTo:            message.InReplyTo,
		References:           message.References,
		ThreadIndex:          message.ThreadIndex,
		FolderID:             message.FolderID,
		Omitted:              message.Omitted,
		EmailLabel:           label,
	}
	if err := db.UpsertEmail(ctx, r.pool, email); err != nil {
		return err
	}

	if err := r.recomputeThreadFolder(ctx, thread.ID); err != nil {
		return err
	}

	for _, attachment := range message.Attachments {
		record := &models.Attachment{
			ID:              attachment.ID,
			EmailID:         email.ID,
			Name:            attachment.Name,
			MimeType:        attachment.MimeType,
			Size:            attachment.Size,
			Inline:          attachment.Inline,
			ContentID:       attachment.ContentID,
			Content:         attachment.Content,
			ContentLocation: attachment.ContentLocation,
		}
		if err := db.UpsertAttachment(ctx, r.pool, record); err != nil {
			log.Printf("Warning: failed to upsert attachment %s for email %s: %v", attachment.ID, email.ID, err)
		}
	}

	return r.indexMessage(ctx, accountID, message)
}

// ClassifyLabel maps provider system labels to the email's folder bucket.
// Inbox (or important) wins, then sent, then draft; anything else lands in
// the inbox.
func ClassifyLabel(sysLabels []string) models.EmailLabel {
	labels := make(map[string]struct{}, len(sysLabels))
	for _, label := range sysLabels {
		labels[label] = struct{}{}
	}

	if _, ok := labels["inbox"]; ok {
		return models.EmailLabelInbox
	}
	if _, ok := labels["important"]; ok {
		return models.EmailLabelInbox
	}
	if _, ok := labels["sent"]; ok {
		return models.EmailLabelSent
	}
	if _, ok := labels["draft"]; ok {
		return models.EmailLabelDraft
	}
	return models.EmailLabelInbox
}

// resolveAddresses upserts every participant address of the message,
// deduplicated by address string so each address resolves exactly once per
// message. An address that fails to upsert is logged and left out of the map.
func (r *Reconciler) resolveAddresses(ctx context.Context, accountID string, message *provider.Message) map[string]*models.EmailAddress {
	unique := make(map[string]provider.Address)
	for _, address := range gatherParticipants(message) {
		// Drafts sometimes carry blank participant slots; a blank address
		// is not a participant and must not become an address row.
		if address.Address == "" {
			continue
		}
		unique[address.Address] = address
	}

	resolved := make(map[string]*models.EmailAddress, len(unique))
	for key, address := range unique {
		record, err := db.GetOrCreateEmailAddress(ctx, r.pool, accountID, &models.EmailAddress{
			AccountID: accountID,
			Address:   address.Address,
			Name:      address.Name,
			Raw:       address.Raw,
		})
		if err != nil {
			log.Printf("Warning: failed to upsert address %q: %v", address.Address, err)
			continue
		}
		resolved[key] = record
	}

	return resolved
}

func gatherParticipants(message *provider.Message) []provider.Address {
	participants := make([]provider.Address, 0, 1+len(message.To)+len(message.Cc)+len(message.Bcc)+len(message.ReplyTo))
	participants = append(participants, message.From)
	participants = append(participants, message.To...)
	participants = append(participants, message.Cc...)
	participants = append(participants, message.Bcc...)
	participants = append(participants, message.ReplyTo...)
	return participants
}

func resolveIDs(addressMap map[string]*models.EmailAddress, addresses []provider.Address) []string {
	var ids []string
	for _, address := range addresses {
		if record, ok := addressMap[address.Address]; ok {
			ids = append(ids, record.ID)
		}
	}
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// recomputeThreadFolder reclassifies the thread from the full current set of
// its emails, ordered by receive time. Any inbox email wins outright; failing
// that, any draft makes the thread a draft; otherwise it is sent. The flags
// are replaced, never OR'd, so a thread whose last inbox email gets
// reclassified loses its inbox status.
func (r *Reconciler) recomputeThreadFolder(ctx context.Context, threadID string) error {
	emails, err := db.GetEmailsForThread(ctx, r.pool, threadID)
	if err != nil {
		return err
	}

	folder := models.EmailLabelSent
	for _, email := range emails {
		if email.EmailLabel == models.EmailLabelInbox {
			folder = models.EmailLabelInbox
			break
		}
		if email.EmailLabel == models.EmailLabelDraft {
			folder = models.EmailLabelDraft
		}
	}

	return db.UpdateThreadFolderFlags(ctx, r.pool, threadID,
		folder == models.EmailLabelInbox,
		folder == models.EmailLabelDraft,
		folder == models.EmailLabelSent,
	)
}

func (r *Reconciler) indexMessage(ctx context.Context, accountID string, message *provider.Message) error {
	to := make([]string, 0, len(message.To))
	for _, address := range message.To {
		to = append(to, address.Address)
	}

	rawBody := message.BodySnippet
	if rawBody == "" {
		rawBody = r.converter.ToPlainText(message.Body)
	}

	doc := search.Document{
		ID:       message.ID,
		Subject:  message.Subject,
		Body:     r.converter.ToMarkdown(message.Body),
		RawBody:  rawBody,
		From:     message.From.Address,
		To:       to,
		SentAt:   message.SentAt.Format(time.RFC3339),
		ThreadID: message.ThreadID,
	}

	if err := r.indexer.Insert(ctx, accountID, doc); err != nil {
		return fmt.Errorf("failed to index message: %w", err)
	}
	return nil
}
