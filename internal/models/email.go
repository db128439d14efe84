package models

import "time"

// EmailLabel classifies an email into exactly one provider folder bucket.
// It is computed once at ingest from the provider's system labels and never
// changes afterwards; only the thread-level aggregate flags are recomputed.
type EmailLabel string

const (
	EmailLabelInbox EmailLabel = "inbox"
	EmailLabelSent  EmailLabel = "sent"
	EmailLabelDraft EmailLabel = "draft"
)

// RecipientKind distinguishes the recipient sets of an email.
type RecipientKind string

const (
	RecipientTo      RecipientKind = "to"
	RecipientCc      RecipientKind = "cc"
	RecipientBcc     RecipientKind = "bcc"
	RecipientReplyTo RecipientKind = "replyTo"
)

// Account is a connected remote mailbox. It owns the delta cursor for
// incremental sync and the serialized search index blob.
type Account struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	EmailAddress   string    `json:"email_address"`
	Name           string    `json:"name"`
	EncryptedToken []byte    `json:"-"`
	NextDeltaToken *string   `json:"-"`
	SearchIndex    []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EmailAddress is a sighting of an address within one account's mailbox.
// Addresses are created on first sighting and never deleted; the
// (account_id, address) pair is unique per account.
type EmailAddress struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Address   string `json:"address"`
	Name      string `json:"name"`
	Raw       string `json:"raw"`
}

// Thread groups related emails under the provider's thread id.
// The three folder flags are mutually exclusive and recomputed from the full
// set of the thread's emails after every email upsert. Done is user
// controlled: sync seeds it false on create and never flips it afterwards.
type Thread struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	Subject         string    `json:"subject"`
	LastMessageDate time.Time `json:"last_message_date"`
	ParticipantIDs  []string  `json:"participant_ids"`
	Done            bool      `json:"done"`
	InboxStatus     bool      `json:"inbox_status"`
	DraftStatus     bool      `json:"draft_status"`
	SentStatus      bool      `json:"sent_status"`
	Emails          []*Email  `json:"emails,omitempty"`
}

// Email is one reconciled message, keyed by the provider message id.
type Email struct {
	ID                   string            `json:"id"`
	ThreadID             string            `json:"thread_id"`
	CreatedTime          time.Time         `json:"created_time"`
	LastModifiedTime     time.Time         `json:"last_modified_time"`
	SentAt               time.Time         `json:"sent_at"`
	ReceivedAt           time.Time         `json:"received_at"`
	InternetMessageID    string            `json:"internet_message_id"`
	Subject              string            `json:"subject"`
	SysLabels            []string          `json:"sys_labels"`
	Keywords             []string          `json:"keywords"`
	SysClassifications   []string          `json:"sys_classifications"`
	Sensitivity          string            `json:"sensitivity"`
	MeetingMessageMethod string            `json:"meeting_message_method"`
	FromID               string            `json:"from_id"`
	ToIDs                []string          `json:"to_ids"`
	CcIDs                []string          `json:"cc_ids"`
	BccIDs               []string          `json:"bcc_ids"`
	ReplyToIDs           []string          `json:"reply_to_ids"`
	HasAttachments       bool              `json:"has_attachments"`
	InternetHeaders      map[string]string `json:"internet_headers"`
	Body                 string            `json:"body"`
	BodySnippet          string            `json:"body_snippet"`
	InReplyTo            string            `json:"in_reply_to"`
	References           string            `json:"references"`
	ThreadIndex          string            `json:"thread_index"`
	FolderID             string            `json:"folder_id"`
	Omitted              []string          `json:"omitted"`
	EmailLabel           EmailLabel        `json:"email_label"`
	Attachments          []*Attachment     `json:"attachments,omitempty"`
}

// Attachment belongs to exactly one email, keyed by the provider attachment id.
type Attachment struct {
	ID              string `json:"id"`
	EmailID         string `json:"email_id"`
	Name            string `json:"name"`
	MimeType        string `json:"mime_type"`
	Size            int64  `json:"size"`
	Inline          bool   `json:"inline"`
	ContentID       string `json:"content_id,omitempty"`
	Content         string `json:"-"`
	ContentLocation string `json:"content_location,omitempty"`
}
