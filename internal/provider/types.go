package provider

import "time"

// SyncResponse is the reply to a sync-start call. Ready stays false while
// the provider is still preparing the mailbox window; once true,
// SyncUpdatedToken carries the bookmark cursor the first fetch starts from.
type SyncResponse struct {
	Ready            bool   `json:"ready"`
	SyncUpdatedToken string `json:"syncUpdatedToken"`
}

// SyncUpdatedResponse is one page of changed messages. NextPageToken is set
// while more pages remain in this run; NextDeltaToken, whenever present,
// supersedes any cursor seen earlier in the page sequence.
type SyncUpdatedResponse struct {
	Records        []Message `json:"records"`
	NextPageToken  string    `json:"nextPageToken"`
	NextDeltaToken string    `json:"nextDeltaToken"`
}

// Address is a display-annotated email address as the provider reports it.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Raw     string `json:"raw"`
}

// Attachment is the provider's attachment record.
type Attachment struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	MimeType        string `json:"mimeType"`
	Size            int64  `json:"size"`
	Inline          bool   `json:"inline"`
	ContentID       string `json:"contentId"`
	Content         string `json:"content"`
	ContentLocation string `json:"contentLocation"`
}

// Message is one raw remote message as returned by the updated-records feed.
type Message struct {
	ID                   string            `json:"id"`
	ThreadID             string            `json:"threadId"`
	CreatedTime          time.Time         `json:"createdTime"`
	LastModifiedTime     time.Time         `json:"lastModifiedTime"`
	SentAt               time.Time         `json:"sentAt"`
	ReceivedAt           time.Time         `json:"receivedAt"`
	InternetMessageID    string            `json:"internetMessageId"`
	Subject              string            `json:"subject"`
	SysLabels            []string          `json:"sysLabels"`
	Keywords             []string          `json:"keywords"`
	SysClassifications   []string          `json:"sysClassifications"`
	Sensitivity          string            `json:"sensitivity"`
	MeetingMessageMethod string            `json:"meetingMessageMethod"`
	From                 Address           `json:"from"`
	To                   []Address         `json:"to"`
	Cc                   []Address         `json:"cc"`
	Bcc                  []Address         `json:"bcc"`
	ReplyTo              []Address         `json:"replyTo"`
	HasAttachments       bool              `json:"hasAttachments"`
	Body                 string            `json:"body"`
	BodySnippet          string            `json:"bodySnippet"`
	Attachments          []Attachment      `json:"attachments"`
	InReplyTo            string            `json:"inReplyTo"`
	References           string            `json:"references"`
	ThreadIndex          string            `json:"threadIndex"`
	InternetHeaders      map[string]string `json:"internetHeaders"`
	FolderID             string            `json:"folderId"`
	Omitted              []string          `json:"omitted"`
}

// SendMessageRequest is the payload for sending a message through the
// provider. ReplyTo is a one-element list by provider convention.
type SendMessageRequest struct {
	From       Address   `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	InReplyTo  string    `json:"inReplyTo,omitempty"`
	References string    `json:"references,omitempty"`
	To         []Address `json:"to"`
	Cc         []Address `json:"cc,omitempty"`
	Bcc        []Address `json:"bcc,omitempty"`
	ReplyTo    []Address `json:"replyTo,omitempty"`
	ThreadID   string    `json:"threadId,omitempty"`
}

// SendMessageResponse carries the id the provider assigned to a sent message.
type SendMessageResponse struct {
	ID string `json:"id"`
}
