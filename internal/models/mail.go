package models

import (
	"io"
	"time"
)

// MailAccount is one user's external mailbox configuration. The password is
// only ever stored encrypted; the plaintext exists in memory for the duration
// of a single connection attempt.
type MailAccount struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"owner_id"`
	Address           string     `json:"address"`
	EncryptedPassword []byte     `json:"-"`
	IMAPHost          string     `json:"imap_host"`
	IMAPPort          int        `json:"imap_port"`
	IMAPSecure        bool       `json:"imap_secure"`
	SMTPHost          string     `json:"smtp_host"`
	SMTPPort          int        `json:"smtp_port"`
	SMTPSecure        bool       `json:"smtp_secure"`
	IsActive          bool       `json:"is_active"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Address is a single mailbox address with an optional display name.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// MessageSummary is the envelope-level projection of one remote message, as
// listed by a folder fetch. The UID is only stable within its folder; the
// MessageKey (Message-ID header, or a synthetic local key when the header is
// missing) is the cache's natural key.
type MessageSummary struct {
	UID            uint32    `json:"uid"`
	MessageKey     string    `json:"message_id"`
	From           []Address `json:"from"`
	To             []Address `json:"to"`
	Subject        string    `json:"subject"`
	Date           time.Time `json:"date"`
	IsRead         bool      `json:"is_read"`
	IsDeleted      bool      `json:"is_deleted"`
	HasAttachments bool      `json:"has_attachments"`
}

// MessagePage is one page of summaries for (account, folder, limit, offset).
type MessagePage struct {
	Messages  []MessageSummary `json:"messages"`
	Total     uint32           `json:"total"`
	Folder    string           `json:"folder"`
	FromCache bool             `json:"from_cache"`
}

// DecodedMessage is the ephemeral result of decoding one raw message source.
// It is never persisted in full; attachments carry their raw content.
type DecodedMessage struct {
	UID         uint32       `json:"uid"`
	MessageKey  string       `json:"message_id"`
	From        []Address    `json:"from"`
	To          []Address    `json:"to"`
	Subject     string       `json:"subject"`
	Date        time.Time    `json:"date"`
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments"`
	IsRead      bool         `json:"is_read"`
}

// Attachment describes one decoded attachment part.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentID   string `json:"content_id,omitempty"`
	IsInline    bool   `json:"is_inline"`
	Content     []byte `json:"-"`
}

// AttachmentSource is the tagged variant for outbound attachment content.
// Handlers accept bytes, base64 text, file paths, or streams; the sender
// resolves all of them to raw bytes before any transport code runs.
type AttachmentSource interface {
	isAttachmentSource()
}

type BytesSource []byte

type Base64Source string

type FilePathSource string

type ReaderSource struct {
	Reader io.Reader
}

func (BytesSource) isAttachmentSource()    {}
func (Base64Source) isAttachmentSource()   {}
func (FilePathSource) isAttachmentSource() {}
func (ReaderSource) isAttachmentSource()   {}

// OutboundAttachment is one attachment as submitted to the sender. A nil
// Source marks an empty form field; those are dropped, not rejected.
type OutboundAttachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Source      AttachmentSource
}

// SendResult is the terminal result of an outbound send. Transport and
// authentication failures are reported here, never as a panic or a raw
// provider error.
type SendResult struct {
	Success         bool     `json:"success"`
	MessageID       string   `json:"message_id,omitempty"`
	Accepted        []string `json:"accepted,omitempty"`
	Rejected        []string `json:"rejected,omitempty"`
	AttachmentCount int      `json:"attachment_count"`
	ErrorCode       string   `json:"error_code,omitempty"`
	ErrorMessage    string   `json:"error,omitempty"`
}

// Integration event delivery statuses.
const (
	EventStatusPending   = "pending"
	EventStatusDelivered = "delivered"
	EventStatusFailed    = "failed"
	EventStatusSkipped   = "skipped"
)

// IntegrationEvent is one append-only record of a dispatched (or attempted)
// integration event. Rows are written on every dispatch regardless of
// delivery outcome and are never mutated afterwards except for the delivery
// status transition.
type IntegrationEvent struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}
