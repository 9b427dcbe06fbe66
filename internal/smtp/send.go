package smtp

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	"github.com/lp24213/mailbridge/internal/mime"
	"github.com/lp24213/mailbridge/internal/models"
)

// OutboundMessage is one message as submitted for sending. HTML is sanitized
// before composition so unsafe input is never reflected outward.
type OutboundMessage struct {
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []models.OutboundAttachment
}

// Sender composes and transmits outbound messages through the registry's
// cached sessions.
type Sender struct {
	registry *Registry
}

// NewSender creates a sender backed by the given session registry.
func NewSender(registry *Registry) *Sender {
	return &Sender{registry: registry}
}

// Send delivers the message from the account's address. All failures come
// back inside the SendResult; this boundary never returns an error value and
// never panics for transport-level problems.
func (s *Sender) Send(account *models.MailAccount, password string, msg *OutboundMessage) *models.SendResult {
	recipients := cleanRecipients(msg.To)
	if len(recipients) == 0 {
		return failure("no_recipients", "at least one recipient is required")
	}

	attachments, err := resolveAttachments(msg.Attachments)
	if err != nil {
		log.Printf("smtp: attachment resolution failed for account %s: %v", account.ID, err)
		return failure("attachment_failed", "attachment could not be read")
	}

	messageID := generateMessageID(account.Address)
	raw, err := compose(account, recipients, msg, attachments, messageID)
	if err != nil {
		log.Printf("smtp: message composition failed for account %s: %v", account.ID, err)
		return failure("compose_failed", "message could not be composed")
	}

	session, release, err := s.registry.Acquire(account, password)
	if err != nil {
		log.Printf("smtp: connection failed for account %s: %v", account.ID, err)
		if errors.Is(err, ErrTimeout) {
			return failure("timeout", "mail server timed out")
		}
		return failure("connection_failed", "could not connect to mail server")
	}
	defer release()

	result := transmit(session, account.Address, recipients, raw)
	result.MessageID = messageID
	result.AttachmentCount = len(attachments)
	return result
}

// transmit runs the envelope exchange command by command so per-recipient
// rejections are recorded instead of aborting the whole send.
func transmit(session *Session, from string, recipients []string, raw []byte) *models.SendResult {
	c := session.Client()

	if err := c.Mail(from, nil); err != nil {
		session.MarkBroken()
		log.Printf("smtp: MAIL FROM rejected for %s: %v", from, err)
		return failure("send_failed", "sender rejected by mail server")
	}

	accepted := make([]string, 0, len(recipients))
	rejected := make([]string, 0)
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			log.Printf("smtp: recipient %s rejected: %v", rcpt, err)
			rejected = append(rejected, rcpt)
			continue
		}
		accepted = append(accepted, rcpt)
	}

	if len(accepted) == 0 {
		// The transaction is left dangling; reset so the cached session
		// stays usable for the next send.
		if err := c.Reset(); err != nil {
			session.MarkBroken()
		}
		result := failure("all_recipients_rejected", "every recipient was rejected")
		result.Rejected = rejected
		return result
	}

	w, err := c.Data()
	if err != nil {
		session.MarkBroken()
		log.Printf("smtp: DATA rejected: %v", err)
		result := failure("send_failed", "mail server rejected message data")
		result.Rejected = rejected
		return result
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		session.MarkBroken()
		log.Printf("smtp: writing message body failed: %v", err)
		result := failure("send_failed", "message transmission failed")
		result.Rejected = rejected
		return result
	}
	if err := w.Close(); err != nil {
		session.MarkBroken()
		log.Printf("smtp: finishing message failed: %v", err)
		result := failure("send_failed", "message transmission failed")
		result.Rejected = rejected
		return result
	}

	return &models.SendResult{
		Success:  true,
		Accepted: accepted,
		Rejected: rejected,
	}
}

// compose builds the full RFC 5322 message. The HTML body goes through the
// same sanitizer as inbound decoding; a missing text body is synthesized from
// the sanitized HTML.
func compose(account *models.MailAccount, recipients []string, msg *OutboundMessage, attachments []resolvedAttachment, messageID string) ([]byte, error) {
	html := mime.SanitizeHTML(msg.HTML)
	text := msg.Text
	if text == "" && html != "" {
		text = mime.HTMLToText(html)
	}

	builder := enmime.Builder().
		From("", account.Address).
		Subject(msg.Subject).
		Header("Message-Id", messageID)

	for _, rcpt := range recipients {
		builder = builder.To("", rcpt)
	}
	if text != "" {
		builder = builder.Text([]byte(text))
	}
	if html != "" {
		builder = builder.HTML([]byte(html))
	}
	for _, att := range attachments {
		if att.ContentID != "" {
			builder = builder.AddInline(att.Content, att.ContentType, att.Filename, att.ContentID)
			continue
		}
		builder = builder.AddAttachment(att.Content, att.ContentType, att.Filename)
	}

	part, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func cleanRecipients(to []string) []string {
	cleaned := make([]string, 0, len(to))
	for _, rcpt := range to {
		rcpt = strings.TrimSpace(rcpt)
		if rcpt == "" {
			continue
		}
		cleaned = append(cleaned, rcpt)
	}
	return cleaned
}

func generateMessageID(address string) string {
	domain := "localhost"
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		domain = address[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func failure(code, message string) *models.SendResult {
	return &models.SendResult{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}
