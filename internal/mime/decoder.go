package mime

import (
	"bytes"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/lp24213/mailbridge/internal/models"
)

// Decode converts one raw message source into a structured message. It never
// fails: when the structured parser rejects the input, a degraded
// text-matching extraction runs instead, and a message that yields neither
// body still produces a DecodedMessage with empty fields. Both paths
// sanitize the HTML body and synthesize text from HTML when no explicit
// plain-text part exists.
func Decode(raw []byte) *models.DecodedMessage {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		log.Printf("mime: structured decode failed, using fallback: %v", err)
		return decodeFallback(raw)
	}

	msg := &models.DecodedMessage{
		MessageKey:  strings.TrimSpace(envelope.GetHeader("Message-Id")),
		Subject:     envelope.GetHeader("Subject"),
		HTML:        SanitizeHTML(envelope.HTML),
		Text:        strings.TrimSpace(envelope.Text),
		From:        headerAddresses(envelope, "From"),
		To:          headerAddresses(envelope, "To"),
		Attachments: collectAttachments(envelope),
	}

	if date, err := mail.ParseDate(envelope.GetHeader("Date")); err == nil {
		msg.Date = date
	}

	if msg.Text == "" {
		msg.Text = HTMLToText(msg.HTML)
	}

	return msg
}

// collectAttachments gathers regular and inline attachment parts in order,
// keeping raw content and inline content-ids for reference rendering.
func collectAttachments(envelope *enmime.Envelope) []models.Attachment {
	attachments := make([]models.Attachment, 0, len(envelope.Attachments)+len(envelope.Inlines))

	for _, part := range envelope.Attachments {
		attachments = append(attachments, partToAttachment(part, false))
	}
	for _, part := range envelope.Inlines {
		// Inline parts without a filename are usually body alternatives,
		// not attachments.
		if part.FileName == "" && part.ContentID == "" {
			continue
		}
		attachments = append(attachments, partToAttachment(part, true))
	}

	return attachments
}

func partToAttachment(part *enmime.Part, inline bool) models.Attachment {
	filename := part.FileName
	if filename == "" {
		filename = "attachment"
	}

	contentType := part.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return models.Attachment{
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(part.Content)),
		ContentID:   part.ContentID,
		IsInline:    inline || part.ContentID != "",
		Content:     part.Content,
	}
}

func headerAddresses(envelope *enmime.Envelope, header string) []models.Address {
	list, err := envelope.AddressList(header)
	if err != nil {
		return nil
	}

	result := make([]models.Address, 0, len(list))
	for _, addr := range list {
		result = append(result, models.Address{Name: addr.Name, Address: addr.Address})
	}
	return result
}

// parseDate is a small helper kept for the fallback path, which sees only
// raw header lines.
func parseDate(value string) time.Time {
	date, err := mail.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return date
}
