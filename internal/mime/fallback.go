package mime

import (
	"bufio"
	"bytes"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/lp24213/mailbridge/internal/models"
)

// decodeFallback is the degraded path for sources the structured parser
// rejects. It scans the raw source for the first text/plain and first
// text/html sections, unfolds quoted-printable soft breaks, and applies the
// same sanitizer as the primary path. Attachments are not recovered here;
// the result carries an empty attachment list rather than failing the whole
// operation.
func decodeFallback(raw []byte) *models.DecodedMessage {
	msg := &models.DecodedMessage{Attachments: []models.Attachment{}}

	headers := scanTopHeaders(raw)
	msg.Subject = headers["subject"]
	msg.MessageKey = headers["message-id"]
	msg.Date = parseDate(headers["date"])

	text := extractSection(raw, "text/plain")
	html := extractSection(raw, "text/html")

	msg.HTML = SanitizeHTML(decodeQuotedPrintable(html))
	msg.Text = strings.TrimSpace(decodeQuotedPrintable(text))
	if msg.Text == "" {
		msg.Text = HTMLToText(msg.HTML)
	}

	return msg
}

// scanTopHeaders reads the top-level header block (up to the first blank
// line) into a lowercase-keyed map. Folded continuation lines are appended.
func scanTopHeaders(raw []byte) map[string]string {
	headers := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var lastKey string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}

		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && lastKey != "" {
			headers[lastKey] += " " + strings.TrimSpace(line)
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		lastKey = strings.ToLower(strings.TrimSpace(key))
		headers[lastKey] = strings.TrimSpace(value)
	}

	return headers
}

// extractSection returns the body text of the first section whose
// Content-Type matches, reading from the blank line after that header until
// the next MIME boundary marker or the next Content-Type header.
func extractSection(raw []byte, contentType string) string {
	source := string(raw)
	lower := strings.ToLower(source)

	start := strings.Index(lower, "content-type: "+contentType)
	if start < 0 {
		return ""
	}

	rest := source[start:]

	// The body starts after the part's header block.
	bodyStart := strings.Index(rest, "\r\n\r\n")
	sepLen := 4
	if bodyStart < 0 {
		bodyStart = strings.Index(rest, "\n\n")
		sepLen = 2
	}
	if bodyStart < 0 {
		return ""
	}

	body := rest[bodyStart+sepLen:]

	// Stop at the next boundary or part header.
	if end := strings.Index(body, "\n--"); end >= 0 {
		body = body[:end]
	}
	if end := strings.Index(strings.ToLower(body), "content-type:"); end >= 0 {
		body = body[:end]
	}

	return strings.Trim(body, "\r\n")
}

// decodeQuotedPrintable decodes quoted-printable content, tolerating input
// that is not actually encoded.
func decodeQuotedPrintable(content string) string {
	if content == "" {
		return ""
	}
	if !strings.Contains(content, "=") {
		return content
	}

	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(content)))
	if err != nil {
		// Partial output is still better than the encoded form; keep what
		// decoded cleanly and fall back to the original when nothing did.
		if len(decoded) == 0 {
			return content
		}
	}
	return string(decoded)
}
