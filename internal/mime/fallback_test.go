package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A source with a broken boundary declaration that still carries readable
// header and body text.
const malformedMessage = "Message-ID: <broken@example.org>\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"Subject: broken\r\n" +
	" but folded\r\n" +
	"Content-Type: multipart/alternative\r\n" +
	"\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Caf=C3=A9 body\r\n" +
	"\n--x\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>HTML part</p><script>alert(1)</script>\r\n"

func TestDecodeFallback(t *testing.T) {
	msg := decodeFallback([]byte(malformedMessage))
	require.NotNil(t, msg)

	assert.Equal(t, "<broken@example.org>", msg.MessageKey)
	assert.Equal(t, "broken but folded", msg.Subject)
	assert.Equal(t, 2006, msg.Date.Year())
	assert.Equal(t, "Café body", msg.Text)
	assert.Contains(t, msg.HTML, "<p>HTML part</p>")
	assert.NotContains(t, msg.HTML, "script")
	assert.Empty(t, msg.Attachments)
	assert.NotNil(t, msg.Attachments)
}

func TestDecodeFallbackEmptySource(t *testing.T) {
	msg := decodeFallback([]byte("complete garbage, no headers"))
	require.NotNil(t, msg)
	assert.Empty(t, msg.Subject)
	assert.Empty(t, msg.Text)
	assert.Empty(t, msg.HTML)
}

func TestScanTopHeaders(t *testing.T) {
	headers := scanTopHeaders([]byte("Subject: hello\r\nX-Thing: a\r\n\tcontinued\r\n\r\nbody"))
	assert.Equal(t, "hello", headers["subject"])
	assert.Equal(t, "a continued", headers["x-thing"])
}

func TestExtractSection(t *testing.T) {
	raw := []byte("Content-Type: text/plain\r\n\r\nplain here\r\n\n--b\r\nContent-Type: text/html\r\n\r\n<p>html here</p>\r\n")

	assert.Equal(t, "plain here", extractSection(raw, "text/plain"))
	assert.Equal(t, "<p>html here</p>", extractSection(raw, "text/html"))
	assert.Equal(t, "", extractSection(raw, "text/csv"))
}

func TestDecodeQuotedPrintable(t *testing.T) {
	assert.Equal(t, "Café", decodeQuotedPrintable("Caf=C3=A9"))
	assert.Equal(t, "plain text", decodeQuotedPrintable("plain text"))
	assert.Equal(t, "", decodeQuotedPrintable(""))
}
