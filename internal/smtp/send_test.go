package smtp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp24213/mailbridge/internal/models"
	"github.com/lp24213/mailbridge/internal/testutil"
)

func newTestSender(t *testing.T, server *testutil.TestSMTPServer) (*Sender, *models.MailAccount) {
	t.Helper()

	registry := NewRegistry(5*time.Second, 10*time.Second)
	t.Cleanup(registry.Close)

	account := testutil.NewTestAccount(t, "", server.Address)
	account.Address = "sender@example.org"

	return NewSender(registry), account
}

func TestSendDeliversMessage(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	defer server.Close()

	sender, account := newTestSender(t, server)

	result := sender.Send(account, server.Password(), &OutboundMessage{
		To:      []string{"rcpt@example.org"},
		Subject: "hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})

	require.True(t, result.Success, "send failed: %s %s", result.ErrorCode, result.ErrorMessage)
	assert.Equal(t, []string{"rcpt@example.org"}, result.Accepted)
	assert.Empty(t, result.Rejected)
	assert.NotEmpty(t, result.MessageID)
	assert.Contains(t, result.MessageID, "@example.org>")

	received := server.GetMessages()
	require.Len(t, received, 1)
	assert.Equal(t, "sender@example.org", received[0].From)
	assert.Equal(t, []string{"rcpt@example.org"}, received[0].To)

	data := string(received[0].Data)
	assert.Contains(t, data, "Subject: hello")
	assert.Contains(t, data, "plain body")
}

func TestSendSanitizesHTML(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	defer server.Close()

	sender, account := newTestSender(t, server)

	result := sender.Send(account, server.Password(), &OutboundMessage{
		To:      []string{"rcpt@example.org"},
		Subject: "xss",
		HTML:    `<p>safe</p><script>alert(1)</script>`,
	})

	require.True(t, result.Success)

	received := server.GetMessages()
	require.Len(t, received, 1)
	assert.NotContains(t, string(received[0].Data), "<script>")
}

func TestSendDropsEmptyAttachments(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	defer server.Close()

	sender, account := newTestSender(t, server)

	result := sender.Send(account, server.Password(), &OutboundMessage{
		To:      []string{"rcpt@example.org"},
		Subject: "attachments",
		Text:    "see attachments",
		Attachments: []models.OutboundAttachment{
			{Filename: "kept.txt", ContentType: "text/plain", Source: models.BytesSource([]byte("content"))},
			{Filename: "empty.txt", ContentType: "text/plain", Source: nil},
		},
	})

	require.True(t, result.Success, "send failed: %s %s", result.ErrorCode, result.ErrorMessage)
	assert.Equal(t, 1, result.AttachmentCount)

	received := server.GetMessages()
	require.Len(t, received, 1)
	data := string(received[0].Data)
	assert.Contains(t, data, "kept.txt")
	assert.NotContains(t, data, "empty.txt")
}

func TestSendNoRecipients(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	defer server.Close()

	sender, account := newTestSender(t, server)

	result := sender.Send(account, server.Password(), &OutboundMessage{
		To:      []string{"", "  "},
		Subject: "nobody",
		Text:    "body",
	})

	assert.False(t, result.Success)
	assert.Equal(t, "no_recipients", result.ErrorCode)
	assert.Empty(t, server.GetMessages())
}

func TestSendConnectionFailure(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	sender, account := newTestSender(t, server)
	server.Close()

	result := sender.Send(account, "password", &OutboundMessage{
		To:      []string{"rcpt@example.org"},
		Subject: "unreachable",
		Text:    "body",
	})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorCode)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestSendReusesSession(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	defer server.Close()

	sender, account := newTestSender(t, server)

	for i := 0; i < 2; i++ {
		result := sender.Send(account, server.Password(), &OutboundMessage{
			To:      []string{"rcpt@example.org"},
			Subject: "repeat",
			Text:    "body",
		})
		require.True(t, result.Success, "send %d failed: %s", i, result.ErrorCode)
	}

	assert.Len(t, server.GetMessages(), 2)
}
