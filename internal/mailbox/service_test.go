package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lp24213/mailbridge/internal/config"
	"github.com/lp24213/mailbridge/internal/db"
	"github.com/lp24213/mailbridge/internal/imap"
	"github.com/lp24213/mailbridge/internal/models"
	"github.com/lp24213/mailbridge/internal/smtp"
	"github.com/lp24213/mailbridge/internal/testutil"
	"github.com/lp24213/mailbridge/internal/webhook"
)

type testEnv struct {
	service *Service
	pool    *pgxpool.Pool
	imap    *testutil.TestIMAPServer
	smtp    *testutil.TestSMTPServer
	account *models.MailAccount
}

const testOwner = "owner-1"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	pool := testutil.NewTestDB(t)
	imapServer := testutil.NewTestIMAPServer(t)
	t.Cleanup(imapServer.Close)
	smtpServer := testutil.NewTestSMTPServer(t)
	t.Cleanup(smtpServer.Close)

	cfg := &config.Config{
		Environment:    "test",
		ConnectTimeout: 5 * time.Second,
		CommandTimeout: 10 * time.Second,
	}

	encryptor := testutil.GetTestEncryptor(t)
	dispatcher := webhook.NewDispatcher(pool, "", "")

	service := NewService(pool, encryptor, dispatcher, cfg)
	t.Cleanup(service.Close)

	imapHost, imapPort := testutil.SplitAddr(t, imapServer.Address)
	smtpHost, smtpPort := testutil.SplitAddr(t, smtpServer.Address)
	insecure := false

	account, err := service.CreateAccount(context.Background(), testOwner, CreateAccountInput{
		Address:    imapServer.Username(),
		Password:   imapServer.Password(),
		IMAPHost:   imapHost,
		IMAPPort:   imapPort,
		IMAPSecure: &insecure,
		SMTPHost:   smtpHost,
		SMTPPort:   smtpPort,
		SMTPSecure: &insecure,
	})
	require.NoError(t, err)

	return &testEnv{
		service: service,
		pool:    pool,
		imap:    imapServer,
		smtp:    smtpServer,
		account: account,
	}
}

func TestCreateAccountEncryptsPassword(t *testing.T) {
	env := newTestEnv(t)

	assert.NotEmpty(t, env.account.ID)
	assert.NotContains(t, string(env.account.EncryptedPassword), env.imap.Password())

	accounts, err := env.service.ListAccounts(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, env.account.ID, accounts[0].ID)
}

func TestListMessagesLiveThenCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.imap.AddMessage(t, "INBOX", "<m1@example.org>", "first", "a@example.org", "b@example.org", time.Now().Add(-time.Hour))
	env.imap.AddMessage(t, "INBOX", "<m2@example.org>", "second", "a@example.org", "b@example.org", time.Now())

	// Nothing cached yet; the first listing goes live and fills the cache.
	page, err := env.service.ListMessages(ctx, testOwner, env.account.ID, "INBOX", 10, 0)
	require.NoError(t, err)
	assert.False(t, page.FromCache)
	require.NotEmpty(t, page.Messages)
	assert.Equal(t, "second", page.Messages[0].Subject)

	account, err := db.GetAccount(ctx, env.pool, testOwner, env.account.ID)
	require.NoError(t, err)
	assert.NotNil(t, account.LastSyncAt, "live fetch should bump last_sync_at")

	// The second listing is served from the cache.
	page, err = env.service.ListMessages(ctx, testOwner, env.account.ID, "INBOX", 10, 0)
	require.NoError(t, err)
	assert.True(t, page.FromCache)
	assert.Equal(t, "second", page.Messages[0].Subject)
}

func TestFetchLiveWindowPastEndIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	page, err := env.service.FetchLive(context.Background(), testOwner, env.account.ID, "INBOX", 10, 1000)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.False(t, page.FromCache)
}

func TestGetMessageDecodesAndDispatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	uid := env.imap.AddMessage(t, "INBOX", "<view@example.org>", "view me", "a@example.org", "b@example.org", time.Now())

	decoded, err := env.service.GetMessage(ctx, testOwner, env.account.ID, uid, "INBOX")
	require.NoError(t, err)
	assert.Equal(t, "view me", decoded.Subject)
	assert.Equal(t, uid, decoded.UID)
	assert.Contains(t, decoded.Text, "Test message body.")

	events, err := env.service.Events(ctx, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "email.viewed", events[0].EventType)
	assert.Equal(t, models.EventStatusSkipped, events[0].Status)
}

func TestGetMessageUnknownUID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.GetMessage(context.Background(), testOwner, env.account.ID, 999999, "INBOX")
	require.Error(t, err)
	assert.True(t, errors.Is(err, imap.ErrMessageNotFound))
}

func TestMarkReadMirrorsCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	uid := env.imap.AddMessage(t, "INBOX", "<read@example.org>", "unread", "a@example.org", "b@example.org", time.Now())

	// Prime the cache so the mirror has a row to update.
	_, err := env.service.FetchLive(ctx, testOwner, env.account.ID, "INBOX", 10, 0)
	require.NoError(t, err)

	require.NoError(t, env.service.MarkRead(ctx, testOwner, env.account.ID, uid, "INBOX"))

	page, ok, err := env.service.FetchCached(ctx, testOwner, env.account.ID, "INBOX", 50, 0)
	require.NoError(t, err)
	require.True(t, ok)

	var found *models.MessageSummary
	for i := range page.Messages {
		if page.Messages[i].UID == uid {
			found = &page.Messages[i]
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.IsRead)
}

func TestDeleteMessageRemovesFromCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	uid := env.imap.AddMessage(t, "INBOX", "<gone@example.org>", "doomed", "a@example.org", "b@example.org", time.Now())

	_, err := env.service.FetchLive(ctx, testOwner, env.account.ID, "INBOX", 10, 0)
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteMessage(ctx, testOwner, env.account.ID, uid, "INBOX"))

	page, ok, err := env.service.FetchCached(ctx, testOwner, env.account.ID, "INBOX", 50, 0)
	require.NoError(t, err)
	if ok {
		for _, msg := range page.Messages {
			assert.NotEqual(t, uid, msg.UID, "deleted message should not be listed from cache")
		}
	}
}

func TestSendMessageDispatchesEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.service.SendMessage(ctx, testOwner, env.account.ID, &smtp.OutboundMessage{
		To:      []string{"rcpt@example.org"},
		Subject: "outbound",
		Text:    "hello there",
	})
	require.NoError(t, err)
	require.True(t, result.Success, "send failed: %s %s", result.ErrorCode, result.ErrorMessage)

	received := env.smtp.GetMessages()
	require.Len(t, received, 1)
	assert.Equal(t, []string{"rcpt@example.org"}, received[0].To)

	events, err := env.service.Events(ctx, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "email.sent", events[0].EventType)
}

func TestDeleteAccountRemovesSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.FetchLive(ctx, testOwner, env.account.ID, "INBOX", 10, 0)
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteAccount(ctx, testOwner, env.account.ID))

	_, err = env.service.ListMessages(ctx, testOwner, env.account.ID, "INBOX", 10, 0)
	assert.ErrorIs(t, err, db.ErrAccountNotFound)
}
