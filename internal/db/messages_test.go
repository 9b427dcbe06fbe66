package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp24213/mailbridge/internal/models"
	"github.com/lp24213/mailbridge/internal/testutil"
)

func TestUpsertMessageIdempotent(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	account := seedAccount(t, pool, "owner-1", "user@example.com")

	msg := &models.MessageSummary{
		UID:        7,
		MessageKey: "<m1@example.com>",
		From:       []models.Address{{Name: "Alice", Address: "alice@example.com"}},
		To:         []models.Address{{Address: "user@example.com"}},
		Subject:    "original",
		Date:       time.Now().Add(-time.Hour),
	}
	require.NoError(t, UpsertMessage(ctx, pool, account.ID, "INBOX", msg))

	// Re-sync with changed flags must update, not duplicate.
	msg.Subject = "updated"
	msg.IsRead = true
	require.NoError(t, UpsertMessage(ctx, pool, account.ID, "INBOX", msg))

	count, err := CountCachedMessages(ctx, pool, account.ID, "INBOX")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	messages, err := ListCachedMessages(ctx, pool, account.ID, "INBOX", 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "updated", messages[0].Subject)
	assert.True(t, messages[0].IsRead)
	assert.Equal(t, uint32(7), messages[0].UID)
	require.Len(t, messages[0].From, 1)
	assert.Equal(t, "alice@example.com", messages[0].From[0].Address)
}

func TestSameMessageKeyAcrossFolders(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	account := seedAccount(t, pool, "owner-1", "user@example.com")

	msg := &models.MessageSummary{UID: 1, MessageKey: "<m1@example.com>", Date: time.Now()}
	require.NoError(t, UpsertMessage(ctx, pool, account.ID, "INBOX", msg))
	require.NoError(t, UpsertMessage(ctx, pool, account.ID, "Archive", msg))

	inbox, err := CountCachedMessages(ctx, pool, account.ID, "INBOX")
	require.NoError(t, err)
	archive, err := CountCachedMessages(ctx, pool, account.ID, "Archive")
	require.NoError(t, err)
	assert.Equal(t, 1, inbox)
	assert.Equal(t, 1, archive)
}

func TestListCachedMessagesOrderAndPaging(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	account := seedAccount(t, pool, "owner-1", "user@example.com")

	base := time.Now().Add(-3 * time.Hour)
	for i, key := range []string{"<old@x>", "<mid@x>", "<new@x>"} {
		msg := &models.MessageSummary{
			UID:        uint32(i + 1),
			MessageKey: key,
			Subject:    key,
			Date:       base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, UpsertMessage(ctx, pool, account.ID, "INBOX", msg))
	}

	messages, err := ListCachedMessages(ctx, pool, account.ID, "INBOX", 2, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "<new@x>", messages[0].MessageKey)
	assert.Equal(t, "<mid@x>", messages[1].MessageKey)

	messages, err = ListCachedMessages(ctx, pool, account.ID, "INBOX", 2, 2)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "<old@x>", messages[0].MessageKey)
}

func TestMarkMessageFlags(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	account := seedAccount(t, pool, "owner-1", "user@example.com")

	msg := &models.MessageSummary{UID: 5, MessageKey: "<m1@x>", Date: time.Now()}
	require.NoError(t, UpsertMessage(ctx, pool, account.ID, "INBOX", msg))

	require.NoError(t, MarkMessageRead(ctx, pool, account.ID, "INBOX", 5))

	messages, err := ListCachedMessages(ctx, pool, account.ID, "INBOX", 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRead)

	// Deleted messages disappear from listings and counts.
	require.NoError(t, MarkMessageDeleted(ctx, pool, account.ID, "INBOX", 5))

	messages, err = ListCachedMessages(ctx, pool, account.ID, "INBOX", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	count, err := CountCachedMessages(ctx, pool, account.ID, "INBOX")
	require.NoError(t, err)
	assert.Zero(t, count)
}
