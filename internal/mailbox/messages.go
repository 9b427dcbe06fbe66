package mailbox

import (
	"context"

	goimap "github.com/emersion/go-imap"
	"github.com/lp24213/mailbridge/internal/db"
	"github.com/lp24213/mailbridge/internal/mime"
	"github.com/lp24213/mailbridge/internal/models"
)

// ListMessages serves a page of summaries, preferring the cache and falling
// back to a live fetch when nothing is cached for the folder.
func (s *Service) ListMessages(ctx context.Context, ownerID, accountID, folder string, limit, offset int) (*models.MessagePage, error) {
	page, ok, err := s.FetchCached(ctx, ownerID, accountID, folder, limit, offset)
	if err != nil {
		return nil, err
	}
	if ok {
		return page, nil
	}
	return s.FetchLive(ctx, ownerID, accountID, folder, limit, offset)
}

// FetchCached reads summaries from the local cache. The boolean reports
// whether anything was cached at all; an empty cache is a signal to go live,
// not an error.
func (s *Service) FetchCached(ctx context.Context, ownerID, accountID, folder string, limit, offset int) (*models.MessagePage, bool, error) {
	account, err := db.GetAccount(ctx, s.pool, ownerID, accountID)
	if err != nil {
		return nil, false, err
	}

	total, err := db.CountCachedMessages(ctx, s.pool, account.ID, folder)
	if err != nil {
		return nil, false, err
	}
	if total == 0 {
		return nil, false, nil
	}

	messages, err := db.ListCachedMessages(ctx, s.pool, account.ID, folder, limit, offset)
	if err != nil {
		return nil, false, err
	}

	return &models.MessagePage{
		Messages:  messages,
		Total:     uint32(total),
		Folder:    folder,
		FromCache: true,
	}, true, nil
}

// FetchLive pulls the requested window from the remote server and refreshes
// the cache with what it saw. Cache writes are best-effort; the page is
// returned even when every upsert fails.
func (s *Service) FetchLive(ctx context.Context, ownerID, accountID, folder string, limit, offset int) (*models.MessagePage, error) {
	account, password, err := s.loadAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}

	session, release, err := s.imapRegistry.Acquire(account, password)
	if err != nil {
		return nil, err
	}
	defer release()

	mbox, err := session.SelectFolder(folder)
	if err != nil {
		return nil, err
	}

	messages, err := session.FetchWindow(mbox, limit, offset)
	if err != nil {
		return nil, err
	}

	for i := range messages {
		msg := messages[i]
		s.bestEffort("message cache upsert", func() error {
			return db.UpsertMessage(ctx, s.pool, account.ID, folder, &msg)
		})
	}
	s.bestEffort("last-sync update", func() error {
		return db.SetAccountLastSync(ctx, s.pool, account.ID)
	})

	return &models.MessagePage{
		Messages:  messages,
		Total:     mbox.Messages,
		Folder:    folder,
		FromCache: false,
	}, nil
}

// GetMessage fetches and decodes the full source of one message.
func (s *Service) GetMessage(ctx context.Context, ownerID, accountID string, uid uint32, folder string) (*models.DecodedMessage, error) {
	account, password, err := s.loadAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}

	session, release, err := s.imapRegistry.Acquire(account, password)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := session.SelectFolder(folder); err != nil {
		return nil, err
	}

	msg, raw, err := session.FetchSource(uid)
	if err != nil {
		return nil, err
	}

	decoded := mime.Decode(raw)
	decoded.UID = uid
	for _, flag := range msg.Flags {
		if flag == goimap.SeenFlag {
			decoded.IsRead = true
			break
		}
	}

	s.dispatcher.Dispatch(ctx, "email.viewed", map[string]any{
		"account_id": account.ID,
		"folder":     folder,
		"uid":        uid,
		"message_id": decoded.MessageKey,
	})

	return decoded, nil
}

// MarkRead sets the read flag on the remote server, then mirrors it into the
// cache. The remote result is authoritative.
func (s *Service) MarkRead(ctx context.Context, ownerID, accountID string, uid uint32, folder string) error {
	account, password, err := s.loadAccount(ctx, ownerID, accountID)
	if err != nil {
		return err
	}

	session, release, err := s.imapRegistry.Acquire(account, password)
	if err != nil {
		return err
	}
	defer release()

	if _, err := session.SelectFolder(folder); err != nil {
		return err
	}
	if err := session.MarkSeen(uid); err != nil {
		return err
	}

	s.bestEffort("read-flag cache mirror", func() error {
		return db.MarkMessageRead(ctx, s.pool, account.ID, folder, uid)
	})
	s.dispatcher.Dispatch(ctx, "email.read", map[string]any{
		"account_id": account.ID,
		"folder":     folder,
		"uid":        uid,
	})

	return nil
}

// DeleteMessage flags the remote message deleted and expunges the folder,
// then mirrors the flag into the cache.
func (s *Service) DeleteMessage(ctx context.Context, ownerID, accountID string, uid uint32, folder string) error {
	account, password, err := s.loadAccount(ctx, ownerID, accountID)
	if err != nil {
		return err
	}

	session, release, err := s.imapRegistry.Acquire(account, password)
	if err != nil {
		return err
	}
	defer release()

	if _, err := session.SelectFolder(folder); err != nil {
		return err
	}
	if err := session.MarkDeleted(uid); err != nil {
		return err
	}
	s.bestEffort("expunge", func() error {
		return session.Client().Expunge(nil)
	})

	s.bestEffort("deleted-flag cache mirror", func() error {
		return db.MarkMessageDeleted(ctx, s.pool, account.ID, folder, uid)
	})
	s.dispatcher.Dispatch(ctx, "email.deleted", map[string]any{
		"account_id": account.ID,
		"folder":     folder,
		"uid":        uid,
	})

	return nil
}
