package imap

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/lp24213/mailbridge/internal/models"
)

// SelectFolder selects the given folder on the session and returns its
// status. The session's operation lock is already held, so the selection
// stays valid for the rest of the acquired sequence.
func (s *Session) SelectFolder(folder string) (*imap.MailboxStatus, error) {
	mbox, err := s.Client().Select(folder, false)
	if err != nil {
		s.MarkBroken()
		return nil, fmt.Errorf("%w: failed to select folder %s", ErrConnectionFailed, folder)
	}
	return mbox, nil
}

// FetchWindow fetches envelope, flag, and structure metadata (no bodies) for
// the most recent `limit` messages starting `offset` back from the newest
// message of the selected folder. Results are ordered newest first. A window
// past the oldest message yields an empty slice, never an error.
func (s *Session) FetchWindow(mbox *imap.MailboxStatus, limit, offset int) ([]models.MessageSummary, error) {
	from, to, ok := seqWindow(mbox.Messages, limit, offset)
	if !ok {
		return []models.MessageSummary{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, to)

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		imap.FetchBodyStructure,
		imap.FetchInternalDate,
	}

	messages := make(chan *imap.Message, to-from+1)
	done := make(chan error, 1)

	go func() {
		done <- s.Client().Fetch(seqSet, items, messages)
	}()

	var fetched []*imap.Message
	for msg := range messages {
		fetched = append(fetched, msg)
	}

	if err := <-done; err != nil {
		s.MarkBroken()
		return nil, classifyNetErr(err)
	}

	// Newest first.
	sort.Slice(fetched, func(i, j int) bool {
		return fetched[i].SeqNum > fetched[j].SeqNum
	})

	summaries := make([]models.MessageSummary, 0, len(fetched))
	for _, msg := range fetched {
		summaries = append(summaries, summarize(msg))
	}

	return summaries, nil
}

// FetchSource fetches the full raw source of the message with the given UID.
// Returns ErrMessageNotFound when the UID no longer exists in the selected
// folder, for example because another client deleted it.
func (s *Session) FetchSource(uid uint32) (*imap.Message, []byte, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.Client().UidFetch(seqSet, items, messages)
	}()

	msg := <-messages
	for range messages {
		// Drain; a UID fetch returns at most one message.
	}

	if err := <-done; err != nil {
		s.MarkBroken()
		return nil, nil, classifyNetErr(err)
	}

	if msg == nil {
		return nil, nil, ErrMessageNotFound
	}

	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return nil, nil, ErrMessageNotFound
	}

	raw, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message source: %w", err)
	}

	return msg, raw, nil
}

// AddFlags issues a remote flag mutation for one UID. The result is
// authoritative: the cache mirror never affects it.
func (s *Session) AddFlags(uid uint32, flags ...string) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	values := make([]interface{}, len(flags))
	for i, flag := range flags {
		values[i] = flag
	}

	if err := s.Client().UidStore(seqSet, item, values, nil); err != nil {
		s.MarkBroken()
		return classifyNetErr(err)
	}

	return nil
}

// MarkSeen marks the message with the given UID as read on the server.
func (s *Session) MarkSeen(uid uint32) error {
	return s.AddFlags(uid, imap.SeenFlag)
}

// MarkDeleted flags the message with the given UID as deleted on the server.
func (s *Session) MarkDeleted(uid uint32) error {
	return s.AddFlags(uid, imap.DeletedFlag)
}

// summarize maps a fetched IMAP message to a summary record.
func summarize(msg *imap.Message) models.MessageSummary {
	summary := models.MessageSummary{
		UID:            msg.Uid,
		Date:           msg.InternalDate,
		HasAttachments: hasAttachments(msg.BodyStructure),
	}

	for _, flag := range msg.Flags {
		switch flag {
		case imap.SeenFlag:
			summary.IsRead = true
		case imap.DeletedFlag:
			summary.IsDeleted = true
		}
	}

	if env := msg.Envelope; env != nil {
		summary.From = convertAddresses(env.From)
		summary.To = convertAddresses(env.To)
		summary.Subject = env.Subject
		if !env.Date.IsZero() {
			summary.Date = env.Date
		}
		summary.MessageKey = env.MessageId
	}

	// A missing Message-ID header still needs a stable cache key.
	if summary.MessageKey == "" {
		summary.MessageKey = fmt.Sprintf("local-%d", msg.Uid)
	}

	return summary
}

// hasAttachments reports whether any part of the body structure carries an
// attachment disposition or a filename parameter.
func hasAttachments(bs *imap.BodyStructure) bool {
	if bs == nil {
		return false
	}

	if strings.EqualFold(bs.Disposition, "attachment") {
		return true
	}
	if bs.DispositionParams != nil && bs.DispositionParams["filename"] != "" {
		return true
	}

	for _, part := range bs.Parts {
		if hasAttachments(part) {
			return true
		}
	}

	return false
}

// convertAddresses maps IMAP envelope addresses to the model representation.
func convertAddresses(addresses []*imap.Address) []models.Address {
	result := make([]models.Address, 0, len(addresses))
	for _, address := range addresses {
		if address == nil || (address.MailboxName == "" && address.HostName == "") {
			continue
		}
		result = append(result, models.Address{
			Name:    address.PersonalName,
			Address: fmt.Sprintf("%s@%s", address.MailboxName, address.HostName),
		})
	}
	return result
}
