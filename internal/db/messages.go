package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lp24213/mailbridge/internal/models"
)

// UpsertMessage inserts or updates one cached message summary keyed by
// (account_id, folder, message_key). Re-syncing the same remote message
// updates the existing row rather than duplicating it.
func UpsertMessage(ctx context.Context, pool *pgxpool.Pool, accountID, folder string, msg *models.MessageSummary) error {
	// Nil address slices would encode as JSON null.
	from := msg.From
	if from == nil {
		from = []models.Address{}
	}
	to := msg.To
	if to == nil {
		to = []models.Address{}
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO cached_messages (
			account_id,
			folder,
			message_key,
			uid,
			from_json,
			to_json,
			subject,
			date,
			is_read,
			is_deleted,
			has_attachments
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id, folder, message_key) DO UPDATE SET
			uid = EXCLUDED.uid,
			from_json = EXCLUDED.from_json,
			to_json = EXCLUDED.to_json,
			subject = EXCLUDED.subject,
			date = EXCLUDED.date,
			is_read = EXCLUDED.is_read,
			is_deleted = EXCLUDED.is_deleted,
			has_attachments = EXCLUDED.has_attachments,
			updated_at = now()
	`,
		accountID,
		folder,
		msg.MessageKey,
		int64(msg.UID),
		from,
		to,
		msg.Subject,
		msg.Date,
		msg.IsRead,
		msg.IsDeleted,
		msg.HasAttachments,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert cached message: %w", err)
	}

	return nil
}

// ListCachedMessages reads a page of cached summaries for (account, folder),
// newest first. Messages mirrored as deleted are filtered out. An empty
// result means nothing is cached; the caller decides whether to fall back to
// a live fetch.
func ListCachedMessages(ctx context.Context, pool *pgxpool.Pool, accountID, folder string, limit, offset int) ([]models.MessageSummary, error) {
	rows, err := pool.Query(ctx, `
		SELECT
			uid,
			message_key,
			from_json,
			to_json,
			subject,
			COALESCE(date, created_at),
			is_read,
			is_deleted,
			has_attachments
		FROM cached_messages
		WHERE account_id = $1 AND folder = $2 AND is_deleted = FALSE
		ORDER BY date DESC NULLS LAST
		LIMIT $3 OFFSET $4
	`, accountID, folder, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached messages: %w", err)
	}
	defer rows.Close()

	var messages []models.MessageSummary
	for rows.Next() {
		var msg models.MessageSummary
		var uid int64
		if err := rows.Scan(
			&uid,
			&msg.MessageKey,
			&msg.From,
			&msg.To,
			&msg.Subject,
			&msg.Date,
			&msg.IsRead,
			&msg.IsDeleted,
			&msg.HasAttachments,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cached message: %w", err)
		}
		msg.UID = uint32(uid)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached messages: %w", err)
	}

	return messages, nil
}

// CountCachedMessages returns the number of non-deleted cached messages for
// (account, folder).
func CountCachedMessages(ctx context.Context, pool *pgxpool.Pool, accountID, folder string) (int, error) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM cached_messages
		WHERE account_id = $1 AND folder = $2 AND is_deleted = FALSE
	`, accountID, folder).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached messages: %w", err)
	}
	return count, nil
}

// MarkMessageRead mirrors the remote \Seen flag into the cache by UID.
func MarkMessageRead(ctx context.Context, pool *pgxpool.Pool, accountID, folder string, uid uint32) error {
	_, err := pool.Exec(ctx, `
		UPDATE cached_messages
		SET is_read = TRUE, updated_at = now()
		WHERE account_id = $1 AND folder = $2 AND uid = $3
	`, accountID, folder, int64(uid))
	if err != nil {
		return fmt.Errorf("failed to mark cached message read: %w", err)
	}
	return nil
}

// MarkMessageDeleted mirrors the remote \Deleted flag into the cache by UID.
func MarkMessageDeleted(ctx context.Context, pool *pgxpool.Pool, accountID, folder string, uid uint32) error {
	_, err := pool.Exec(ctx, `
		UPDATE cached_messages
		SET is_deleted = TRUE, updated_at = now()
		WHERE account_id = $1 AND folder = $2 AND uid = $3
	`, accountID, folder, int64(uid))
	if err != nil {
		return fmt.Errorf("failed to mark cached message deleted: %w", err)
	}
	return nil
}
