package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lp24213/mailbridge/internal/models"
)

// ErrAccountNotFound is returned when a requested mail account cannot be found.
var ErrAccountNotFound = errors.New("mail account not found")

// ErrAccountExists is returned when an owner already has an account for the
// same address.
var ErrAccountExists = errors.New("mail account already exists")

const accountColumns = `
	id,
	owner_id,
	address,
	encrypted_password,
	imap_host,
	imap_port,
	imap_secure,
	smtp_host,
	smtp_port,
	smtp_secure,
	is_active,
	last_sync_at,
	created_at,
	updated_at`

// CreateAccount inserts a new mail account and populates its generated id
// and timestamps.
func CreateAccount(ctx context.Context, pool *pgxpool.Pool, account *models.MailAccount) error {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM mail_accounts WHERE owner_id = $1 AND address = $2)
	`, account.OwnerID, account.Address).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check account existence: %w", err)
	}
	if exists {
		return ErrAccountExists
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO mail_accounts (
			owner_id,
			address,
			encrypted_password,
			imap_host,
			imap_port,
			imap_secure,
			smtp_host,
			smtp_port,
			smtp_secure,
			is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`,
		account.OwnerID,
		account.Address,
		account.EncryptedPassword,
		account.IMAPHost,
		account.IMAPPort,
		account.IMAPSecure,
		account.SMTPHost,
		account.SMTPPort,
		account.SMTPSecure,
		account.IsActive,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccount returns the account with the given id, scoped to its owner.
func GetAccount(ctx context.Context, pool *pgxpool.Pool, ownerID, accountID string) (*models.MailAccount, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM mail_accounts
		WHERE id = $1 AND owner_id = $2
	`, accountID, ownerID)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// ListAccounts returns all accounts for the given owner, newest first.
func ListAccounts(ctx context.Context, pool *pgxpool.Pool, ownerID string) ([]*models.MailAccount, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM mail_accounts
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.MailAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// DeleteAccount removes an account. Cached messages are removed by the
// ON DELETE CASCADE on cached_messages.
func DeleteAccount(ctx context.Context, pool *pgxpool.Pool, ownerID, accountID string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM mail_accounts WHERE id = $1 AND owner_id = $2
	`, accountID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// SetAccountLastSync updates the account's last successful sync timestamp.
func SetAccountLastSync(ctx context.Context, pool *pgxpool.Pool, accountID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE mail_accounts SET last_sync_at = now(), updated_at = now() WHERE id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to set last sync timestamp: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*models.MailAccount, error) {
	var account models.MailAccount
	err := row.Scan(
		&account.ID,
		&account.OwnerID,
		&account.Address,
		&account.EncryptedPassword,
		&account.IMAPHost,
		&account.IMAPPort,
		&account.IMAPSecure,
		&account.SMTPHost,
		&account.SMTPPort,
		&account.SMTPSecure,
		&account.IsActive,
		&account.LastSyncAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
