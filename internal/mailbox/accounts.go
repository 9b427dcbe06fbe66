package mailbox

import (
	"context"
	"fmt"

	"github.com/lp24213/mailbridge/internal/db"
	"github.com/lp24213/mailbridge/internal/models"
)

// CreateAccountInput carries the provisioning request. Host and port fields
// left at their zero value fall back to the configured defaults.
type CreateAccountInput struct {
	Address    string
	Password   string
	IMAPHost   string
	IMAPPort   int
	IMAPSecure *bool
	SMTPHost   string
	SMTPPort   int
	SMTPSecure *bool
}

// CreateAccount encrypts the credential and stores the new account. The
// plaintext password is never persisted.
func (s *Service) CreateAccount(ctx context.Context, ownerID string, input CreateAccountInput) (*models.MailAccount, error) {
	if input.Address == "" || input.Password == "" {
		return nil, fmt.Errorf("address and password are required")
	}

	encrypted, err := s.encryptor.Encrypt(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credential: %w", err)
	}

	account := &models.MailAccount{
		OwnerID:           ownerID,
		Address:           input.Address,
		EncryptedPassword: encrypted,
		IMAPHost:          defaultString(input.IMAPHost, s.cfg.DefaultIMAPHost),
		IMAPPort:          defaultInt(input.IMAPPort, s.cfg.DefaultIMAPPort),
		IMAPSecure:        defaultBool(input.IMAPSecure, s.cfg.DefaultIMAPSecure),
		SMTPHost:          defaultString(input.SMTPHost, s.cfg.DefaultSMTPHost),
		SMTPPort:          defaultInt(input.SMTPPort, s.cfg.DefaultSMTPPort),
		SMTPSecure:        defaultBool(input.SMTPSecure, s.cfg.DefaultSMTPSecure),
		IsActive:          true,
	}

	if err := db.CreateAccount(ctx, s.pool, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns the owner's accounts. Encrypted credentials never
// leave the model's non-serialized field.
func (s *Service) ListAccounts(ctx context.Context, ownerID string) ([]*models.MailAccount, error) {
	return db.ListAccounts(ctx, s.pool, ownerID)
}

// DeleteAccount removes the account, its cached messages (by cascade), and
// any live sessions held for it.
func (s *Service) DeleteAccount(ctx context.Context, ownerID, accountID string) error {
	if err := db.DeleteAccount(ctx, s.pool, ownerID, accountID); err != nil {
		return err
	}
	s.imapRegistry.Remove(accountID)
	s.smtpRegistry.Remove(accountID)
	return nil
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultBool(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
