// Package mailbox is the service root tying the credential vault, session
// registries, message cache, MIME decoding, and event dispatch together
// behind the account-scoped operations the HTTP handlers call.
package mailbox

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lp24213/mailbridge/internal/config"
	"github.com/lp24213/mailbridge/internal/crypto"
	"github.com/lp24213/mailbridge/internal/db"
	"github.com/lp24213/mailbridge/internal/imap"
	"github.com/lp24213/mailbridge/internal/models"
	"github.com/lp24213/mailbridge/internal/smtp"
	"github.com/lp24213/mailbridge/internal/webhook"
)

// Service owns the shared session registries and the encryptor. One instance
// lives for the process; handlers call it per request.
type Service struct {
	pool         *pgxpool.Pool
	imapRegistry *imap.Registry
	smtpRegistry *smtp.Registry
	sender       *smtp.Sender
	encryptor    *crypto.Encryptor
	dispatcher   *webhook.Dispatcher
	cfg          *config.Config
}

// NewService wires the service root from its long-lived dependencies.
func NewService(pool *pgxpool.Pool, encryptor *crypto.Encryptor, dispatcher *webhook.Dispatcher, cfg *config.Config) *Service {
	smtpRegistry := smtp.NewRegistry(cfg.ConnectTimeout, cfg.CommandTimeout)
	return &Service{
		pool:         pool,
		imapRegistry: imap.NewRegistry(cfg.ConnectTimeout, cfg.CommandTimeout),
		smtpRegistry: smtpRegistry,
		sender:       smtp.NewSender(smtpRegistry),
		encryptor:    encryptor,
		dispatcher:   dispatcher,
		cfg:          cfg,
	}
}

// Close shuts both session registries down. Inbound sessions get a
// best-effort logout; outbound transports are just dropped.
func (s *Service) Close() {
	s.imapRegistry.Close()
	s.smtpRegistry.Close()
}

// loadAccount fetches the account and decrypts its stored credential. The
// plaintext lives only as long as the caller's connection attempt.
func (s *Service) loadAccount(ctx context.Context, ownerID, accountID string) (*models.MailAccount, string, error) {
	account, err := db.GetAccount(ctx, s.pool, ownerID, accountID)
	if err != nil {
		return nil, "", err
	}

	password, err := s.encryptor.Decrypt(account.EncryptedPassword)
	if err != nil {
		return nil, "", fmt.Errorf("credential for account %s: %w", accountID, err)
	}

	return account, password, nil
}

// bestEffort runs a non-critical side effect. Failures are logged and
// swallowed so cache writes never fail a primary operation.
func (s *Service) bestEffort(what string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("mailbox: non-critical %s failed: %v", what, err)
	}
}
