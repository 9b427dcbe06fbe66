package testutil

import (
	"net"
	"strconv"
	"testing"

	"github.com/lp24213/mailbridge/internal/models"
)

// SplitAddr splits a listener address into host and numeric port.
func SplitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("Failed to split address %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Invalid port in address %q: %v", addr, err)
	}
	return host, port
}

// NewTestAccount builds an account pointing at test servers. Either address
// may be empty when the corresponding side is unused.
func NewTestAccount(t *testing.T, imapAddr, smtpAddr string) *models.MailAccount {
	t.Helper()

	account := &models.MailAccount{
		ID:       "test-account",
		OwnerID:  "test-owner",
		Address:  "username",
		IsActive: true,
	}
	if imapAddr != "" {
		host, port := SplitAddr(t, imapAddr)
		account.IMAPHost = host
		account.IMAPPort = port
	}
	if smtpAddr != "" {
		host, port := SplitAddr(t, smtpAddr)
		account.SMTPHost = host
		account.SMTPPort = port
	}
	return account
}
