package smtp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/lp24213/mailbridge/internal/models"
)

// ErrConnectionFailed is returned when the outbound handshake or
// authentication fails. Surfaced to the caller; never retried here.
var ErrConnectionFailed = errors.New("smtp connection failed")

// ErrTimeout wraps ErrConnectionFailed for hung-server cases; the session is
// evicted rather than retried in place.
var ErrTimeout = fmt.Errorf("%w: timed out", ErrConnectionFailed)

// outboundSession holds the one cached outbound client for an account. The
// mutex keeps a session from being used by two sends at once; outbound
// sessions carry no folder state, so no further serialization is needed.
type outboundSession struct {
	mu       sync.Mutex
	client   *smtp.Client
	lastUsed time.Time
	broken   bool
}

// Registry caches one authenticated outbound session per account, mirroring
// the inbound registry: liveness check on reuse, reconnect on failure,
// eviction on timeout. Outbound sessions need no explicit logout; Close just
// drops the transports.
type Registry struct {
	mu             sync.Mutex
	sessions       map[string]*outboundSession
	connectTimeout time.Duration
	commandTimeout time.Duration
}

// NewRegistry creates an empty outbound session registry.
func NewRegistry(connectTimeout, commandTimeout time.Duration) *Registry {
	return &Registry{
		sessions:       make(map[string]*outboundSession),
		connectTimeout: connectTimeout,
		commandTimeout: commandTimeout,
	}
}

// Session is an acquired, exclusively-held outbound session.
type Session struct {
	entry *outboundSession
}

// Client returns the underlying SMTP client.
func (s *Session) Client() *smtp.Client {
	return s.entry.client
}

// MarkBroken flags the session for disposal on release.
func (s *Session) MarkBroken() {
	s.entry.broken = true
}

// Acquire returns a ready outbound session for the account, reusing the
// cached one when a NOOP confirms it is alive. The release function must
// always be called.
func (r *Registry) Acquire(account *models.MailAccount, password string) (*Session, func(), error) {
	entry := r.getOrCreateEntry(account.ID)

	entry.mu.Lock()

	if entry.client != nil {
		if entry.client.Noop() == nil {
			entry.lastUsed = time.Now()
			entry.broken = false
			return &Session{entry: entry}, func() { r.release(account.ID, entry) }, nil
		}

		log.Printf("smtp: stale session for account %s, reconnecting", account.ID)
		_ = entry.client.Close()
		entry.client = nil
	}

	c, err := r.connect(account, password)
	if err != nil {
		entry.mu.Unlock()
		return nil, nil, err
	}

	entry.client = c
	entry.lastUsed = time.Now()
	entry.broken = false

	return &Session{entry: entry}, func() { r.release(account.ID, entry) }, nil
}

func (r *Registry) getOrCreateEntry(accountID string) *outboundSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.sessions[accountID]
	if !exists {
		entry = &outboundSession{}
		r.sessions[accountID] = entry
	}
	return entry
}

func (r *Registry) release(accountID string, entry *outboundSession) {
	if entry.broken && entry.client != nil {
		log.Printf("smtp: discarding broken session for account %s", accountID)
		_ = entry.client.Close()
		entry.client = nil
	}
	entry.lastUsed = time.Now()
	entry.mu.Unlock()
}

// connect dials the account's outbound endpoint with a bounded timeout,
// authenticates, and verifies the session with a NOOP.
func (r *Registry) connect(account *models.MailAccount, password string) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", account.SMTPHost, account.SMTPPort)
	dialer := &net.Dialer{Timeout: r.connectTimeout}

	var conn net.Conn
	var err error
	if account.SMTPSecure {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, nil)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, classifyNetErr(err)
	}

	c := smtp.NewClient(conn)
	c.CommandTimeout = r.commandTimeout
	c.SubmissionTimeout = r.commandTimeout

	if err := c.Auth(sasl.NewPlainClient("", account.Address, password)); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: authentication rejected", ErrConnectionFailed)
	}

	if err := c.Noop(); err != nil {
		_ = c.Close()
		return nil, classifyNetErr(err)
	}

	return c, nil
}

// Remove closes and forgets the session for one account.
func (r *Registry) Remove(accountID string) {
	r.mu.Lock()
	entry, exists := r.sessions[accountID]
	if exists {
		delete(r.sessions, accountID)
	}
	r.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	if entry.client != nil {
		_ = entry.client.Close()
		entry.client = nil
	}
	entry.mu.Unlock()
}

// Close drops all cached outbound sessions.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for accountID, entry := range r.sessions {
		if entry.mu.TryLock() {
			if entry.client != nil {
				_ = entry.client.Close()
				entry.client = nil
			}
			entry.mu.Unlock()
		} else if entry.client != nil {
			_ = entry.client.Close()
		}
		delete(r.sessions, accountID)
	}
}

func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}
