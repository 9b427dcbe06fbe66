package imap

import (
	"log"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/lp24213/mailbridge/internal/models"
)

// healthCheckThreshold is the idle time after which a cached session gets a
// NOOP health check before reuse.
const healthCheckThreshold = 1 * time.Minute

// accountSession holds the one cached inbound session for an account. The
// mutex is the account-scoped operation lock: it is held from Acquire until
// the release function runs, which serializes folder selection and every
// fetch/mutate command that follows it. Folder selection is stateful at the
// protocol level, so interleaving two operations on the same session would
// corrupt which folder a command applies to.
type accountSession struct {
	mu       sync.Mutex
	client   *client.Client
	lastUsed time.Time
	broken   bool
}

// Registry caches one authenticated inbound session per account. It is owned
// by the service root and shared by reference; operations against different
// accounts proceed fully in parallel, while operations against the same
// account serialize on that account's session lock.
type Registry struct {
	mu             sync.Mutex
	sessions       map[string]*accountSession
	connectTimeout time.Duration
	commandTimeout time.Duration
}

// NewRegistry creates an empty session registry.
func NewRegistry(connectTimeout, commandTimeout time.Duration) *Registry {
	return &Registry{
		sessions:       make(map[string]*accountSession),
		connectTimeout: connectTimeout,
		commandTimeout: commandTimeout,
	}
}

// Session is an acquired, exclusively-held inbound session. It is only valid
// until the release function returned by Acquire is called.
type Session struct {
	entry *accountSession
}

// Client returns the underlying IMAP client.
func (s *Session) Client() *client.Client {
	return s.entry.client
}

// MarkBroken flags the session so it is discarded instead of reused when
// released. Used after timeouts and transport failures.
func (s *Session) MarkBroken() {
	s.entry.broken = true
}

// Acquire returns a ready, authenticated session for the account, holding
// its operation lock. A cached session is reused after a liveness check; a
// dead or missing session is re-established from the account settings and
// the freshly decrypted password. The returned release function must always
// be called, and the session must not be used after it runs.
func (r *Registry) Acquire(account *models.MailAccount, password string) (*Session, func(), error) {
	entry := r.getOrCreateEntry(account.ID)

	entry.mu.Lock()

	if entry.client != nil {
		healthy := true
		if time.Since(entry.lastUsed) > healthCheckThreshold {
			healthy = entry.client.Noop() == nil
		}
		if healthy {
			entry.lastUsed = time.Now()
			entry.broken = false
			return &Session{entry: entry}, func() { r.release(account.ID, entry) }, nil
		}

		log.Printf("imap: stale session for account %s, reconnecting", account.ID)
		_ = entry.client.Logout()
		entry.client = nil
	}

	c, err := connect(account, password, r.connectTimeout, r.commandTimeout)
	if err != nil {
		entry.mu.Unlock()
		return nil, nil, err
	}

	entry.client = c
	entry.lastUsed = time.Now()
	entry.broken = false
	r.watchLogout(account.ID, entry, c)

	return &Session{entry: entry}, func() { r.release(account.ID, entry) }, nil
}

func (r *Registry) getOrCreateEntry(accountID string) *accountSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.sessions[accountID]
	if !exists {
		entry = &accountSession{}
		r.sessions[accountID] = entry
	}
	return entry
}

// release returns the session to the registry. A session marked broken is
// closed and dropped so the next Acquire reconnects.
func (r *Registry) release(accountID string, entry *accountSession) {
	if entry.broken && entry.client != nil {
		log.Printf("imap: discarding broken session for account %s", accountID)
		_ = entry.client.Logout()
		entry.client = nil
	}
	entry.lastUsed = time.Now()
	entry.mu.Unlock()
}

// watchLogout drops the cached client when the transport reports a close
// event, so the next Acquire reconnects instead of reusing a dead session.
func (r *Registry) watchLogout(accountID string, entry *accountSession, c *client.Client) {
	go func() {
		<-c.LoggedOut()
		entry.mu.Lock()
		if entry.client == c {
			entry.client = nil
		}
		entry.mu.Unlock()
	}()
}

// Remove closes and forgets the session for one account, for example when
// the account is deleted.
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
		_ = entry.client.Logout()
		entry.client = nil
	}
	entry.mu.Unlock()
}

// Close logs out all cached sessions best-effort. Inbound sessions require
// an explicit logout on shutdown; failures are logged and ignored.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for accountID, entry := range r.sessions {
		if entry.mu.TryLock() {
			if entry.client != nil {
				if err := entry.client.Logout(); err != nil {
					log.Printf("imap: failed to logout session for account %s: %v", accountID, err)
				}
				entry.client = nil
			}
			entry.mu.Unlock()
		} else if entry.client != nil {
			// Session is in use during shutdown; close the transport anyway.
			_ = entry.client.Logout()
		}
		delete(r.sessions, accountID)
	}
}
