package imap

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/lp24213/mailbridge/internal/models"
)

// connect dials the account's inbound endpoint, authenticates, and returns a
// ready client. The dial carries a bounded timeout and every subsequent
// command inherits the command timeout, so a hung remote server cannot block
// the caller indefinitely.
func connect(account *models.MailAccount, password string, connectTimeout, commandTimeout time.Duration) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)
	dialer := &net.Dialer{Timeout: connectTimeout}

	var c *client.Client
	var err error
	if account.IMAPSecure {
		c, err = client.DialWithDialerTLS(dialer, addr, nil)
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, classifyNetErr(err)
	}

	c.Timeout = commandTimeout

	if err := c.Login(account.Address, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("%w: authentication rejected", ErrConnectionFailed)
	}

	return c, nil
}
