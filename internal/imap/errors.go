package imap

import (
	"errors"
	"fmt"
	"net"
)

// ErrConnectionFailed is returned when the network handshake or
// authentication against the remote mail server fails. The layer never
// retries automatically; callers may retry the whole operation later.
var ErrConnectionFailed = errors.New("imap connection failed")

// ErrTimeout is a connection failure caused by a hung remote server. It
// wraps ErrConnectionFailed, so errors.Is(err, ErrConnectionFailed) also
// holds. A timed-out session is evicted rather than retried in place.
var ErrTimeout = fmt.Errorf("%w: timed out", ErrConnectionFailed)

// ErrMessageNotFound is returned when a remote UID no longer exists, for
// example because another client deleted the message.
var ErrMessageNotFound = errors.New("message not found on server")

// classifyNetErr maps a transport error to the taxonomy above.
func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}
