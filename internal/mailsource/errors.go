package mailsource

import (
	"errors"
	"fmt"
)

// ConnectionError is returned when the mail server cannot be reached,
// the session breaks, or the mailbox cannot be opened
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mail server %s: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthError is returned when the server rejects the credentials
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned for protocols this service cannot fetch from
type ProtocolError struct {
	Protocol string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unsupported mail protocol %q: only imap is supported", e.Protocol)
}

// IsAuthError checks if an error is an AuthError
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsProtocolError checks if an error is a ProtocolError
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}

// IsConnectionLevel reports whether err means the mailbox as a whole could
// not be read, as opposed to a problem with a single message
func IsConnectionLevel(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) || IsAuthError(err)
}
