// Package mailsource retrieves raw messages from a user's mailbox.
package mailsource

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"mailtriage/internal/models"

	"github.com/rs/zerolog"
)

// Supported protocols
const (
	ProtocolIMAP = "imap"
	ProtocolPOP3 = "pop3"
)

// Source yields the most recent raw messages of a mailbox, newest first
type Source interface {
	FetchBatch(ctx context.Context, limit int) ([]models.RawMessage, error)
}

// Marker is implemented by sources that can flag messages as read on the server
type Marker interface {
	MarkSeen(ctx context.Context, refs []uint32) error
}

// Tester is implemented by sources that can verify credentials without fetching
type Tester interface {
	TestConnection(ctx context.Context) (int, error)
}

// Options tune how a source talks to the server
type Options struct {
	Timeout   time.Duration // Connect and IO deadline, 30s when zero
	TLSConfig *tls.Config   // Optional, e.g. for self-signed test servers
	Logger    zerolog.Logger
}

// New builds the source described by settings. Unsupported protocols return a
// *ProtocolError and incomplete credentials a *ConnectionError; neither is
// ever replaced by sample data here.
func New(settings models.EmailSettings, opts Options) (Source, error) {
	protocol := strings.ToLower(strings.TrimSpace(settings.Protocol))
	if protocol != ProtocolIMAP {
		return nil, &ProtocolError{Protocol: protocol}
	}

	if settings.Server == "" || settings.Username == "" || settings.Password == "" {
		return nil, &ConnectionError{
			Server: settings.Server,
			Err:    fmt.Errorf("incomplete email settings, check your credentials"),
		}
	}

	port := settings.Port
	if port <= 0 {
		port = 143
		if settings.UseSSL {
			port = 993
		}
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &IMAPSource{
		addr:      fmt.Sprintf("%s:%d", settings.Server, port),
		host:      settings.Server,
		username:  settings.Username,
		password:  settings.Password,
		useTLS:    settings.UseSSL,
		timeout:   opts.Timeout,
		tlsConfig: opts.TLSConfig,
		logger:    opts.Logger.With().Str("component", "imap").Str("server", settings.Server).Logger(),
	}, nil
}
