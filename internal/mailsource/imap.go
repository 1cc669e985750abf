package mailsource

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"mailtriage/internal/models"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"
)

// IMAPSource reads the INBOX of an IMAP account. Every call opens its own
// session and logs out before returning.
type IMAPSource struct {
	addr      string
	host      string
	username  string
	password  string
	useTLS    bool
	timeout   time.Duration
	tlsConfig *tls.Config
	logger    zerolog.Logger
}

// connect dials, authenticates and selects INBOX. The returned stop func
// logs out and releases the context watcher.
func (s *IMAPSource) connect(ctx context.Context) (*imapclient.Client, uint32, func(), error) {
	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, 0, nil, &ConnectionError{Server: s.addr, Err: err}
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, 0, nil, &ConnectionError{Server: s.addr, Err: err}
	}

	// Closing the socket unblocks any pending command on cancellation
	stopWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })

	tlsConfig := s.tlsConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: s.host}
	}

	var client *imapclient.Client
	if s.useTLS {
		client = imapclient.New(tls.Client(conn, tlsConfig), nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			stopWatch()
			_ = conn.Close()
			return nil, 0, nil, &ConnectionError{Server: s.addr, Err: fmt.Errorf("starttls: %w", err)}
		}
	}

	stop := func() {
		if err := client.Logout().Wait(); err != nil {
			s.logger.Debug().Err(err).Msg("IMAP logout failed")
		}
		_ = client.Close()
		stopWatch()
	}

	if err := client.Login(s.username, s.password).Wait(); err != nil {
		stop()
		if ctx.Err() != nil {
			return nil, 0, nil, &ConnectionError{Server: s.addr, Err: ctx.Err()}
		}
		return nil, 0, nil, &AuthError{Username: s.username, Err: err}
	}

	selected, err := client.Select("INBOX", nil).Wait()
	if err != nil {
		stop()
		return nil, 0, nil, &ConnectionError{Server: s.addr, Err: fmt.Errorf("selecting INBOX: %w", err)}
	}

	return client, selected.NumMessages, stop, nil
}

// FetchBatch returns up to limit of the newest INBOX messages, newest first.
// Bodies are fetched with BODY.PEEK[] so the server's \Seen flag is untouched.
func (s *IMAPSource) FetchBatch(ctx context.Context, limit int) ([]models.RawMessage, error) {
	client, total, stop, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()

	from, to, ok := newestRange(total, limit)
	if !ok {
		s.logger.Info().Msg("Mailbox is empty")
		return []models.RawMessage{}, nil
	}

	seqSet := imap.SeqSet{}
	seqSet.AddRange(from, to)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(seqSet, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	collected := make(map[uint32]models.RawMessage)

	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			s.logger.Warn().Err(err).Uint32("seq", msg.SeqNum).Msg("Skipping message that could not be read")
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if len(raw) == 0 {
			s.logger.Warn().Uint32("seq", buf.SeqNum).Msg("Skipping message with empty body")
			continue
		}

		collected[buf.SeqNum] = models.RawMessage{Ref: uint32(buf.UID), Data: raw}
	}

	if err := fetchCmd.Close(); err != nil {
		// A tagged NO means some messages vanished mid-fetch; keep the rest
		var imapErr *imap.Error
		if len(collected) == 0 || !errors.As(err, &imapErr) || imapErr.Type != imap.StatusResponseTypeNo {
			return nil, &ConnectionError{Server: s.addr, Err: fmt.Errorf("fetching messages: %w", err)}
		}
		s.logger.Warn().Err(err).Int("collected", len(collected)).Msg("Server refused part of the batch")
	}

	// Servers may answer in any order
	messages := make([]models.RawMessage, 0, len(collected))
	for seq := to; seq >= from && seq > 0; seq-- {
		if msg, ok := collected[seq]; ok {
			messages = append(messages, msg)
		}
	}

	s.logger.Info().Int("count", len(messages)).Uint32("total", total).Msg("Fetched messages")
	return messages, nil
}

// MarkSeen adds the \Seen flag to the given UIDs
func (s *IMAPSource) MarkSeen(ctx context.Context, refs []uint32) error {
	uids := make([]imap.UID, 0, len(refs))
	for _, ref := range refs {
		if ref > 0 {
			uids = append(uids, imap.UID(ref))
		}
	}
	if len(uids) == 0 {
		return nil
	}

	client, _, stop, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer stop()

	storeCmd := client.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("marking messages as seen: %w", err)
	}
	return nil
}

// TestConnection logs in, opens INBOX and reports how many messages it holds
func (s *IMAPSource) TestConnection(ctx context.Context) (int, error) {
	_, total, stop, err := s.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer stop()
	return int(total), nil
}

// newestRange returns the sequence range covering the newest limit messages
// of a mailbox holding total messages
func newestRange(total uint32, limit int) (from, to uint32, ok bool) {
	if total == 0 {
		return 0, 0, false
	}
	if limit <= 0 || uint32(limit) >= total {
		return 1, total, true
	}
	return total - uint32(limit) + 1, total, true
}
