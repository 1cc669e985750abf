// Package parser turns raw RFC 5322 messages into normalized messages.
package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"mailtriage/internal/models"
)

// Defaults applied when a header is missing or empty
const (
	DefaultSubject     = "(No Subject)"
	DefaultSenderName  = "Unknown Sender"
	DefaultSenderEmail = "unknown@unknown"
)

// Column widths of the emails table, in characters
const (
	maxExternalIDLen  = 255
	maxSenderNameLen  = 255
	maxSenderEmailLen = 320
)

// ParseError is returned for input that is not a readable message
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse message: %s: %v", e.Reason, e.Err)
	}
	return "parse message: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError checks if an error is a ParseError
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// Parse parses raw using the wall clock for messages without a Date header
func Parse(raw []byte) (models.NormalizedMessage, error) {
	return ParseWithClock(raw, time.Now)
}

// ParseWithClock parses raw, calling now only when the message carries no usable date
func ParseWithClock(raw []byte, now func() time.Time) (models.NormalizedMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.NormalizedMessage{}, &ParseError{Reason: "empty message"}
	}

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return models.NormalizedMessage{}, &ParseError{Reason: "unreadable header", Err: err}
	}
	defer mr.Close()

	if mr.Header.Len() == 0 {
		return models.NormalizedMessage{}, &ParseError{Reason: "message has no header fields"}
	}

	msg := models.NormalizedMessage{
		Subject: parseSubject(mr.Header),
	}
	msg.SenderName, msg.SenderEmail = parseSender(mr.Header)

	date, dateErr := mr.Header.Date()
	hasDate := dateErr == nil && !date.IsZero()
	if hasDate {
		msg.ReceivedAt = date.UTC()
	} else {
		msg.ReceivedAt = now().UTC()
	}

	msg.Body = readBody(mr)
	msg.ExternalID = externalID(mr.Header, msg, hasDate)

	return msg, nil
}

func parseSubject(h gomail.Header) string {
	subject, err := h.Subject()
	if err != nil {
		subject = h.Get("Subject")
	}
	subject = normalize(subject)
	if subject == "" {
		return DefaultSubject
	}
	return subject
}

// parseSender returns the display name and address of the first From entry
func parseSender(h gomail.Header) (name, address string) {
	if list, err := h.AddressList("From"); err == nil && len(list) > 0 {
		name, address = list[0].Name, list[0].Address
	} else if raw := strings.TrimSpace(toUTF8(h.Get("From"))); raw != "" {
		// Lenient fallback for headers net/mail rejects
		if addr, err := mail.ParseAddress(raw); err == nil {
			name, address = addr.Name, addr.Address
		} else if at := strings.LastIndex(raw, "@"); at > 0 {
			address = strings.Trim(raw[strings.LastIndexAny(raw[:at], " <")+1:], "<> ")
		} else {
			name = raw
		}
	}

	name = normalize(name)
	address = truncate(strings.ToLower(strings.TrimSpace(toUTF8(address))), maxSenderEmailLen)

	if address == "" {
		address = DefaultSenderEmail
	}
	if name == "" {
		name = nameFromAddress(address)
	}
	return truncate(name, maxSenderNameLen), address
}

var titleCaser = cases.Title(language.Und)

// nameFromAddress derives "John Smith" from john.smith@example.com
func nameFromAddress(address string) string {
	if address == DefaultSenderEmail {
		return DefaultSenderName
	}
	local, _, _ := strings.Cut(address, "@")
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(words) == 0 {
		return DefaultSenderName
	}
	return titleCaser.String(strings.Join(words, " "))
}

// readBody returns the first text/plain part, else the first text/html part as text
func readBody(mr *gomail.Reader) string {
	var html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever was readable before the malformed part
			break
		}

		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		contentType = strings.ToLower(contentType)
		switch {
		case contentType == "" || contentType == "text/plain":
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			return normalize(string(body))
		case contentType == "text/html" && html == "":
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			html = string(body)
		}
	}

	if html != "" {
		return normalize(stripHTML(html))
	}
	return ""
}

// externalID prefers Message-ID and falls back to a stable content hash
func externalID(h gomail.Header, msg models.NormalizedMessage, hasDate bool) string {
	id, err := h.MessageID()
	if err != nil || id == "" {
		id = strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
	}

	if id != "" {
		if len(id) > maxExternalIDLen {
			return hashID(id)
		}
		return id
	}

	// Without a Date the clock would make the hash unstable, so the body stands in
	discriminator := msg.Body
	if hasDate {
		discriminator = msg.ReceivedAt.Format(time.RFC3339)
	}
	return hashID(msg.SenderEmail + "\n" + msg.Subject + "\n" + discriminator)
}

func hashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// normalize repairs the encoding, applies NFC, unifies line endings and trims
func normalize(s string) string {
	s = norm.NFC.String(toUTF8(s))
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// toUTF8 reads text that is not valid UTF-8 as Windows-1252
func toUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return decoded
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
