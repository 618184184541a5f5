// Package mailbox handles the mail side of a submission: naming and
// validating the raw original message, and applying the categorization
// label over IMAP.
package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/emersion/go-message/mail"
)

// Original describes a downloaded raw message.
type Original struct {
	MessageID string
	Subject   string
	Filename  string
	Data      []byte
}

// ContentType is the MIME type raw messages are uploaded with.
const ContentType = "message/rfc822"

const maxFilenameRunes = 80

// ParseOriginal checks that raw is an RFC 5322 message and extracts the
// fields used to name the upload and locate the message over IMAP.
func ParseOriginal(raw []byte) (*Original, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty message")
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	// Drain parts so malformed MIME structure is reported here rather
	// than at upload time.
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading message parts: %w", err)
		}
		_, _ = io.Copy(io.Discard, p.Body)
	}

	h := mr.Header
	id, _ := h.MessageID()
	subject, _ := h.Subject()
	if id == "" && subject == "" && len(h.Map()) == 0 {
		return nil, errors.New("message has no headers")
	}

	return &Original{
		MessageID: id,
		Subject:   subject,
		Filename:  Filename(subject),
		Data:      raw,
	}, nil
}

// Filename turns a subject into a safe .eml file name.
func Filename(subject string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(subject) {
		if n >= maxFilenameRunes {
			break
		}
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
		n++
	}
	name := strings.Trim(strings.ReplaceAll(b.String(), "..", "_"), ". ")
	if name == "" {
		name = "original"
	}
	return name + ".eml"
}
