package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailtask/internal/logging"
)

// Target identifies the message to label. MessageID is the RFC 5322
// header value; Subject is the fallback when it is unknown.
type Target struct {
	MessageID string
	Subject   string
}

// ErrNoMatch is returned when no message matches the target.
var ErrNoMatch = errors.New("no matching message")

// Labeler applies the categorization label to a message.
type Labeler interface {
	Apply(ctx context.Context, t Target) error
}

// session is the slice of an IMAP connection the labeler uses.
type session interface {
	Select(mailbox string) error
	Search(criteria *imap.SearchCriteria) ([]imap.UID, error)
	Create(mailbox string) error
	Copy(uids []imap.UID, dest string) error
	Logout() error
}

// IMAPLabeler labels messages by copying them into the label's mailbox,
// which is how IMAP exposes webmail labels.
type IMAPLabeler struct {
	host     string
	port     string
	username string
	password string
	tls      bool

	label     string
	mailboxes []string
	logger    *slog.Logger

	dial func(ctx context.Context) (session, error)
}

// NewIMAPLabeler creates a labeler that copies into label.
func NewIMAPLabeler(host, port, username, password string, tls bool, label string, logger *slog.Logger) *IMAPLabeler {
	if logger == nil {
		logger = logging.Discard()
	}
	l := &IMAPLabeler{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		tls:       tls,
		label:     label,
		mailboxes: []string{"INBOX", "[Gmail]/All Mail"},
		logger:    logger,
	}
	l.dial = l.connect
	return l
}

// connect establishes a connection to the IMAP server and authenticates.
func (l *IMAPLabeler) connect(_ context.Context) (session, error) {
	addr := l.host + ":" + l.port

	var client *imapclient.Client
	var err error

	if l.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(l.username, l.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", l.username, err)
	}

	return &clientSession{c: client}, nil
}

// Apply finds the message in the searched mailboxes and copies it into
// the label mailbox, creating the mailbox first if needed.
func (l *IMAPLabeler) Apply(ctx context.Context, t Target) error {
	if t.MessageID == "" && t.Subject == "" {
		return fmt.Errorf("labeling: %w", ErrNoMatch)
	}
	logger := logging.WithOperation(l.logger, "mailbox.label")

	s, err := l.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Logout() }()

	if err := s.Create(l.label); err != nil && !alreadyExists(err) {
		return fmt.Errorf("creating mailbox %s: %w", l.label, err)
	}

	for _, mbox := range l.mailboxes {
		if err := s.Select(mbox); err != nil {
			logger.Debug("mailbox not selectable", slog.String("mailbox", mbox), logging.Err(err))
			continue
		}

		uids, err := s.Search(criteriaFor(t))
		if err != nil {
			return fmt.Errorf("searching %s: %w", mbox, err)
		}
		if len(uids) == 0 {
			continue
		}
		if t.MessageID == "" {
			// Subject matches are ambiguous; take the most recent.
			uids = uids[len(uids)-1:]
		}

		if err := s.Copy(uids, l.label); err != nil {
			return fmt.Errorf("copying to %s: %w", l.label, err)
		}
		logger.Info("label applied", slog.String("mailbox", mbox), slog.Int("messages", len(uids)))
		return nil
	}

	return fmt.Errorf("labeling: %w", ErrNoMatch)
}

func criteriaFor(t Target) *imap.SearchCriteria {
	if t.MessageID != "" {
		return &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: "Message-ID", Value: t.MessageID}},
		}
	}
	return &imap.SearchCriteria{
		Since:  time.Now().AddDate(0, 0, -30),
		Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: t.Subject}},
	}
}

func alreadyExists(err error) bool {
	var imapErr *imap.Error
	return errors.As(err, &imapErr) && imapErr.Code == imap.ResponseCodeAlreadyExists
}

// clientSession adapts *imapclient.Client to session.
type clientSession struct {
	c *imapclient.Client
}

func (s *clientSession) Select(mailbox string) error {
	_, err := s.c.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	return err
}

func (s *clientSession) Search(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	data, err := s.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, err
	}
	return data.AllUIDs(), nil
}

func (s *clientSession) Create(mailbox string) error {
	return s.c.Create(mailbox, nil).Wait()
}

func (s *clientSession) Copy(uids []imap.UID, dest string) error {
	_, err := s.c.Copy(imap.UIDSetNum(uids...), dest).Wait()
	return err
}

func (s *clientSession) Logout() error {
	return s.c.Logout().Wait()
}

// Nop is a Labeler for when no IMAP account is configured.
type Nop struct{}

func (Nop) Apply(context.Context, Target) error {
	return errors.New("no IMAP account configured for labels")
}
