package mailbox

import (
	"context"
	"errors"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailtask/internal/logging"
)

const rawMessage = "Message-ID: <abc@mail.example>\r\n" +
	"Subject: Invoice #42\r\n" +
	"From: Alice <a@x.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please pay\r\n"

func TestParseOriginal(t *testing.T) {
	o, err := ParseOriginal([]byte(rawMessage))
	require.NoError(t, err)
	assert.Equal(t, "abc@mail.example", o.MessageID)
	assert.Equal(t, "Invoice #42", o.Subject)
	assert.Equal(t, "Invoice #42.eml", o.Filename)
}

func TestParseOriginalRejectsEmpty(t *testing.T) {
	_, err := ParseOriginal([]byte("  \n"))
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"Re: Q3/Q4 plan", "Re_ Q3_Q4 plan.eml"},
		{"", "original.eml"},
		{"../../etc", "____etc.eml"},
		{"  spaced  ", "spaced.eml"},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.subject))
		})
	}
}

type fakeSession struct {
	mailboxes map[string][]imap.UID
	selected  string
	created   []string
	copied    []imap.UID
	criteria  *imap.SearchCriteria
	createErr error
}

func (f *fakeSession) Select(mbox string) error {
	if _, ok := f.mailboxes[mbox]; !ok {
		return errors.New("no such mailbox")
	}
	f.selected = mbox
	return nil
}

func (f *fakeSession) Search(c *imap.SearchCriteria) ([]imap.UID, error) {
	f.criteria = c
	return f.mailboxes[f.selected], nil
}

func (f *fakeSession) Create(mbox string) error {
	f.created = append(f.created, mbox)
	return f.createErr
}

func (f *fakeSession) Copy(uids []imap.UID, _ string) error {
	f.copied = uids
	return nil
}

func (f *fakeSession) Logout() error { return nil }

func newTestLabeler(s *fakeSession) *IMAPLabeler {
	l := NewIMAPLabeler("imap.example", "993", "me", "pw", true, "Tasked", logging.Discard())
	l.dial = func(context.Context) (session, error) { return s, nil }
	return l
}

func TestApplyByMessageID(t *testing.T) {
	s := &fakeSession{mailboxes: map[string][]imap.UID{"INBOX": {7}}}
	err := newTestLabeler(s).Apply(context.Background(), Target{MessageID: "abc@mail.example"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Tasked"}, s.created)
	assert.Equal(t, []imap.UID{7}, s.copied)
	require.Len(t, s.criteria.Header, 1)
	assert.Equal(t, "Message-ID", s.criteria.Header[0].Key)
}

func TestApplyFallsBackToSubjectAndLatestMatch(t *testing.T) {
	s := &fakeSession{mailboxes: map[string][]imap.UID{
		"INBOX":            nil,
		"[Gmail]/All Mail": {3, 9},
	}}
	err := newTestLabeler(s).Apply(context.Background(), Target{Subject: "Invoice #42"})
	require.NoError(t, err)

	assert.Equal(t, []imap.UID{9}, s.copied)
	assert.Equal(t, "Subject", s.criteria.Header[0].Key)
}

func TestApplyIgnoresExistingMailbox(t *testing.T) {
	s := &fakeSession{
		mailboxes: map[string][]imap.UID{"INBOX": {1}},
		createErr: &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeAlreadyExists},
	}
	assert.NoError(t, newTestLabeler(s).Apply(context.Background(), Target{MessageID: "x"}))
}

func TestApplyNoMatch(t *testing.T) {
	s := &fakeSession{mailboxes: map[string][]imap.UID{"INBOX": nil}}
	err := newTestLabeler(s).Apply(context.Background(), Target{MessageID: "missing"})
	assert.ErrorIs(t, err, ErrNoMatch)
}
