package model

// Attachment is one file attached to a message in the host thread.
type Attachment struct {
	// Name is the displayed file name. Names can repeat across messages.
	Name string `json:"name"`

	// URL is the download reference, valid only inside the authenticated
	// page session. Nil when the page exposes no link.
	URL *string `json:"url,omitempty"`

	// Size is the human-readable size shown by the host page, if any.
	Size string `json:"size,omitempty"`

	// IsPlaceholder marks an entry standing in for attachments of a
	// collapsed message. Name carries the count hint; URL is always nil.
	IsPlaceholder bool `json:"is_placeholder,omitempty"`
}

// Downloadable reports whether the attachment can be fetched.
func (a Attachment) Downloadable() bool {
	return !a.IsPlaceholder && a.URL != nil && *a.URL != ""
}

// ThreadMessage is one message of a conversation as currently rendered.
// A fresh value is built on every scan; it goes stale as soon as the
// page changes.
type ThreadMessage struct {
	Index       int          `json:"index"`
	Sender      string       `json:"sender"`
	Date        string       `json:"date"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments"`

	// Expanded is false when the host has not rendered the body. Such a
	// message holds at most one placeholder attachment.
	Expanded bool `json:"expanded"`

	// MessageID is the host-assigned identifier, nil when absent.
	MessageID *string `json:"message_id,omitempty"`
}

// EmailContext is the extraction unit handed to the composer. It is
// produced once per user action and not modified afterwards.
type EmailContext struct {
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender"`
	Date        string       `json:"date"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments"`

	// EmailURL links back to the conversation in the host page.
	EmailURL string `json:"email_url"`

	// OriginalURL downloads the raw message, nil when unavailable.
	OriginalURL *string `json:"original_url,omitempty"`

	// MessageID is the host-assigned id of the scoped message.
	MessageID *string `json:"message_id,omitempty"`
}

// StringRef returns a pointer to s, or nil when s is empty.
func StringRef(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
