package model

import (
	"fmt"
	"strings"
	"time"
)

// DraftMode selects what a submission produces.
type DraftMode string

const (
	ModeCreate       DraftMode = "create"
	ModeLinkExisting DraftMode = "linkExisting"
)

// CustomFieldType is the subset of custom field kinds the composer renders.
type CustomFieldType string

const (
	FieldText   CustomFieldType = "text"
	FieldNumber CustomFieldType = "number"
	FieldEnum   CustomFieldType = "enum"
	FieldDate   CustomFieldType = "date"
)

// Supported reports whether the composer can render fields of type t.
func (t CustomFieldType) Supported() bool {
	switch t {
	case FieldText, FieldNumber, FieldEnum, FieldDate:
		return true
	}
	return false
}

// CustomFieldValue holds the user's input for one custom field. Only the
// member matching Type is meaningful.
type CustomFieldValue struct {
	Type   CustomFieldType
	Text   string
	Number float64
	EnumID string
	Date   string // YYYY-MM-DD
}

// Payload converts the value into the shape the task API expects.
func (v CustomFieldValue) Payload() any {
	switch v.Type {
	case FieldNumber:
		return v.Number
	case FieldEnum:
		return v.EnumID
	case FieldDate:
		return map[string]string{"date": v.Date}
	default:
		return v.Text
	}
}

// ValidationError is a local, field-level failure raised before any
// network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TaskDraft is the in-progress state of one composer session. It is never
// persisted.
type TaskDraft struct {
	Mode DraftMode

	WorkspaceID    string
	ProjectID      string
	ExistingTaskID string

	Name       string
	AssigneeID string
	DueDate    string // YYYY-MM-DD, optional
	TagIDs     []string

	// CustomFields maps a field identifier to its value.
	CustomFields map[string]CustomFieldValue

	IncludeBody     bool
	IncludeLink     bool
	IncludeOriginal bool
	ApplyLabel      bool

	// Attachments lists the selected attachments as indices into the
	// email's attachment list. Names may repeat across messages.
	Attachments []int
}

// NewTaskDraft returns an empty create-mode draft with toggles seeded from
// the preferences.
func NewTaskDraft(prefs Preferences) TaskDraft {
	return TaskDraft{
		Mode:            ModeCreate,
		CustomFields:    make(map[string]CustomFieldValue),
		IncludeBody:     prefs.IncludeBody,
		IncludeLink:     prefs.IncludeLink,
		IncludeOriginal: prefs.IncludeOriginal,
		ApplyLabel:      prefs.ApplyLabel,
	}
}

// Validate checks the fields required by the draft's mode.
func (d TaskDraft) Validate() error {
	switch d.Mode {
	case ModeLinkExisting:
		if d.ExistingTaskID == "" {
			return &ValidationError{Field: "task", Message: "select an existing task"}
		}
	default:
		if strings.TrimSpace(d.Name) == "" {
			return &ValidationError{Field: "name", Message: "task name is required"}
		}
		if d.ProjectID == "" {
			return &ValidationError{Field: "project", Message: "select a project"}
		}
	}
	if d.DueDate != "" {
		if _, err := time.Parse("2006-01-02", d.DueDate); err != nil {
			return &ValidationError{Field: "due", Message: "invalid date format, use YYYY-MM-DD"}
		}
	}
	return nil
}

// HasTag reports whether tag id is selected.
func (d TaskDraft) HasTag(id string) bool {
	for _, t := range d.TagIDs {
		if t == id {
			return true
		}
	}
	return false
}
