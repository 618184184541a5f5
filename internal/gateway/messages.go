package gateway

import (
	"encoding/json"

	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/tracker"
)

// Kind names one message of the closed request set.
type Kind string

const (
	KindCheckSession            Kind = "checkSession"
	KindListWorkspaces          Kind = "listWorkspaces"
	KindListProjects            Kind = "listProjects"
	KindListUsers               Kind = "listUsers"
	KindListTags                Kind = "listTags"
	KindCreateTask              Kind = "createTask"
	KindAddComment              Kind = "addComment"
	KindUploadAttachment        Kind = "uploadAttachment"
	KindUploadAttachmentFromURL Kind = "uploadAttachmentFromURL"
	KindGetCustomFields         Kind = "getCustomFields"
	KindGetTask                 Kind = "getTask"
	KindSearchTasks             Kind = "searchTasks"
	KindShowNotification        Kind = "showNotification"
	KindNotificationClicked     Kind = "notificationClicked"
	KindGetPreferences          Kind = "getPreferences"
	KindSavePreferences         Kind = "savePreferences"
)

// Request is one message sent to the gateway.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response carries either the API's data payload or a human-readable
// error. NeedsSetup marks configuration errors, which the UI renders as a
// setup prompt rather than a failure.
type Response struct {
	ID         string          `json:"id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	NeedsSetup bool            `json:"needsSetup,omitempty"`
}

// Session is the checkSession result.
type Session struct {
	Authenticated bool          `json:"authenticated"`
	User          *tracker.User `json:"user,omitempty"`
}

// WorkspaceParams scopes a list query to a workspace.
type WorkspaceParams struct {
	WorkspaceID string `json:"workspaceId"`
}

// ProjectParams scopes a query to a project.
type ProjectParams struct {
	ProjectID string `json:"projectId"`
}

// TaskParams names a task.
type TaskParams struct {
	TaskID string `json:"taskId"`
}

// SearchParams is the task typeahead query.
type SearchParams struct {
	WorkspaceID string `json:"workspaceId"`
	Query       string `json:"query"`
}

// CommentParams adds a rich-text comment to a task.
type CommentParams struct {
	TaskID   string `json:"taskId"`
	HTMLText string `json:"htmlText"`
}

// UploadParams carries attachment bytes fetched in the page context.
type UploadParams struct {
	TaskID      string `json:"taskId"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Base64      string `json:"base64"`
}

// UploadURLParams attaches a file the gateway may fetch directly.
type UploadURLParams struct {
	TaskID string `json:"taskId"`
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
}

// NotificationParams raises a system notification.
type NotificationParams struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// NotificationRef identifies a raised notification.
type NotificationRef struct {
	NotificationID string `json:"notificationId"`
}

// ClickResult is the link consumed by notificationClicked; empty when the
// notification was already handled.
type ClickResult struct {
	Link string `json:"link,omitempty"`
}

// PreferencesParams wraps the preferences record.
type PreferencesParams struct {
	Preferences model.Preferences `json:"preferences"`
}
