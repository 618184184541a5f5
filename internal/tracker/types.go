package tracker

// Workspace is a top-level container of projects, users and tags.
type Workspace struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Project belongs to one workspace.
type Project struct {
	GID      string `json:"gid"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

// User is a workspace member that tasks can be assigned to.
type User struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Tag is a workspace-scoped label for tasks.
type Tag struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Task is the subset of task fields the composer displays.
type Task struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	PermalinkURL string `json:"permalink_url,omitempty"`
	Completed    bool   `json:"completed,omitempty"`
}

// EnumOption is one choice of an enum custom field.
type EnumOption struct {
	GID     string `json:"gid"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// CustomField is a project-defined typed attribute.
type CustomField struct {
	GID         string       `json:"gid"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	EnumOptions []EnumOption `json:"enum_options,omitempty"`
}

// CustomFieldSetting attaches a custom field to a project.
type CustomFieldSetting struct {
	GID         string      `json:"gid"`
	IsImportant bool        `json:"is_important"`
	CustomField CustomField `json:"custom_field"`
}

// Story is a comment on a task.
type Story struct {
	GID      string `json:"gid"`
	HTMLText string `json:"html_text,omitempty"`
}

// Attachment is an uploaded file on a task.
type Attachment struct {
	GID     string `json:"gid"`
	Name    string `json:"name"`
	ViewURL string `json:"view_url,omitempty"`
}

// TaskInput is the body of a task creation request. HTMLNotes must be
// wrapped in <body> and use only the API's rich-text subset.
type TaskInput struct {
	Name         string         `json:"name"`
	Workspace    string         `json:"workspace,omitempty"`
	Projects     []string       `json:"projects,omitempty"`
	HTMLNotes    string         `json:"html_notes,omitempty"`
	Assignee     string         `json:"assignee,omitempty"`
	DueOn        string         `json:"due_on,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// envelope wraps every API payload.
type envelope[T any] struct {
	Data     T         `json:"data"`
	NextPage *nextPage `json:"next_page,omitempty"`
}

type nextPage struct {
	Offset string `json:"offset"`
}
