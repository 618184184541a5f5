package model

// Preferences is the durable settings record, keyed by extension identity.
// Last-used values rank below the explicit defaults.
type Preferences struct {
	DefaultWorkspace string `json:"default_workspace"`
	DefaultProject   string `json:"default_project"`
	LastWorkspace    string `json:"last_workspace"`
	LastProject      string `json:"last_project"`

	IncludeBody     bool `json:"include_body"`
	IncludeLink     bool `json:"include_link"`
	IncludeOriginal bool `json:"include_original"`
	ApplyLabel      bool `json:"apply_label"`

	AutoClose bool   `json:"auto_close"`
	Language  string `json:"language"`
}

// DefaultPreferences is returned when nothing has been saved yet.
func DefaultPreferences() Preferences {
	return Preferences{
		IncludeBody: true,
		IncludeLink: true,
		AutoClose:   true,
		Language:    "en",
	}
}
