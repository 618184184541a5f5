package model

import "time"

// Notification is a system notification raised after a submission. Its
// link is handed out once, when the user clicks it.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// Title is the notification heading.
	Title string `json:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Link is the created or linked task's URL.
	Link string `json:"link"`

	// CreatedAt is when this notification was raised.
	CreatedAt time.Time `json:"created_at"`
}
