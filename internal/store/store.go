package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/mailtask/internal/model"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for the gateway-owned state:
// the preferences record and pending notification links.
type Store interface {
	// GetPreferences returns the record stored under identity, or the
	// defaults when none has been saved.
	GetPreferences(ctx context.Context, identity string) (model.Preferences, error)
	SavePreferences(ctx context.Context, identity string, prefs model.Preferences) error

	// CreateNotification stores n and returns its identifier.
	CreateNotification(ctx context.Context, n model.Notification) (string, error)

	// TakeNotificationLink returns the link stored for id and deletes
	// the record, so a second call reports ErrNotFound.
	TakeNotificationLink(ctx context.Context, id string) (string, error)

	// PruneNotifications drops records older than the cutoff.
	PruneNotifications(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
