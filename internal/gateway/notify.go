package gateway

import (
	"context"
	"log/slog"

	"github.com/nhle/mailtask/internal/model"
)

// Notifier displays a system notification.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// LogNotifier writes notifications to the log. It is the fallback when no
// display is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n model.Notification) error {
	l.Logger.Info("notification",
		slog.String("id", n.ID),
		slog.String("title", n.Title),
		slog.String("message", n.Message),
	)
	return nil
}

// ChanNotifier forwards notifications to a consumer such as the TUI or
// the page bridge. Sends never block; a full buffer drops the oldest
// pending notification.
type ChanNotifier struct {
	ch chan model.Notification
}

// NewChanNotifier creates a notifier buffering up to size notifications.
func NewChanNotifier(size int) *ChanNotifier {
	return &ChanNotifier{ch: make(chan model.Notification, size)}
}

func (c *ChanNotifier) Notify(_ context.Context, n model.Notification) error {
	for {
		select {
		case c.ch <- n:
			return nil
		default:
		}
		select {
		case <-c.ch:
		default:
		}
	}
}

// C returns the receive side.
func (c *ChanNotifier) C() <-chan model.Notification {
	return c.ch
}
