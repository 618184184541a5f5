package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/logging"
)

// LoadFile parses an HTML snapshot from disk.
func LoadFile(path string) (*html.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return root, nil
}

// WatchFile reloads path into page whenever it is rewritten, until ctx
// ends. The parent directory is watched so editors that replace the file
// by rename are handled.
func WatchFile(ctx context.Context, path, pageURL string, page *Live, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	logger = logging.WithOperation(logger, "watch_snapshot")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			root, err := LoadFile(abs)
			if err != nil {
				logger.Warn("snapshot reload failed", logging.Err(err))
				continue
			}
			page.Replace(root, pageURL)
			logger.Debug("snapshot reloaded", slog.String("path", abs))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logging.Err(err))
		}
	}
}
