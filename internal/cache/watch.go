package cache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch invalidates the configuration whenever the file changes, so that
// edits take effect before the entry expires. The parent directory is
// watched since editors often replace files rather than write them. Watch
// blocks until ctx is done.
func (c *Cache) Watch(ctx context.Context) error {
	path, err := filepath.Abs(c.opts.Path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	c.logger.Info("Watching dataset config", zap.String("path", path))

	const ops = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&ops == 0 {
				continue
			}
			c.logger.Info("Dataset config modified", zap.String("path", path), zap.String("op", event.Op.String()))
			c.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("Error watching dataset config", zap.String("path", path), zap.Error(err))
		}
	}
}
