// Package kb: fsnotify-based hot reload of the external knowledge directory.
package kb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors dir and keeps the knowledge base in sync with document
// creations, writes, and removals until ctx is cancelled. The directory
// must exist before watching starts.
func (k *KnowledgeBase) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	slog.Info("KnowledgeBase.Watch: watching knowledge directory", "dir", dir)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				switch {
				case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
					if err := k.loadFile(event.Name); err != nil {
						slog.Warn("KnowledgeBase.Watch: reload failed", "path", event.Name, "error", err)
					} else {
						slog.Debug("KnowledgeBase.Watch: document reloaded", "path", event.Name)
					}
				case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					k.removeFile(event.Name)
					slog.Debug("KnowledgeBase.Watch: document removed", "path", event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("KnowledgeBase.Watch: watcher error", "error", err)
			}
		}
	}()
	return nil
}
