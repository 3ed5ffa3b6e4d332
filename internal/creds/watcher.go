package creds

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"nutrigate/pkg/logging"
)

// Watch observes the credential file and invokes onChange with the freshly
// loaded record whenever it is written or replaced. This lets a long-running
// serve process pick up a login completed by the CLI in another process.
//
// The watch runs until ctx is cancelled. The parent directory is watched
// rather than the file itself because Save replaces the file via rename,
// which would otherwise drop the watch.
func (s *Store) Watch(ctx context.Context, onChange func(Record)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creds: creating watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("creds: watching %s: %w", dir, err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				rec, err := s.Load()
				if err != nil {
					logging.Warn("CredStore", "Ignoring unreadable credential file after change: %v", err)
					continue
				}
				logging.Info("CredStore", "Credential file changed, reloading")
				onChange(rec)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("CredStore", "Credential watcher error: %v", err)
			}
		}
	}()

	return nil
}
