package store

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"infomap/internal/logging"
)

// Watch reports out-of-band edits to this namespace's entries — a curator
// running in another process, or a human fixing a bad strategy by hand.
// It emits the affected entry id per event until ctx is cancelled.
func (p *Playbook) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &StoreError{Op: "playbook watch", Err: err}
	}
	if err := watcher.Add(p.dir); err != nil {
		watcher.Close()
		return nil, &StoreError{Op: "playbook watch", Err: err}
	}

	changes := make(chan string)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				id := p.eventEntryID(event)
				if id == "" {
					continue
				}
				logging.PlaybookDebug("Watched change: %s %s", event.Op, id)
				select {
				case changes <- id:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategoryPlaybook).Warn("Playbook watcher error: %v", err)
			}
		}
	}()

	return changes, nil
}

// eventEntryID maps a filesystem event to an entry id, or "" for files
// outside this namespace (temp files included).
func (p *Playbook) eventEntryID(event fsnotify.Event) string {
	base := filepath.Base(event.Name)
	if !strings.HasPrefix(base, p.namespace+"_") || !strings.HasSuffix(base, ".txt") {
		return ""
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return ""
	}
	return strings.TrimSuffix(base, ".txt")
}
