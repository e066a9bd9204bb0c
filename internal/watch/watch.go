// Package watch reruns the suite when test sources change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"snektest/pkg/logging"
)

// DefaultDebounce is how long to wait for further changes before a rerun.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports batches of changed files below a root directory.
type Watcher struct {
	root     string
	debounce time.Duration
	match    func(path string) bool
}

// New creates a watcher. match selects the files whose changes count; nil
// matches every file.
func New(root string, debounce time.Duration, match func(path string) bool) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if match == nil {
		match = func(string) bool { return true }
	}
	return &Watcher{root: root, debounce: debounce, match: match}
}

// Watch sends the sorted paths changed during each quiet period of the
// debounce interval until ctx ends. Directories created later are watched
// too. Hidden directories are skipped.
func (w *Watcher) Watch(ctx context.Context, changes chan<- []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}
	logging.Info("Watcher", "Watching %s for changes", w.root)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(watcher, event.Name); err != nil {
						logging.Warn("Watcher", "Failed to watch %s: %v", event.Name, err)
					}
					continue
				}
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})

			logging.Debug("Watcher", "Emitting %d changed files", len(batch))
			select {
			case changes <- batch:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.match(event.Name)
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		logging.Debug("Watcher", "Watching directory: %s", p)
		return watcher.Add(p)
	})
}

// Loop calls run once, then again after every batch of changes, until ctx
// ends. Changes arriving during a run are coalesced into the next one.
func Loop(ctx context.Context, changes <-chan []string, run func(ctx context.Context, changed []string)) {
	run(ctx, nil)
	for {
		select {
		case <-ctx.Done():
			return
		case changed := <-changes:
			for more := true; more; {
				select {
				case next := <-changes:
					changed = append(changed, next...)
				default:
					more = false
				}
			}
			run(ctx, changed)
		}
	}
}
