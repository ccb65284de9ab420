package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSet tracks the files a run depends on. Their directories are
// watched so that editors replacing a file by rename are still seen.
type watchSet struct {
	watcher *fsnotify.Watcher
	files   map[string]bool
	dirs    map[string]bool
}

func (w *watchSet) update(files []string) error {
	w.files = make(map[string]bool, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = filepath.Clean(f)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	return nil
}

func (w *watchSet) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}

// watchLoop calls run whenever one of files changes, debounced, until ctx
// is done. run returns the files to watch from then on. Runs never overlap.
func watchLoop(ctx context.Context, files []string, debounce time.Duration, run func() []string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	set := &watchSet{watcher: watcher, dirs: make(map[string]bool)}
	if err := set.update(files); err != nil {
		return err
	}
	logger.Info("watching for changes", "files", len(set.files))

	var timer *time.Timer
	var fire <-chan time.Time
	var changed string

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !set.relevant(ev) {
				continue
			}
			changed = ev.Name
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			logger.Info("change detected, re-running", "file", filepath.Base(changed))
			if err := set.update(run()); err != nil {
				logger.Warn("watch list not updated", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
