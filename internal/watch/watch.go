// Package watch triggers rebuilds when watched source files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"smpybuild/internal/logfields"
)

// DefaultSkipDirs are never watched.
var DefaultSkipDirs = []string{".git", ".ipynb_checkpoints", "__pycache__", "build", "venv"}

// Watcher watches Root recursively and calls the trigger function with the
// set of changed paths once no further change arrived for Debounce.
//
// Triggers run on the watcher goroutine, one at a time; changes made while
// a trigger runs are batched into the next one.
type Watcher struct {
	Root string

	// Patterns select the relative, slash-separated paths that count as
	// changes (doublestar syntax). Everything else, including files the
	// build itself writes, is ignored.
	Patterns []string

	// SkipDirs are directory base names that are not descended into.
	SkipDirs []string

	Debounce time.Duration
	Logger   *slog.Logger
}

// Run blocks until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, trigger func(ctx context.Context, changed []string)) error {
	for _, p := range w.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid watch pattern %q", p)
		}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()

	if err := w.addTree(fw, w.Root); err != nil {
		return err
	}
	log := w.logger()
	log.Info("Watching for changes", logfields.Path(w.Root), slog.Any("patterns", w.Patterns))

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create && !w.skip(filepath.Base(ev.Name)) {
				// New directories need their own watch.
				if err := w.addTree(fw, ev.Name); err != nil {
					log.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			rel, ok := w.match(ev.Name)
			if !ok {
				continue
			}
			log.Debug("Change detected", logfields.Path(rel), slog.String("op", ev.Op.String()))
			pending[rel] = struct{}{}
			timer.Reset(debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", logfields.Error(err))

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			trigger(ctx, changed)
		}
	}
}

func (w *Watcher) match(name string) (string, bool) {
	rel, err := filepath.Rel(w.Root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return rel, true
		}
	}
	return "", false
}

func (w *Watcher) skip(base string) bool {
	dirs := w.SkipDirs
	if dirs == nil {
		dirs = DefaultSkipDirs
	}
	for _, d := range dirs {
		if d == base {
			return true
		}
	}
	return false
}

// addTree watches dir and its subdirectories. Non-directories are ignored.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.skip(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}
