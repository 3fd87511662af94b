package runner

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/proptrim/internal/debug"
	"github.com/standardbeagle/proptrim/internal/parser"
)

// Watch rewrites files under root as they change until ctx is cancelled.
// Events are batched: a batch is processed once no event has arrived for the
// debounce window. Watch returns nil on cancellation.
func (r *Runner) Watch(ctx context.Context, root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := r.addWatches(watcher, root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}
	debug.LogRunner("watching %s (debounce %v)\n", root, r.opts.WatchDebounce)
	if r.opts.OnWatchStart != nil {
		r.opts.OnWatchStart(root)
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(r.opts.WatchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if r.handleEvent(watcher, event, pending) {
				timer.Reset(r.opts.WatchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("File watcher error: %v", err)

		case <-timer.C:
			r.flush(ctx, pending)
			pending = make(map[string]struct{})
		}
	}
}

// handleEvent records a file worth rewriting and reports whether the debounce
// window should restart
func (r *Runner) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, pending map[string]struct{}) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	debug.LogRunner("event %v for %s\n", event.Op, event.Name)

	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := r.addWatches(watcher, event.Name); err != nil {
				log.Printf("Warning: failed to add watch for new directory %s: %v", event.Name, err)
			}
		}
		return false
	}
	if !parser.IsSupportedFile(event.Name) || r.isOwnOutput(event.Name) || r.isOwnWrite(event.Name) {
		debug.LogRunner("ignoring %s\n", event.Name)
		return false
	}
	if r.opts.Filter != nil && !r.opts.Filter.Match(event.Name) {
		return false
	}

	pending[event.Name] = struct{}{}
	return true
}

// isOwnOutput reports whether path lies in the output directory, whose
// writes must not feed back into the watch loop
func (r *Runner) isOwnOutput(path string) bool {
	if r.opts.OutDir == "" {
		return false
	}
	out, err := filepath.Abs(r.opts.OutDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(out, abs)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (r *Runner) flush(ctx context.Context, pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}
	files := make([]string, 0, len(pending))
	for path := range pending {
		// An event seen mid-write may have queued a file the runner itself wrote
		if r.isOwnWrite(path) {
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return
	}
	sort.Strings(files)

	started := time.Now()
	summary, err := r.process(ctx, files)
	if err != nil {
		debug.LogRunner("batch interrupted: %v\n", err)
	}
	sort.Slice(summary.Files, func(i, j int) bool { return summary.Files[i].Path < summary.Files[j].Path })
	summary.Duration = time.Since(started)
	debug.LogRunner("batch of %d files: %d changed in %v\n", len(files), summary.Changed, summary.Duration)

	if r.opts.OnBatch != nil {
		r.opts.OnBatch(summary)
	}
}

// addWatches adds a watch to root and every directory below it the filter
// does not prune
func (r *Runner) addWatches(watcher *fsnotify.Watcher, root string) error {
	out := ""
	if r.opts.OutDir != "" {
		out, _ = filepath.Abs(r.opts.OutDir)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && r.opts.Filter != nil && r.opts.Filter.SkipDir(path) {
			return filepath.SkipDir
		}
		if out != "" {
			if abs, err := filepath.Abs(path); err == nil && abs == out {
				return filepath.SkipDir
			}
		}
		if err := watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}
