package codegraph

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher is the process-wide file watcher singleton (spec §4.2's
// stopWatch(), and §5's "The global file watcher is process-wide; a single
// instance holds a handle; start/stop are idempotent"). Unlike the
// teacher's WatcherManager, which juggles many CodeProject rows and swaps
// the active one, this engine has exactly one project root per process, so
// there is nothing to swap between — just one watcher to start and stop.
// Grounded on the teacher's internal/indexer/code_watcher.go debounce loop
// and recursive fsnotify.Add walk.
type Watcher struct {
	builder *Builder
	root    string

	mu      sync.Mutex
	fw      *fsnotify.Watcher
	cancel  context.CancelFunc
	running bool
}

// NewWatcher wraps a Builder with file-watching. The watcher is not started
// until Start is called.
func NewWatcher(builder *Builder, root string) *Watcher {
	return &Watcher{builder: builder, root: root}
}

// Start begins watching the project root, recursively adding subdirectories
// (fsnotify itself is not recursive). Calling Start while already running is
// a no-op, matching the idempotent start/stop contract.
func (w *Watcher) Start(parentCtx context.Context, scanner *Scanner) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if scanner == nil {
		scanner = NewScanner(nil, 0)
	}

	err = filepath.WalkDir(w.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if scanner.ShouldExclude(path, rel) {
			return filepath.SkipDir
		}
		if addErr := fw.Add(path); addErr != nil {
			slog.Warn("codegraph watcher: failed to watch directory", "path", path, "error", addErr)
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(parentCtx)
	w.fw = fw
	w.cancel = cancel
	w.running = true

	go w.run(ctx, scanner)
	slog.Info("codegraph watcher started", "root", w.root)
	return nil
}

// Stop shuts the watcher down. Safe to call multiple times or on a watcher
// that was never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.cancel()
	_ = w.fw.Close()
	w.running = false
	slog.Info("codegraph watcher stopped", "root", w.root)
}

// Running reports whether the watcher is currently active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// run drains fsnotify events, debouncing rapid successive writes into a
// single incremental rescan rather than reindexing on every keystroke of an
// editor's autosave.
func (w *Watcher) run(ctx context.Context, scanner *Scanner) {
	var dirty bool
	var lastEvent time.Time
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					rel, _ := filepath.Rel(w.root, evt.Name)
					if !scanner.ShouldExclude(evt.Name, rel) {
						if err := w.fw.Add(evt.Name); err != nil {
							slog.Warn("codegraph watcher: failed to watch new directory", "path", evt.Name, "error", err)
						}
					}
					continue
				}
			}
			dirty = true
			lastEvent = time.Now()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Warn("codegraph watcher error", "error", err)
		case now := <-ticker.C:
			if dirty && now.Sub(lastEvent) > 300*time.Millisecond {
				dirty = false
				w.rescan(ctx)
			}
		}
	}
}

func (w *Watcher) rescan(ctx context.Context) {
	stats, err := w.builder.Scan(ctx, ScanOptions{})
	if err != nil {
		slog.Warn("codegraph watcher: incremental rescan failed", "error", err)
		return
	}
	slog.Debug("codegraph watcher: incremental rescan complete",
		"added", stats.FilesAdded, "modified", stats.FilesModified, "deleted", stats.FilesDeleted)
}
