package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rwese/obsidian-postprocessor/internal/fileutil"
	"github.com/rwese/obsidian-postprocessor/internal/logging"
)

const defaultDebounce = 2 * time.Second

// Filter decides whether a path inside the vault is worth reacting to.
type Filter func(path string, isDir bool) bool

// Options configures a Watcher.
type Options struct {
	Root     string
	Debounce time.Duration
	Filter   Filter
}

// Stats counts watcher activity.
type Stats struct {
	Events    int
	Runs      int
	RunErrors int
	Errors    int
	LastEvent string
	LastRun   time.Time
}

// Watcher reruns a callback whenever tracked files under the vault change.
// Bursts of events collapse into one run once the vault has been quiet for
// the debounce window.
type Watcher struct {
	root     string
	debounce time.Duration
	filter   Filter
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stats   Stats
}

// New creates a watcher over every non-excluded directory below opts.Root.
func New(opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	filter := opts.Filter
	if filter == nil {
		filter = func(string, bool) bool { return true }
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		debounce: debounce,
		filter:   filter,
		logger:   logging.NewComponentLogger(logger, "watch"),
		watcher:  fw,
	}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Stats returns a snapshot of watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close releases the underlying OS watches.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run calls fn once immediately and again after every settled burst of
// changes until ctx is canceled. Errors from fn are logged and do not stop
// the loop; a canceled context returns nil.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	w.invoke(ctx, fn)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if !w.handleEvent(event) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			w.logger.Warn("watch error", logging.Error(err))

		case <-timer.C:
			pending = false
			w.invoke(ctx, fn)
		}
	}
}

func (w *Watcher) invoke(ctx context.Context, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	err := fn(ctx)
	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastRun = time.Now()
	if err != nil && !errors.Is(err, context.Canceled) {
		w.stats.RunErrors++
	}
	w.mu.Unlock()
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("vault pass failed", logging.Error(err))
	}
}

// handleEvent reports whether the event should schedule a run.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if fileutil.IsTempFile(event.Name) {
		return false
	}

	isDir := false
	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			isDir = true
			if w.filter(event.Name, true) {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn("watch new directory failed",
						logging.String("path", event.Name),
						logging.Error(err),
					)
				}
			}
		}
	}
	if !w.filter(event.Name, isDir) {
		return false
	}

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEvent = event.String()
	w.mu.Unlock()
	w.logger.Debug("vault change", logging.String("event", event.String()))
	return true
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("watch %s: %w", p, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && !w.filter(p, true) {
			return fs.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}
