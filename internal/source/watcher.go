package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyuha/vyuha-scene/internal/graph"
)

// Handler receives every snapshot the watcher decodes.
type Handler func(ctx context.Context, snap *graph.Snapshot) error

// DefaultDebounce is how long a file must stay quiet before it is read.
const DefaultDebounce = 150 * time.Millisecond

// ---------------------------------------------------------------------------
// Watcher watches a replay directory for snapshot files and submits each
// completed file to a Handler.
// ---------------------------------------------------------------------------

// Watcher feeds a temporal replay series into the server. Files already in
// the directory are replayed in name order on Start; later writes are
// picked up through fsnotify.
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	done     chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*time.Timer

	// stats
	loaded     atomic.Int64
	decodeErrs atomic.Int64
	submitErrs atomic.Int64
	startedAt  time.Time
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(dir string, handler Handler, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		handler:  handler,
		debounce: debounce,
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Start replays existing files and begins watching. It returns once the
// watch is established; events are handled until ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("source: create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("source: watch %s: %w", w.dir, err)
	}

	w.startedAt = time.Now().UTC()
	w.replayExisting(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fw.Close()
		w.loop(ctx, fw)
	}()

	slog.Info("replay watcher started", "dir", w.dir)
	return nil
}

// Stop signals the watcher to stop and waits for the event loop to finish.
func (w *Watcher) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.wg.Wait()

	w.mu.Lock()
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	w.mu.Unlock()

	slog.Info("replay watcher stopped",
		"dir", w.dir,
		"loaded", w.loaded.Load(),
	)
}

func (w *Watcher) replayExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Error("replay watcher: read dir", "dir", w.dir, "error", err)
		return
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatFromPath(e.Name()); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		w.process(ctx, filepath.Join(w.dir, name))
	}
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, err := FormatFromPath(event.Name); err != nil {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("replay watcher error", "dir", w.dir, "error", err)
		}
	}
}

// schedule debounces per file: a snapshot is read once writes to it have
// stopped for the debounce interval.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		default:
		}
		w.process(ctx, path)
	})
}

func (w *Watcher) process(ctx context.Context, path string) {
	snap, err := NewFileSource(path).Fetch(ctx)
	if err != nil {
		w.decodeErrs.Add(1)
		slog.Warn("replay watcher: decode failed", "file", path, "error", err)
		return
	}
	if err := w.handler(ctx, snap); err != nil {
		w.submitErrs.Add(1)
		slog.Warn("replay watcher: submit error", "file", path, "error", err)
		return
	}
	w.loaded.Add(1)
	slog.Debug("replay watcher: snapshot loaded",
		"file", path,
		"snapshot_id", snap.ID,
		"commit", snap.CommitSHA,
	)
}

// Status returns a snapshot of the watcher's current state.
func (w *Watcher) Status() WatcherStatus {
	return WatcherStatus{
		Dir:        w.dir,
		Loaded:     w.loaded.Load(),
		DecodeErrs: w.decodeErrs.Load(),
		SubmitErrs: w.submitErrs.Load(),
		StartedAt:  w.startedAt,
	}
}

// WatcherStatus is a JSON-friendly snapshot of watcher state.
type WatcherStatus struct {
	Dir        string    `json:"dir"`
	Loaded     int64     `json:"loaded"`
	DecodeErrs int64     `json:"decode_errors"`
	SubmitErrs int64     `json:"submit_errors"`
	StartedAt  time.Time `json:"started_at"`
}
