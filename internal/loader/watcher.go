package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher loads fragments that appear under Root after the initial load.
type Watcher struct {
	Root     string
	Loader   *Loader
	Logger   *slog.Logger
	Debounce time.Duration

	// AfterLoad, when set, runs after each fragment the watcher loads.
	// Loads and their callbacks run one at a time.
	AfterLoad func(Fragment)

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	runMu   sync.Mutex
	running sync.WaitGroup
}

// Start registers watches on Root and every directory below it, then
// processes events in the background until ctx ends or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = fw
	w.timers = make(map[string]*time.Timer)
	w.closed = false
	if w.Debounce <= 0 {
		w.Debounce = defaultDebounce
	}
	if err := w.addRecursive(w.Root); err != nil {
		_ = fw.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

func (w *Watcher) Close() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	<-w.done

	w.mu.Lock()
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = map[string]*time.Timer{}
	w.mu.Unlock()

	w.running.Wait()
	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log().Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if err := w.addRecursive(ev.Name); err != nil {
			w.log().Warn("watch new directory", "path", ev.Name, "error", err)
		}
		// Files may have landed before the watch was in place.
		frags, err := Discover(ev.Name)
		if err != nil {
			return
		}
		for _, f := range frags {
			w.schedule(f.Path)
		}
		return
	}
	w.schedule(ev.Name)
}

// schedule loads the fragment at p once writes to it have settled.
func (w *Watcher) schedule(p string) {
	rel, err := filepath.Rel(w.Root, p)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	kind, ok := Classify(rel)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[p]; ok {
		t.Reset(w.Debounce)
		return
	}
	w.timers[p] = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, p)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.running.Add(1)
		w.mu.Unlock()
		defer w.running.Done()

		w.runMu.Lock()
		defer w.runMu.Unlock()

		w.log().Info("loading new fragment", "path", rel)
		f := Fragment{Path: p, Rel: rel, Kind: kind}
		if err := w.Loader.LoadFragment(f); err != nil {
			w.Loader.recordFailure(err)
		}
		if w.AfterLoad != nil {
			w.AfterLoad(f)
		}
	})
}

func (w *Watcher) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.New(slog.DiscardHandler)
}
