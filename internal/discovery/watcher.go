package discovery

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last filesystem event
// before a re-scan fires.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches one discovery root recursively and calls onChange
// after events settle. Bursts of events (editor saves, directory
// copies) collapse into a single callback.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	done   chan struct{}
	closed sync.Once
}

// NewWatcher starts watching the root. onChange runs on the watcher's
// goroutine; keep it quick or hand off.
func NewWatcher(root string, debounce time.Duration, onChange func(), logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		fsw:      fsw,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Close stops the watcher and cancels any pending debounce timer.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fsw.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			// New directories must be watched before their contents
			// produce events we would miss.
			if event.Op.Has(fsnotify.Create) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Debug("watch new path", "path", event.Name, "error", err)
				}
			}
			w.bump()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", "root", w.root, "error", err)
		}
	}
}

// bump resets the debounce timer; the callback fires once events go
// quiet for the debounce window.
func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func (w *Watcher) addRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The path may already be gone; rapid create/delete is normal.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if p != path && (skippedDirs[base] || strings.HasPrefix(base, ".")) {
			return fs.SkipDir
		}
		return w.fsw.Add(p)
	})
}
