// Package watcher notices writes to the local state made by other processes,
// such as a CLI invocation while the daemon runs. It watches the backend's
// directory, since atomic renames replace the watched file itself.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"daybucket/internal/utils"
)

// DefaultDebounce batches the burst of events a single save produces.
const DefaultDebounce = 200 * time.Millisecond

// Config holds watcher settings.
type Config struct {
	// Dir is the directory to watch.
	Dir string
	// Match filters events by base file name. nil matches everything.
	Match func(name string) bool
	// Debounce is the quiet window after the last event before OnChange runs.
	Debounce time.Duration
	// OnChange runs on the watcher goroutine.
	OnChange func()
}

// PrefixMatch matches file names starting with prefix, which covers a
// database file and its -wal and -journal siblings.
func PrefixMatch(prefix string) func(string) bool {
	return func(name string) bool {
		return strings.HasPrefix(name, prefix)
	}
}

// Watcher delivers debounced change notifications.
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a watcher. Start begins delivering events.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start creates the directory if needed and begins watching it.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	if w.started {
		return nil
	}

	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}
	if err := w.fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.cfg.Dir, err)
	}
	w.started = true
	go w.loop()
	return nil
}

// Stop ends watching and waits for the event loop to exit. It is safe to
// call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	close(w.stopCh)
	w.mu.Unlock()

	_ = w.fsw.Close()
	if started {
		<-w.doneCh
	}
}

func (w *Watcher) matches(path string) bool {
	if w.cfg.Match == nil {
		return true
	}
	return w.cfg.Match(filepath.Base(path))
}

func (w *Watcher) loop() {
	defer close(w.doneCh)

	timer := time.NewTimer(w.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-w.stopCh:
			timer.Stop()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			pending = true
			timer.Reset(w.cfg.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			utils.Warnf("File watcher error: %v", err)

		case <-timer.C:
			pending = false
			if w.cfg.OnChange != nil {
				w.cfg.OnChange()
			}
		}
	}
}
