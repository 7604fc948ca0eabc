// Package daemon runs the long-lived process that owns the store: it loads
// the persisted state, rolls the bucket over each day, saves every change,
// fires task timers, mirrors the state to the remote and picks up writes
// made by CLI invocations.
package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"daybucket/backend"
	"daybucket/internal/notification"
	"daybucket/internal/reminder"
	"daybucket/internal/scheduler"
	"daybucket/internal/shutdown"
	"daybucket/internal/store"
	"daybucket/internal/syncbridge"
	"daybucket/internal/utils"
	"daybucket/internal/watcher"
)

const (
	// DefaultSaveDebounce batches rapid changes into one local write.
	DefaultSaveDebounce = 100 * time.Millisecond
	// DefaultTickInterval is how often the day change is checked.
	DefaultTickInterval = time.Minute
	// DefaultShutdownTimeout bounds the cleanups.
	DefaultShutdownTimeout = 10 * time.Second
)

// Config wires the daemon. Backend is required; the rest is optional.
type Config struct {
	Backend  backend.StateBackend
	Remote   syncbridge.Remote
	Sync     syncbridge.Config
	Notifier notification.Notifier

	RemindersEnabled bool
	Watch            bool

	Location *time.Location
	Clock    store.Clock

	SaveDebounce    time.Duration
	TickInterval    time.Duration
	ShutdownTimeout time.Duration

	// SocketPath and PIDPath enable the control socket when set.
	SocketPath string
	PIDPath    string
}

// Status is reported by `daybucket daemon status`.
type Status struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    time.Time          `json:"startedAt"`
	Today        string             `json:"today"`
	LastRollDate string             `json:"lastRollDate"`
	Tasks        int                `json:"tasks"`
	Saves        int                `json:"saves"`
	Reloads      int                `json:"reloads"`
	Timers       int                `json:"timers"`
	NextTimer    string             `json:"nextTimer,omitempty"`
	Sync         *syncbridge.Status `json:"sync,omitempty"`
	LastError    string             `json:"lastError,omitempty"`
}

// Daemon is the running process state.
type Daemon struct {
	cfg      Config
	store    *store.Store
	sched    *scheduler.Scheduler
	bridge   *syncbridge.Bridge
	watch    *watcher.Watcher
	shutdown *shutdown.Manager
	listener net.Listener

	saveMu    sync.Mutex
	lastSaved []byte

	mu        sync.Mutex
	saveTimer *time.Timer
	saveCtx   context.Context
	startedAt time.Time
	lastRoll  string
	saves     int
	reloads   int
	lastErr   string
}

// New validates cfg and creates the store. Open loads the state.
func New(cfg Config) (*Daemon, error) {
	if cfg.Backend == nil {
		return nil, errors.New("daemon requires a storage backend")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = DefaultSaveDebounce
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	d := &Daemon{
		cfg:     cfg,
		store:   store.New(store.WithClock(cfg.Clock), store.WithLocation(cfg.Location)),
		saveCtx: context.Background(),
	}
	svc := reminder.NewService(d.store, cfg.Notifier, cfg.RemindersEnabled)
	d.sched = scheduler.New(svc.Handle, scheduler.WithClock(cfg.Clock))
	if cfg.Remote != nil {
		syncCfg := cfg.Sync
		if syncCfg.Notifier == nil {
			syncCfg.Notifier = cfg.Notifier
		}
		d.bridge = syncbridge.New(d.store, cfg.Remote, syncCfg)
	}
	return d, nil
}

// Store returns the daemon's store.
func (d *Daemon) Store() *store.Store {
	return d.store
}

// Open loads the local state, rolls over, and starts the timers, the local
// writer, the remote bridge, the watcher and the control socket. Every
// started part is registered with the shutdown manager.
func (d *Daemon) Open(ctx context.Context) error {
	d.shutdown = shutdown.NewManager(ctx)
	d.mu.Lock()
	d.startedAt = d.cfg.Clock()
	d.saveCtx = d.shutdown.Context()
	d.mu.Unlock()

	if err := LoadState(ctx, d.store, d.cfg.Backend); err != nil {
		return err
	}
	if doc, err := store.EncodeSnapshot(d.store.State()); err == nil {
		d.setLastSaved(doc)
	}
	if _, err := d.Rollover(ctx); err != nil {
		return err
	}

	detach := d.sched.Attach(d.store)
	d.shutdown.Register("timers", func(context.Context) error {
		detach()
		d.sched.Stop()
		return nil
	})

	unsubscribe := d.store.Subscribe(d.scheduleSave)
	d.shutdown.Register("save", func(ctx context.Context) error {
		unsubscribe()
		d.stopSaveTimer()
		return d.Save(ctx)
	})
	if err := d.Save(ctx); err != nil {
		return err
	}

	if d.bridge != nil {
		if err := d.bridge.Start(d.shutdown.Context()); err != nil {
			// Offline start: keep working locally and retry on the poll.
			utils.Warnf("Remote sync unavailable at startup: %v", err)
			d.recordError(err)
		}
		d.shutdown.Register("sync", func(ctx context.Context) error {
			defer d.bridge.Close()
			if err := d.bridge.Flush(ctx); err != nil && !errors.Is(err, syncbridge.ErrBreakerOpen) {
				return err
			}
			return nil
		})
	}

	if d.cfg.Watch {
		if err := d.startWatcher(); err != nil {
			utils.Warnf("File watching disabled: %v", err)
		}
	}

	if d.cfg.SocketPath != "" {
		if err := d.listen(); err != nil {
			return err
		}
	}
	return nil
}

// Run opens the daemon and serves until ctx is cancelled, a signal arrives
// or Stop is called. Cleanups always run.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Open(ctx); err != nil {
		if d.shutdown != nil {
			_ = d.Close()
		}
		return err
	}
	stopSignals := d.shutdown.ListenForSignals()
	defer stopSignals()

	runCtx := d.shutdown.Context()
	var wg sync.WaitGroup
	if d.bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.bridge.Run(runCtx)
		}()
	}
	if d.listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.serve(runCtx)
		}()
	}

	utils.Infof("Daemon started (pid %d, today %s)", os.Getpid(), d.store.Today())

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			utils.Infof("Daemon stopping: %s", d.shutdown.Reason())
			err := d.Close()
			wg.Wait()
			return err
		case <-ticker.C:
			if _, err := d.Rollover(runCtx); err != nil {
				utils.Warnf("Rollover failed: %v", err)
				d.recordError(err)
			}
		}
	}
}

// Stop triggers the shutdown.
func (d *Daemon) Stop(reason string) {
	if d.shutdown != nil {
		d.shutdown.Trigger(reason)
	}
}

// Close triggers the shutdown if needed and runs the cleanups.
func (d *Daemon) Close() error {
	if d.shutdown == nil {
		return nil
	}
	d.shutdown.Trigger("close")
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()
	return d.shutdown.Cleanup(ctx)
}

// Rollover runs the daily rollover when the calendar day has changed since
// the last one.
func (d *Daemon) Rollover(ctx context.Context) (bool, error) {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	rolled, today, doc, err := rollover(ctx, d.store, d.cfg.Backend)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	d.lastRoll = today
	d.mu.Unlock()
	if rolled {
		d.setLastSaved(doc)
		utils.Infof("Rolled bucket into %s", today)
	}
	return rolled, nil
}

// Snapshot runs a pending rollover and returns the current document.
func (d *Daemon) Snapshot(ctx context.Context) ([]byte, error) {
	if _, err := d.Rollover(ctx); err != nil {
		return nil, err
	}
	return store.EncodeSnapshot(d.store.State())
}

// Commit replaces the state with doc and saves it at once, provided the
// state still encodes to base. Otherwise it returns store.ErrStateChanged
// and leaves the state alone.
func (d *Daemon) Commit(ctx context.Context, base, doc []byte) error {
	err := d.store.Dispatch(store.CompareAndReplace{Base: base, Payload: store.ParsePayload(doc)})
	if err != nil {
		return err
	}
	d.stopSaveTimer()
	return d.Save(ctx)
}

// Save writes the state to the local backend unless it is unchanged since
// the last save or reload.
func (d *Daemon) Save(ctx context.Context) error {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	doc, err := store.EncodeSnapshot(d.store.State())
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if bytes.Equal(doc, d.getLastSaved()) {
		return nil
	}
	if err := d.cfg.Backend.Save(ctx, doc); err != nil {
		d.recordError(err)
		return fmt.Errorf("failed to save state: %w", err)
	}
	d.setLastSaved(doc)
	d.mu.Lock()
	d.saves++
	d.mu.Unlock()
	utils.Debugf("Saved state (%d bytes)", len(doc))
	return nil
}

// Reload re-reads the local backend and replaces the store when another
// process changed it. It reports whether the store was replaced.
func (d *Daemon) Reload(ctx context.Context) (bool, error) {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	doc, err := d.cfg.Backend.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reload state: %w", err)
	}
	if doc == nil || bytes.Equal(doc, d.getLastSaved()) {
		return false, nil
	}
	local, err := store.EncodeSnapshot(d.store.State())
	if err != nil {
		return false, err
	}
	d.setLastSaved(doc)
	if bytes.Equal(doc, local) {
		return false, nil
	}
	if err := d.store.Dispatch(store.ReplaceAllFromJSON(doc)); err != nil {
		return false, err
	}
	d.mu.Lock()
	d.reloads++
	d.mu.Unlock()
	utils.Debugf("Reloaded state written by another process")
	return true, nil
}

// Status reports the daemon state.
func (d *Daemon) Status() Status {
	st := d.store.State()
	d.mu.Lock()
	s := Status{
		Running:      d.shutdown != nil && !d.shutdown.Triggered(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		Today:        d.store.Today(),
		LastRollDate: d.lastRoll,
		Tasks:        len(st.Items),
		Saves:        d.saves,
		Reloads:      d.reloads,
		LastError:    d.lastErr,
	}
	d.mu.Unlock()

	s.Timers = len(d.sched.Pending())
	if key, at, ok := d.sched.Next(); ok {
		s.NextTimer = fmt.Sprintf("%s %s at %s", key.Kind, key.TaskID, at.In(d.cfg.Location).Format(time.RFC3339))
	}
	if d.bridge != nil {
		bs := d.bridge.Status()
		s.Sync = &bs
	}
	return s
}

// scheduleSave is the store listener for local persistence.
func (d *Daemon) scheduleSave(store.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveTimer != nil {
		d.saveTimer.Stop()
	}
	ctx := d.saveCtx
	d.saveTimer = time.AfterFunc(d.cfg.SaveDebounce, func() {
		if err := d.Save(ctx); err != nil {
			utils.Errorf("%v", err)
		}
	})
}

func (d *Daemon) stopSaveTimer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveTimer != nil {
		d.saveTimer.Stop()
		d.saveTimer = nil
	}
}

func (d *Daemon) startWatcher() error {
	dir, prefix := d.cfg.Backend.WatchPath()
	if dir == "" {
		return errors.New("backend has no watchable path")
	}
	w, err := watcher.New(watcher.Config{
		Dir:   dir,
		Match: watcher.PrefixMatch(prefix),
		OnChange: func() {
			if _, err := d.Reload(d.shutdown.Context()); err != nil {
				utils.Warnf("%v", err)
			}
		},
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	d.watch = w
	d.shutdown.Register("watcher", func(context.Context) error {
		w.Stop()
		return nil
	})
	return nil
}

func (d *Daemon) getLastSaved() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSaved
}

func (d *Daemon) setLastSaved(doc []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSaved = doc
}

func (d *Daemon) recordError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = err.Error()
}

// LoadState replaces the store's state with the backend document. A missing
// document leaves the fresh default state.
func LoadState(ctx context.Context, st *store.Store, be backend.StateBackend) error {
	doc, err := be.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if doc == nil {
		return nil
	}
	return st.Dispatch(store.ReplaceAllFromJSON(doc))
}

// Rollover copies the bucket into today and spawns due recurring instances,
// once per calendar day. The rolled state is saved before the day is
// recorded under backend.RollDateKey, so a rollover is never marked done
// without its copies.
func Rollover(ctx context.Context, st *store.Store, be backend.StateBackend) (bool, string, error) {
	rolled, today, _, err := rollover(ctx, st, be)
	return rolled, today, err
}

func rollover(ctx context.Context, st *store.Store, be backend.StateBackend) (bool, string, []byte, error) {
	today := st.Today()
	last, err := be.GetValue(ctx, backend.RollDateKey)
	if err != nil {
		return false, last, nil, fmt.Errorf("failed to read last roll date: %w", err)
	}
	if last == today {
		return false, today, nil, nil
	}
	if err := st.Dispatch(store.CopyBucketToDate{Date: today}); err != nil {
		return false, last, nil, err
	}
	if err := st.Dispatch(store.ProcessRecurring{Today: today}); err != nil {
		return false, last, nil, err
	}
	doc, err := store.EncodeSnapshot(st.State())
	if err != nil {
		return false, last, nil, fmt.Errorf("failed to encode state: %w", err)
	}
	if err := be.Save(ctx, doc); err != nil {
		return false, last, nil, fmt.Errorf("failed to save rolled state: %w", err)
	}
	if err := be.SetValue(ctx, backend.RollDateKey, today); err != nil {
		return false, last, nil, fmt.Errorf("failed to record roll date: %w", err)
	}
	return true, today, doc, nil
}

// DefaultPIDPath returns the PID file path in the data directory.
func DefaultPIDPath(dataDir string) string {
	return filepath.Join(dataDir, "daemon.pid")
}
