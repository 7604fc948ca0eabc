// Package syncbridge mirrors the store to a remote document store. Inbound
// documents replace the local state unless they echo what is already known;
// local changes are pushed after a quiet period, guarded by a circuit breaker
// and retried with backoff.
package syncbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"daybucket/internal/backoff"
	"daybucket/internal/notification"
	"daybucket/internal/store"
	"daybucket/internal/utils"
)

// DefaultDebounce is the quiet period before local changes are pushed.
const DefaultDebounce = 300 * time.Millisecond

// DefaultPollInterval is how often Run pulls the remote document.
const DefaultPollInterval = 30 * time.Second

// ErrBreakerOpen is returned by Flush while the circuit breaker rejects pushes.
var ErrBreakerOpen = errors.New("remote writes paused after repeated failures")

// Remote is a document store holding one serialized state.
type Remote interface {
	// Pull returns the stored document, or nil when none exists.
	Pull(ctx context.Context) ([]byte, error)
	Push(ctx context.Context, doc []byte) error
}

// Config tunes a Bridge. Zero values take defaults.
type Config struct {
	Debounce     time.Duration
	PollInterval time.Duration
	Retry        backoff.Policy
	Breaker      *CircuitBreaker
	Notifier     notification.Notifier
}

// Status describes the bridge for display.
type Status struct {
	Breaker     string    `json:"breaker"`
	Failures    int       `json:"failures"`
	Pending     bool      `json:"pending"`
	Pushes      int       `json:"pushes"`
	Ingests     int       `json:"ingests"`
	LastPush    time.Time `json:"lastPush,omitempty"`
	LastPull    time.Time `json:"lastPull,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	LastErrorAt time.Time `json:"lastErrorAt,omitempty"`
}

// Bridge connects a store to a Remote.
type Bridge struct {
	store  *store.Store
	remote Remote
	cfg    Config

	mu       sync.Mutex
	lastSeen []byte // last document known to be on the remote
	lastSent []byte // last document this bridge pushed successfully
	pending  []byte
	timer    *time.Timer
	ctx      context.Context
	status   Status
	unsub    func()

	pushMu sync.Mutex
}

// New returns a bridge. Start connects it to the store.
func New(st *store.Store, remote Remote, cfg Config) *Bridge {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Retry == (backoff.Policy{}) {
		cfg.Retry = backoff.DefaultPolicy()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewCircuitBreaker(DefaultBreakerThreshold, DefaultBreakerCooldown, nil)
	}
	return &Bridge{store: st, remote: remote, cfg: cfg, ctx: context.Background()}
}

// Start pulls the remote document, ingests it and then follows local
// changes. An empty remote is seeded with the local state. ctx bounds the
// debounced pushes.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	doc, err := b.pull(ctx)
	if err != nil {
		return err
	}
	if doc != nil {
		if _, err := b.Ingest(doc); err != nil {
			return err
		}
	}

	unsub := b.store.Subscribe(b.onChange)
	b.mu.Lock()
	b.unsub = unsub
	b.mu.Unlock()

	if doc == nil {
		b.onChange(b.store.State())
	}
	return nil
}

// Ingest applies an inbound document. It reports whether the store was
// replaced: a document equal to the last one seen on the remote, or to the
// local state, is not applied.
func (b *Bridge) Ingest(raw []byte) (bool, error) {
	doc, err := canonical(raw)
	if err != nil {
		// Malformed documents still replace the state with an empty list,
		// the same as any unrecognized payload.
		doc = bytes.TrimSpace(raw)
	}

	b.mu.Lock()
	if b.lastSeen != nil && bytes.Equal(doc, b.lastSeen) {
		b.mu.Unlock()
		return false, nil
	}
	b.lastSeen = doc
	b.mu.Unlock()

	local, err := encodeState(b.store.State())
	if err != nil {
		return false, err
	}
	if bytes.Equal(doc, local) {
		return false, nil
	}

	if err := b.store.Dispatch(store.ReplaceAllFromJSON(raw)); err != nil {
		return false, fmt.Errorf("failed to apply remote document: %w", err)
	}
	b.mu.Lock()
	b.status.Ingests++
	b.mu.Unlock()
	utils.Debugf("Ingested remote document (%d bytes)", len(raw))
	return true, nil
}

// onChange is the store listener. It must not block.
func (b *Bridge) onChange(st store.State) {
	doc, err := encodeState(st)
	if err != nil {
		utils.Errorf("Failed to encode state for sync: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if bytes.Equal(doc, b.lastSent) || bytes.Equal(doc, b.lastSeen) {
		return
	}
	b.pending = doc
	if b.timer != nil {
		b.timer.Stop()
	}
	ctx := b.ctx
	b.timer = time.AfterFunc(b.cfg.Debounce, func() {
		if err := b.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			utils.Warnf("Sync push failed: %v", err)
		}
	})
}

// Flush pushes the pending document now, if there is one.
func (b *Bridge) Flush(ctx context.Context) error {
	b.pushMu.Lock()
	defer b.pushMu.Unlock()

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	doc := b.pending
	b.pending = nil
	if doc == nil {
		b.mu.Unlock()
		return nil
	}
	if !b.cfg.Breaker.Allow() {
		b.pending = doc
		b.mu.Unlock()
		return ErrBreakerOpen
	}
	previous := b.lastSeen
	b.lastSeen = doc
	b.mu.Unlock()

	err := backoff.Retry(ctx, b.cfg.Retry, func(ctx context.Context) error {
		return b.remote.Push(ctx, doc)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		if bytes.Equal(b.lastSeen, doc) {
			b.lastSeen = previous
		}
		if b.pending == nil {
			b.pending = doc
		}
		if ctx.Err() != nil {
			return err
		}
		b.cfg.Breaker.RecordFailure()
		b.recordError(err)
		b.notifyFailure(err)
		return fmt.Errorf("push failed: %w", err)
	}
	b.cfg.Breaker.RecordSuccess()
	b.lastSent = doc
	b.status.Pushes++
	b.status.LastPush = time.Now()
	utils.Debugf("Pushed state document (%d bytes)", len(doc))
	return nil
}

// Pull fetches the remote document and ingests it.
func (b *Bridge) Pull(ctx context.Context) (bool, error) {
	doc, err := b.pull(ctx)
	if err != nil || doc == nil {
		return false, err
	}
	return b.Ingest(doc)
}

func (b *Bridge) pull(ctx context.Context) ([]byte, error) {
	doc, err := b.remote.Pull(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.recordError(err)
		return nil, fmt.Errorf("pull failed: %w", err)
	}
	b.status.LastPull = time.Now()
	return doc, nil
}

// Run polls the remote until ctx is done. A push held back by the breaker
// or a failure is retried on each tick.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if b.hasPending() {
				if err := b.Flush(ctx); err != nil && !errors.Is(err, ErrBreakerOpen) {
					utils.Warnf("Sync retry failed: %v", err)
				}
			}
			if _, err := b.Pull(ctx); err != nil {
				utils.Warnf("Sync poll failed: %v", err)
			}
		}
	}
}

// Close stops following the store and cancels a scheduled push. Call Flush
// first to send pending changes.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Status returns a snapshot of the bridge state.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.status
	s.Breaker = b.cfg.Breaker.State().String()
	s.Failures = b.cfg.Breaker.Failures()
	s.Pending = b.pending != nil
	return s
}

func (b *Bridge) hasPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}

// recordError stores err in the status. Caller holds mu.
func (b *Bridge) recordError(err error) {
	b.status.LastError = err.Error()
	b.status.LastErrorAt = time.Now()
}

func (b *Bridge) notifyFailure(err error) {
	if b.cfg.Notifier == nil {
		return
	}
	n := notification.Notification{
		Type:    notification.TypeSyncError,
		Title:   "Sync failed",
		Message: err.Error(),
	}
	go func() {
		if nerr := b.cfg.Notifier.Notify(context.Background(), n); nerr != nil {
			utils.Debugf("Sync error notification failed: %v", nerr)
		}
	}()
}

func encodeState(st store.State) ([]byte, error) {
	raw, err := store.EncodeSnapshot(st)
	if err != nil {
		return nil, err
	}
	return canonical(raw)
}

// canonical re-encodes a JSON document with sorted keys and no insignificant
// whitespace so equal documents compare equal byte for byte.
func canonical(raw []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
