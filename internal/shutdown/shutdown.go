// Package shutdown coordinates graceful termination of the daemon: it turns
// SIGINT/SIGTERM into a cancelled context and runs registered cleanups in
// reverse registration order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"daybucket/internal/utils"
)

// CleanupFunc releases a resource. ctx expires when the shutdown deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanup struct {
	name string
	fn   CleanupFunc
}

// Manager tracks cleanups and the shutdown state.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanup
	reason   string

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	ran    sync.Once
	err    error
}

// NewManager returns a Manager whose context is derived from parent.
func NewManager(parent context.Context) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Manager{ctx: ctx, cancel: cancel}
}

// Register adds a cleanup. Cleanups run last registered, first called.
func (m *Manager) Register(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanup{name: name, fn: fn})
}

// Trigger starts the shutdown. Only the first call records its reason.
func (m *Manager) Trigger(reason string) {
	m.once.Do(func() {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()
		utils.Debugf("Shutdown requested: %s", reason)
		m.cancel()
	})
}

// ListenForSignals triggers the shutdown on SIGINT or SIGTERM. The returned
// function stops listening.
func (m *Manager) ListenForSignals() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			m.Trigger(sig.String())
		case <-m.ctx.Done():
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// Done is closed once the shutdown has been triggered.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// Context is cancelled when the shutdown is triggered.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Triggered reports whether the shutdown has started.
func (m *Manager) Triggered() bool {
	return m.ctx.Err() != nil
}

// Reason returns what triggered the shutdown, or "".
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Cleanup runs every registered cleanup once, in LIFO order, and joins their
// errors. A failed cleanup does not stop the rest. Later calls return the
// first call's result.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.ran.Do(func() {
		m.mu.Lock()
		cleanups := make([]cleanup, len(m.cleanups))
		copy(cleanups, m.cleanups)
		m.mu.Unlock()

		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			c := cleanups[i]
			if err := c.fn(ctx); err != nil {
				utils.Warnf("Cleanup %s failed: %v", c.name, err)
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
				continue
			}
			utils.Debugf("Cleanup %s done", c.name)
		}
		m.err = errors.Join(errs...)
	})
	return m.err
}
