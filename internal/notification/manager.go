package notification

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"daybucket/internal/utils"
)

// Manager fans a notification out to every configured channel.
type Manager struct {
	channels []Channel
	executor CommandExecutor
	platform string
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewManager builds the channels enabled in cfg.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		platform: runtime.GOOS,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.executor == nil {
		m.executor = execCommand{}
	}

	if cfg.OS.Enabled {
		m.channels = append(m.channels, newOSChannel(cfg.OS, m.platform, m.executor))
	}
	if cfg.Log.Enabled && cfg.Log.Path != "" {
		m.channels = append(m.channels, NewLogChannel(cfg.Log))
	}
	return m
}

// Notify sends n to every channel. A failing channel does not stop the
// others; their errors are joined.
func (m *Manager) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = m.now()
	}

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyAsync sends n in the background and logs failures. Close waits for
// pending sends.
func (m *Manager) NotifyAsync(n Notification) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.Notify(context.Background(), n); err != nil {
			utils.Warnf("Notification %s failed: %v", n.Type, err)
		}
	}()
}

// Close waits for background sends and closes every channel.
func (m *Manager) Close() error {
	m.wg.Wait()
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChannelCount returns the number of active channels.
func (m *Manager) ChannelCount() int {
	return len(m.channels)
}
