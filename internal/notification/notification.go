// Package notification delivers user-facing notices (due reminders, unlocked
// tasks, sync failures) through the desktop notifier and an append-only log.
package notification

import (
	"context"
	"time"
)

// Type identifies what a notification is about.
type Type string

const (
	TypeReminder  Type = "reminder"
	TypeUnlocked  Type = "unlocked"
	TypeSyncError Type = "sync_error"
	TypeTest      Type = "test"
)

// Notification is one notice.
type Notification struct {
	Type      Type
	Title     string
	Message   string
	TaskID    string
	Timestamp time.Time
}

// Notifier sends notifications. *Manager implements it; tests substitute a
// recorder.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Channel is one delivery mechanism.
type Channel interface {
	Send(n Notification) error
	Close() error
}

// Config selects and configures channels.
type Config struct {
	OS  OSConfig
	Log LogConfig
}

// OSConfig configures desktop notifications.
type OSConfig struct {
	Enabled bool
	// Skip lists types that are not shown on the desktop.
	Skip []Type
}

// LogConfig configures the notification log.
type LogConfig struct {
	Enabled   bool
	Path      string
	MaxSizeMB int
}

// CommandExecutor runs an external command.
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

// ExecutorFunc adapts a function to CommandExecutor.
type ExecutorFunc func(cmd string, args ...string) error

// Execute calls f.
func (f ExecutorFunc) Execute(cmd string, args ...string) error {
	return f(cmd, args...)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithCommandExecutor replaces the desktop notifier command runner.
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(m *Manager) {
		m.executor = executor
	}
}

// WithPlatform overrides runtime.GOOS for the desktop channel.
func WithPlatform(platform string) Option {
	return func(m *Manager) {
		m.platform = platform
	}
}

// WithClock sets the timestamp source for notifications sent without one.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithChannel adds an extra channel.
func WithChannel(ch Channel) Option {
	return func(m *Manager) {
		m.channels = append(m.channels, ch)
	}
}
