package notification

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordedCall struct {
	cmd  string
	args []string
}

type recordingExecutor struct {
	mu    sync.Mutex
	calls []recordedCall
	err   error
}

func (r *recordingExecutor) Execute(cmd string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{cmd: cmd, args: args})
	return r.err
}

var fixed = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func TestOSNotificationLinux(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(Config{OS: OSConfig{Enabled: true}},
		WithCommandExecutor(exec), WithPlatform("linux"))

	err := m.Notify(context.Background(), Notification{
		Type:    TypeReminder,
		Title:   "Reminder",
		Message: "Buy milk",
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(exec.calls))
	}
	call := exec.calls[0]
	if call.cmd != "notify-send" {
		t.Errorf("expected notify-send, got %s", call.cmd)
	}
	if got := strings.Join(call.args, "|"); !strings.Contains(got, "Reminder|Buy milk") {
		t.Errorf("unexpected args %v", call.args)
	}
}

func TestOSNotificationDarwinEscapes(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(Config{OS: OSConfig{Enabled: true}},
		WithCommandExecutor(exec), WithPlatform("darwin"))

	_ = m.Notify(context.Background(), Notification{Type: TypeTest, Title: "Hi", Message: `say "hello"`})
	if len(exec.calls) != 1 || exec.calls[0].cmd != "osascript" {
		t.Fatalf("expected one osascript call, got %+v", exec.calls)
	}
	if script := exec.calls[0].args[1]; !strings.Contains(script, `say \"hello\"`) {
		t.Errorf("quotes should be escaped: %s", script)
	}
}

func TestEscapePowerShell(t *testing.T) {
	if got := escapePowerShell("cost $5 `x` \"q\""); got != "cost `$5 ``x`` `\"q`\"" {
		t.Errorf("escapePowerShell() = %s", got)
	}
}

func TestOSNotificationSkip(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(Config{OS: OSConfig{Enabled: true, Skip: []Type{TypeSyncError, TypeTest}}},
		WithCommandExecutor(exec), WithPlatform("linux"))

	_ = m.Notify(context.Background(), Notification{Type: TypeSyncError, Title: "Sync failed"})
	if len(exec.calls) != 0 {
		t.Error("skipped type should not reach the desktop")
	}
	_ = m.Notify(context.Background(), Notification{Type: TypeTest, Title: "Test"})
	if len(exec.calls) != 1 {
		t.Error("test notifications are always shown")
	}
}

func TestLogChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "notifications.log")
	m := NewManager(Config{Log: LogConfig{Enabled: true, Path: path}}, WithClock(func() time.Time { return fixed }))
	defer func() { _ = m.Close() }()

	err := m.Notify(context.Background(), Notification{
		Type:    TypeUnlocked,
		Title:   "Task available",
		Message: "Task Write report is now available",
		TaskID:  "t1",
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	lines, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}
	want := "2026-10-17T09:00:00Z [UNLOCKED] Task available: Task Write report is now available (task t1)"
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("log lines = %q, want %q", lines, want)
	}

	if err := ClearLog(path); err != nil {
		t.Fatal(err)
	}
	lines, _ = ReadLog(path)
	if len(lines) != 0 {
		t.Errorf("expected empty log after clear, got %v", lines)
	}
}

func TestLogRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.log")
	big := make([]byte, 1024*1024+1)
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatal(err)
	}
	ch := NewLogChannel(LogConfig{Path: path, MaxSizeMB: 1})
	defer func() { _ = ch.Close() }()

	if err := ch.Send(Notification{Type: TypeTest, Title: "x", Timestamp: fixed}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".old"); err != nil {
		t.Errorf("expected rotated file: %v", err)
	}
	lines, _ := ReadLog(path)
	if len(lines) != 1 {
		t.Errorf("expected a fresh log with 1 line, got %d", len(lines))
	}
}

func TestReadLogMissing(t *testing.T) {
	lines, err := ReadLog(filepath.Join(t.TempDir(), "nope.log"))
	if err != nil || lines != nil {
		t.Errorf("ReadLog(missing) = %v, %v", lines, err)
	}
}

func TestManagerNoChannels(t *testing.T) {
	m := NewManager(Config{})
	if m.ChannelCount() != 0 {
		t.Errorf("expected no channels, got %d", m.ChannelCount())
	}
	if err := m.Notify(context.Background(), Notification{Type: TypeTest}); err != nil {
		t.Errorf("Notify with no channels should succeed: %v", err)
	}
}

func TestManagerJoinsErrors(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("no display")}
	path := filepath.Join(t.TempDir(), "n.log")
	m := NewManager(Config{OS: OSConfig{Enabled: true}, Log: LogConfig{Enabled: true, Path: path}},
		WithCommandExecutor(exec), WithPlatform("linux"))
	defer func() { _ = m.Close() }()

	err := m.Notify(context.Background(), Notification{Type: TypeReminder, Title: "r", Timestamp: fixed})
	if err == nil || !strings.Contains(err.Error(), "no display") {
		t.Errorf("expected desktop error, got %v", err)
	}
	lines, _ := ReadLog(path)
	if len(lines) != 1 {
		t.Error("log channel should still receive the notification")
	}
}

func TestNotifyAsyncAndClose(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(Config{OS: OSConfig{Enabled: true}}, WithCommandExecutor(exec), WithPlatform("linux"))
	m.NotifyAsync(Notification{Type: TypeReminder, Title: "a"})
	m.NotifyAsync(Notification{Type: TypeReminder, Title: "b"})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if len(exec.calls) != 2 {
		t.Errorf("Close should wait for async sends, got %d calls", len(exec.calls))
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	m := NewManager(Config{OS: OSConfig{Enabled: true}}, WithPlatform("plan9"),
		WithCommandExecutor(ExecutorFunc(func(string, ...string) error { return nil })))
	if err := m.Notify(context.Background(), Notification{Type: TypeTest}); err == nil {
		t.Error("expected unsupported platform error")
	}
}
