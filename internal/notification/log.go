package notification

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultLogMaxSizeMB is the size at which the log is rotated to <path>.old.
const DefaultLogMaxSizeMB = 5

type logChannel struct {
	cfg  LogConfig
	file *os.File
	mu   sync.Mutex
}

// NewLogChannel returns a channel appending one line per notification to
// cfg.Path.
func NewLogChannel(cfg LogConfig) Channel {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultLogMaxSizeMB
	}
	return &logChannel{cfg: cfg}
}

// FormatLine renders n as a log line:
// 2026-10-17T09:00:00Z [REMINDER] Title: message (task <id>)
func FormatLine(n Notification) string {
	var b strings.Builder
	b.WriteString(n.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(string(n.Type)))
	b.WriteString("] ")
	b.WriteString(n.Title)
	if n.Message != "" {
		b.WriteString(": ")
		b.WriteString(n.Message)
	}
	if n.TaskID != "" {
		fmt.Fprintf(&b, " (task %s)", n.TaskID)
	}
	return b.String()
}

func (c *logChannel) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.open(); err != nil {
		return err
	}
	if _, err := c.file.WriteString(FormatLine(n) + "\n"); err != nil {
		return fmt.Errorf("failed to write notification log: %w", err)
	}
	return c.file.Sync()
}

func (c *logChannel) open() error {
	if c.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.cfg.Path), 0755); err != nil {
		return fmt.Errorf("failed to create notification log directory: %w", err)
	}
	if err := c.rotate(); err != nil {
		return err
	}
	file, err := os.OpenFile(c.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open notification log: %w", err)
	}
	c.file = file
	return nil
}

func (c *logChannel) rotate() error {
	info, err := os.Stat(c.cfg.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < int64(c.cfg.MaxSizeMB)*1024*1024 {
		return nil
	}
	if err := os.Rename(c.cfg.Path, c.cfg.Path+".old"); err != nil {
		return fmt.Errorf("failed to rotate notification log: %w", err)
	}
	return nil
}

func (c *logChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// ReadLog returns the lines of the notification log. A missing log is empty.
func ReadLog(path string) ([]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ClearLog truncates the notification log.
func ClearLog(path string) error {
	return os.WriteFile(path, nil, 0644)
}
