package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func resetLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	once = sync.Once{}
	loggerInstance = nil
	var buf bytes.Buffer
	logger := GetLogger()
	logger.SetOutput(&buf)
	return logger, &buf
}

// TestGetLogger verifies the singleton pattern
func TestGetLogger(t *testing.T) {
	if GetLogger() != GetLogger() {
		t.Error("GetLogger() should return same singleton instance")
	}
}

func TestSetVerboseMode(t *testing.T) {
	logger, _ := resetLogger(t)
	if logger.IsVerbose() {
		t.Fatal("Logger should have verbose=false by default")
	}

	SetVerboseMode(true)
	if !logger.IsVerbose() {
		t.Error("SetVerboseMode(true) should enable verbose mode")
	}
	SetVerboseMode(false)
	if logger.IsVerbose() {
		t.Error("SetVerboseMode(false) should disable verbose mode")
	}
}

// TestDebugOnlyShownWhenVerbose verifies Debug output only when verbose=true
func TestDebugOnlyShownWhenVerbose(t *testing.T) {
	logger, buf := resetLogger(t)

	logger.Debug("hidden message")
	if buf.Len() > 0 {
		t.Errorf("Debug should not output when verbose=false, got: %s", buf.String())
	}

	logger.SetVerbose(true)
	logger.Debug("shown %s", "message")
	out := buf.String()
	if !strings.Contains(out, "level=debug") {
		t.Errorf("expected debug level in output, got: %s", out)
	}
	if !strings.Contains(out, "shown message") {
		t.Errorf("expected formatted message, got: %s", out)
	}
}

func TestLevelsAlwaysShown(t *testing.T) {
	tests := []struct {
		name  string
		log   func(string, ...interface{})
		level string
	}{
		{"info", Infof, "level=info"},
		{"warn", Warnf, "level=warning"},
		{"error", Errorf, "level=error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, buf := resetLogger(t)
			tt.log("value=%d", 42)
			out := buf.String()
			if !strings.Contains(out, tt.level) {
				t.Errorf("expected %s in output, got: %s", tt.level, out)
			}
			if !strings.Contains(out, "value=42") {
				t.Errorf("expected formatted message, got: %s", out)
			}
			if !strings.Contains(out, "time=") {
				t.Errorf("expected full timestamp, got: %s", out)
			}
		})
	}
}

func TestLoggerThreadSafety(t *testing.T) {
	logger, _ := resetLogger(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.SetVerbose(i%2 == 0)
			logger.Info("message %d", i)
			_ = logger.IsVerbose()
		}(i)
	}
	wg.Wait()
}

func TestBackgroundLoggerWritesMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	bl, err := NewBackgroundLoggerWithPath(path)
	if err != nil {
		t.Fatalf("NewBackgroundLoggerWithPath() error = %v", err)
	}
	if !bl.IsEnabled() {
		t.Fatal("background logger should be enabled")
	}

	bl.Printf("saved %d tasks", 3)
	bl.Println("shutdown")
	bl.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "saved 3 tasks") {
		t.Errorf("log should contain Printf message, got: %s", content)
	}
	if !strings.Contains(string(content), "shutdown") {
		t.Errorf("log should contain Println message, got: %s", content)
	}
	if bl.IsEnabled() {
		t.Error("Close() should disable the logger")
	}
}

func TestBackgroundLoggerDisabled(t *testing.T) {
	bl, err := NewBackgroundLoggerWithEnabled(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bl.IsEnabled() || bl.GetLogPath() != "" {
		t.Error("disabled logger should have no file")
	}
	bl.Printf("dropped")
}

func TestBackgroundLoggerGracefulDegradation(t *testing.T) {
	bl, err := NewBackgroundLoggerWithPath("/nonexistent/directory/log.txt")
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
	if bl.IsEnabled() {
		t.Error("logger should be disabled after open failure")
	}
	bl.Printf("does not panic")
}
