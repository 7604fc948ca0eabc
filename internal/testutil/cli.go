// Package testutil provides shared test utilities for CLI testing across packages.
// This enables co-located CLI tests while maintaining consistent test infrastructure.
package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"daybucket/cmd/daybucket/cmd"
	"daybucket/internal/credentials"
	"daybucket/internal/syncbridge"
)

// defaultTestConfig is the minimal config used by every test constructor to ensure isolation.
const defaultTestConfig = `# test config
storage:
  backend: sqlite
notification:
  os: false
  log: true
logging:
  background_enabled: false
`

// DefaultNow is the wall clock every CLITest starts at.
var DefaultNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// Clock is an adjustable time source shared by the CLI invocations of a test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	clock      *Clock
	keyring    *credentials.MemoryKeyring
}

// NewCLITest creates a CLI test helper with an isolated database, config,
// keyring and daemon paths. Time is frozen at DefaultNow in UTC.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(defaultTestConfig), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	clock := &Clock{now: DefaultNow}
	keyring := credentials.NewMemoryKeyring()
	cfg := &cmd.Config{
		NoPrompt:            true,
		ConfigPath:          configPath,
		DBPath:              filepath.Join(tmpDir, "test.db"),
		Now:                 clock.Now,
		Location:            time.UTC,
		NotificationLogPath: filepath.Join(tmpDir, "notifications.log"),
		NotificationMock:    true,
		Keyring:             keyring,
		Getenv:              func(string) string { return "" },
		SocketPath:          filepath.Join(tmpDir, "daemon.sock"),
		PIDPath:             filepath.Join(tmpDir, "daemon.pid"),
	}

	return &CLITest{
		t:          t,
		cfg:        cfg,
		tmpDir:     tmpDir,
		configPath: configPath,
		clock:      clock,
		keyring:    keyring,
	}
}

// NewCLITestWithRemote creates a CLI test helper whose sync commands talk to
// remote instead of Supabase.
func NewCLITestWithRemote(t *testing.T, remote syncbridge.Remote) *CLITest {
	t.Helper()
	c := NewCLITest(t)
	c.cfg.Remote = remote
	return c
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// Clock returns the fake clock used by every invocation.
func (c *CLITest) Clock() *Clock {
	return c.clock
}

// Keyring returns the in-memory keyring.
func (c *CLITest) Keyring() *credentials.MemoryKeyring {
	return c.keyring
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// NotificationLogPath returns the notification log file.
func (c *CLITest) NotificationLogPath() string {
	return c.cfg.NotificationLogPath
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()
	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// SetStdin makes the next invocations read input from s.
func (c *CLITest) SetStdin(s string) {
	c.cfg.Stdin = strings.NewReader(s)
}

// SetInteractive turns prompts on and feeds them input.
func (c *CLITest) SetInteractive(input string) {
	c.cfg.NoPrompt = false
	c.SetStdin(input)
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// ExecuteJSON runs a command with --json and decodes stdout into v.
func (c *CLITest) ExecuteJSON(v any, args ...string) {
	c.t.Helper()

	stdout := c.MustExecute(append(args, "--json")...)
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), v); err != nil {
		c.t.Fatalf("failed to decode JSON output: %v\n%s", err, stdout)
	}
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies that the output ends with the expected result code.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		t.Errorf("expected result code %q but output is empty", expectedCode)
		return
	}
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, lastLine, output)
	}
}

// Result code constants for convenience.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)
