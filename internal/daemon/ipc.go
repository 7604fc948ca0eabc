package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"daybucket/internal/store"
	"daybucket/internal/utils"
)

// Message types understood by the control socket.
const (
	MessageNotify = "notify"
	MessageStatus = "status"
	MessageStop   = "stop"
	// MessageSnapshot asks for the current document.
	MessageSnapshot = "snapshot"
	// MessageCommit hands back a changed document with the one it was
	// based on.
	MessageCommit = "commit"
)

// Message is a request sent by the CLI.
type Message struct {
	Type     string `json:"type"`
	Base     []byte `json:"base,omitempty"`
	Document []byte `json:"document,omitempty"`
}

// Response is the daemon's reply.
type Response struct {
	Status   string  `json:"status"` // "ok", "error", "conflict"
	Message  string  `json:"message,omitempty"`
	Running  bool    `json:"running"`
	Daemon   *Status `json:"daemon,omitempty"`
	Document []byte  `json:"document,omitempty"`
}

// listen writes the PID file and opens the control socket.
func (d *Daemon) listen() error {
	if d.cfg.PIDPath != "" {
		if err := os.MkdirAll(filepath.Dir(d.cfg.PIDPath), 0700); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
		if err := os.WriteFile(d.cfg.PIDPath, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(d.cfg.SocketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	_ = os.Remove(d.cfg.SocketPath)

	listener, err := net.Listen("unix", d.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}
	d.listener = listener

	d.shutdown.Register("socket", func(context.Context) error {
		err := listener.Close()
		_ = os.Remove(d.cfg.SocketPath)
		if d.cfg.PIDPath != "" {
			_ = os.Remove(d.cfg.PIDPath)
		}
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	})
	return nil
}

// serve accepts control connections until ctx is done.
func (d *Daemon) serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = d.listener.Close()
	}()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			utils.Warnf("Accept error: %v", err)
			continue
		}
		go d.handleConnection(ctx, conn)
	}
}

func (d *Daemon) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg Message
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	encoder := json.NewEncoder(conn)

	var resp Response
	switch msg.Type {
	case MessageNotify:
		changed, err := d.Reload(ctx)
		if err != nil {
			resp = Response{Status: "error", Message: err.Error(), Running: true}
			break
		}
		resp = Response{Status: "ok", Running: true}
		if changed {
			resp.Message = "reloaded"
		}

	case MessageStatus:
		s := d.Status()
		resp = Response{Status: "ok", Running: true, Daemon: &s}

	case MessageSnapshot:
		doc, err := d.Snapshot(ctx)
		if err != nil {
			resp = Response{Status: "error", Message: err.Error(), Running: true}
			break
		}
		resp = Response{Status: "ok", Running: true, Document: doc}

	case MessageCommit:
		err := d.Commit(ctx, msg.Base, msg.Document)
		switch {
		case errors.Is(err, store.ErrStateChanged):
			resp = Response{Status: "conflict", Message: err.Error(), Running: true}
		case err != nil:
			resp = Response{Status: "error", Message: err.Error(), Running: true}
		default:
			resp = Response{Status: "ok", Running: true}
		}

	case MessageStop:
		_ = encoder.Encode(Response{Status: "ok", Running: false})
		d.Stop("stop requested")
		return

	default:
		resp = Response{Status: "error", Message: "unknown message type"}
	}
	_ = encoder.Encode(resp)
}

// Client talks to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 2 * time.Second}
}

// Notify asks the daemon to reload the local state.
func (c *Client) Notify() error {
	resp, err := c.sendAndReceive(Message{Type: MessageNotify})
	if err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("daemon: %s", resp.Message)
	}
	return nil
}

// Status returns the daemon status.
func (c *Client) Status() (*Response, error) {
	return c.sendAndReceive(Message{Type: MessageStatus})
}

// Snapshot returns the daemon's current document, rolled over to today.
func (c *Client) Snapshot() ([]byte, error) {
	resp, err := c.sendAndReceive(Message{Type: MessageSnapshot})
	if err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("daemon: %s", resp.Message)
	}
	return resp.Document, nil
}

// Commit hands doc to the daemon, which saves it. base is the snapshot doc
// was derived from; store.ErrStateChanged means the daemon's state moved
// on in between and nothing was written.
func (c *Client) Commit(base, doc []byte) error {
	resp, err := c.sendAndReceive(Message{Type: MessageCommit, Base: base, Document: doc})
	if err != nil {
		return err
	}
	switch resp.Status {
	case "ok":
		return nil
	case "conflict":
		return store.ErrStateChanged
	default:
		return fmt.Errorf("daemon: %s", resp.Message)
	}
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() error {
	_, err := c.sendAndReceive(Message{Type: MessageStop})
	return err
}

func (c *Client) sendAndReceive(msg Message) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &resp, nil
}

// NotifyIfRunning tells a running daemon that the local state changed. It
// is a no-op when no daemon answers.
func NotifyIfRunning(pidPath, socketPath string) {
	if !IsRunning(pidPath, socketPath) {
		return
	}
	if err := NewClient(socketPath).Notify(); err != nil {
		utils.Debugf("Daemon notify failed: %v", err)
	}
}

// Fork starts executable with args as a detached process.
func Fork(executable string, args []string) error {
	if executable == "" {
		var err error
		executable, err = os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
	}
	cmd := exec.Command(executable, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to release daemon process: %w", err)
	}
	return nil
}

// IsRunning checks the PID file and the socket. A stale PID file is removed.
func IsRunning(pidPath, socketPath string) bool {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix
	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(pidPath)
		_ = os.Remove(socketPath)
		return false
	}

	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// GetSocketPath returns the default socket path.
func GetSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "daybucket", "daemon.sock")
	}
	return fmt.Sprintf("/tmp/daybucket-daemon-%d.sock", os.Getuid())
}
