// Package credentials stores the remote store API key in the OS keyring,
// with DAYBUCKET_SUPABASE_KEY as a fallback for headless machines.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"daybucket/internal/config"
	"daybucket/internal/utils"
)

// ServiceName is the keyring service holding daybucket secrets.
const ServiceName = "daybucket"

// DefaultAccount is used when no account is configured.
const DefaultAccount = "supabase"

// Source says where a key was found.
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// Info describes a key lookup. Key is never serialized.
type Info struct {
	Account string
	Source  Source
	Key     string
	Found   bool
}

// MarshalJSON omits the key itself.
func (i Info) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Account string `json:"account"`
		Source  string `json:"source"`
		Found   bool   `json:"found"`
	}{i.Account, string(i.Source), i.Found})
}

// Keyring is the subset of a secret store the manager uses.
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// ErrNotFound is returned by Keyring implementations for a missing secret.
var ErrNotFound = errors.New("secret not found in keyring")

// Manager looks keys up in the keyring, then in the environment.
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeyring replaces the system keyring.
func WithKeyring(k Keyring) Option {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option {
	return func(m *Manager) {
		m.getenv = fn
	}
}

// NewManager returns a manager backed by the system keyring.
func NewManager(opts ...Option) *Manager {
	m := &Manager{keyring: SystemKeyring{}, getenv: os.Getenv}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func account(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultAccount
	}
	return name
}

// Set stores key for acct.
func (m *Manager) Set(ctx context.Context, acct, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is empty")
	}
	if err := m.keyring.Set(ServiceName, account(acct), key); err != nil {
		return fmt.Errorf("failed to store key in keyring: %w", err)
	}
	return nil
}

// Get finds the key for acct. A missing key is reported through Info.Found,
// not as an error.
func (m *Manager) Get(ctx context.Context, acct string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	acct = account(acct)

	key, err := m.keyring.Get(ServiceName, acct)
	if err == nil && key != "" {
		return Info{Account: acct, Source: SourceKeyring, Key: key, Found: true}, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		utils.Debugf("Keyring unavailable, checking environment: %v", err)
	}

	if key := strings.TrimSpace(m.getenv(config.EnvSupabaseKey)); key != "" {
		return Info{Account: acct, Source: SourceEnvironment, Key: key, Found: true}, nil
	}
	return Info{Account: acct, Source: SourceNone}, nil
}

// Delete removes the stored key. Deleting a missing key succeeds.
func (m *Manager) Delete(ctx context.Context, acct string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.keyring.Delete(ServiceName, account(acct))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete key from keyring: %w", err)
	}
	return nil
}

// PromptKey asks for a key. When in is a terminal the input is hidden.
func PromptKey(in io.Reader, out io.Writer, acct string) (string, error) {
	_, _ = fmt.Fprintf(out, "Enter API key for %s: ", account(acct))

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	return utils.ReadStringWithReader(in)
}
