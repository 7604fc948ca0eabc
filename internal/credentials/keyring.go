package credentials

import (
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

// SystemKeyring uses the OS secret store (Secret Service, Keychain or
// Windows Credential Manager).
type SystemKeyring struct{}

func (SystemKeyring) Set(service, account, secret string) error {
	return keyring.Set(service, account, secret)
}

func (SystemKeyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return secret, err
}

func (SystemKeyring) Delete(service, account string) error {
	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// MemoryKeyring keeps secrets in memory.
type MemoryKeyring struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryKeyring returns an empty in-memory keyring.
func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{secrets: make(map[string]string)}
}

func (m *MemoryKeyring) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[service+"/"+account] = secret
	return nil
}

func (m *MemoryKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.secrets[service+"/"+account]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

func (m *MemoryKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := service + "/" + account
	if _, ok := m.secrets[key]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, key)
	return nil
}
