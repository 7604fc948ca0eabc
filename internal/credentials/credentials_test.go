package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"daybucket/internal/config"
)

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestSetAndGetKeyring(t *testing.T) {
	kr := NewMemoryKeyring()
	m := NewManager(WithKeyring(kr), WithGetenv(env(nil)))
	ctx := context.Background()

	if err := m.Set(ctx, "", "  secret-key \n"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	info, err := m.Get(ctx, "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !info.Found || info.Source != SourceKeyring || info.Key != "secret-key" || info.Account != DefaultAccount {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestGetFallsBackToEnv(t *testing.T) {
	m := NewManager(WithKeyring(NewMemoryKeyring()), WithGetenv(env(map[string]string{
		config.EnvSupabaseKey: "from-env",
	})))
	info, err := m.Get(context.Background(), "work")
	if err != nil {
		t.Fatal(err)
	}
	if info.Source != SourceEnvironment || info.Key != "from-env" || info.Account != "work" {
		t.Errorf("unexpected info %+v", info)
	}
}

type brokenKeyring struct{}

func (brokenKeyring) Set(string, string, string) error { return errors.New("dbus unavailable") }
func (brokenKeyring) Get(string, string) (string, error) {
	return "", errors.New("dbus unavailable")
}
func (brokenKeyring) Delete(string, string) error { return errors.New("dbus unavailable") }

func TestUnavailableKeyring(t *testing.T) {
	m := NewManager(WithKeyring(brokenKeyring{}), WithGetenv(env(map[string]string{
		config.EnvSupabaseKey: "fallback",
	})))
	ctx := context.Background()

	info, err := m.Get(ctx, "")
	if err != nil || info.Key != "fallback" {
		t.Errorf("broken keyring should fall back to env: %+v, %v", info, err)
	}
	if err := m.Set(ctx, "", "k"); err == nil {
		t.Error("Set should surface keyring errors")
	}
	if err := m.Delete(ctx, ""); err == nil {
		t.Error("Delete should surface keyring errors")
	}
}

func TestNotFound(t *testing.T) {
	m := NewManager(WithKeyring(NewMemoryKeyring()), WithGetenv(env(nil)))
	info, err := m.Get(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if info.Found || info.Source != SourceNone {
		t.Errorf("expected not found, got %+v", info)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	kr := NewMemoryKeyring()
	m := NewManager(WithKeyring(kr), WithGetenv(env(nil)))
	ctx := context.Background()
	_ = m.Set(ctx, "", "k")

	if err := m.Delete(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, ""); err != nil {
		t.Errorf("second delete should succeed: %v", err)
	}
	if _, err := kr.Get(ServiceName, DefaultAccount); !errors.Is(err, ErrNotFound) {
		t.Error("key should be gone")
	}
}

func TestSetRejectsEmpty(t *testing.T) {
	m := NewManager(WithKeyring(NewMemoryKeyring()))
	if err := m.Set(context.Background(), "", "   "); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestInfoJSONOmitsKey(t *testing.T) {
	data, err := json.Marshal(Info{Account: "a", Source: SourceKeyring, Key: "s3cret", Found: true})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Errorf("key leaked into JSON: %s", data)
	}
}

func TestPromptKeyNonTTY(t *testing.T) {
	var out bytes.Buffer
	key, err := PromptKey(strings.NewReader("abc123\n"), &out, "")
	if err != nil || key != "abc123" {
		t.Errorf("PromptKey() = %q, %v", key, err)
	}
	if !strings.Contains(out.String(), "Enter API key for supabase") {
		t.Errorf("unexpected prompt %q", out.String())
	}
	if _, err := PromptKey(strings.NewReader(""), &out, ""); err == nil {
		t.Error("expected error on empty input")
	}
}

func TestCLIHandler(t *testing.T) {
	kr := NewMemoryKeyring()
	m := NewManager(WithKeyring(kr), WithGetenv(env(nil)))
	ctx := context.Background()

	var out bytes.Buffer
	h := NewCLIHandler(m, strings.NewReader("topsecret\n"), &out)
	if err := h.Set(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "stored in system keyring") {
		t.Errorf("unexpected output %q", out.String())
	}

	out.Reset()
	if err := h.Get(ctx, "", false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "topsecret") || !strings.Contains(out.String(), "Source: keyring") {
		t.Errorf("unexpected output %q", out.String())
	}

	out.Reset()
	if err := h.Get(ctx, "", true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"found":true`) {
		t.Errorf("unexpected JSON %q", out.String())
	}

	out.Reset()
	if err := h.Delete(ctx, ""); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	_ = h.Get(ctx, "", false)
	if !strings.Contains(out.String(), "daybucket credentials set") {
		t.Errorf("expected suggestion, got %q", out.String())
	}
}
