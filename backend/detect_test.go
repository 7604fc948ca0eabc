package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type memBackend struct {
	doc    []byte
	values map[string]string
}

func (m *memBackend) Load(context.Context) ([]byte, error)     { return m.doc, nil }
func (m *memBackend) Save(_ context.Context, doc []byte) error { m.doc = doc; return nil }
func (m *memBackend) GetValue(_ context.Context, k string) (string, error) {
	return m.values[k], nil
}
func (m *memBackend) SetValue(_ context.Context, k, v string) error {
	m.values[k] = v
	return nil
}
func (m *memBackend) WatchPath() (string, string) { return "", "" }
func (m *memBackend) Close() error                { return nil }

func TestRegisterAndOpen(t *testing.T) {
	Register("mem-test", func(opts Options) (StateBackend, error) {
		return &memBackend{values: map[string]string{"ns": opts.Namespace}}, nil
	})

	be, err := Open("mem-test", Options{Namespace: "x_"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if v, _ := be.GetValue(context.Background(), "ns"); v != "x_" {
		t.Errorf("options not passed to constructor, got %q", v)
	}

	found := false
	for _, name := range Names() {
		if name == "mem-test" {
			found = true
		}
	}
	if !found {
		t.Error("Names() should include registered backend")
	}
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("does-not-exist", Options{})
	if err == nil || !strings.Contains(err.Error(), "unknown storage backend") {
		t.Errorf("expected unknown backend error, got %v", err)
	}
}

func TestOpenConstructorError(t *testing.T) {
	Register("broken-test", func(Options) (StateBackend, error) {
		return nil, errors.New("disk full")
	})
	_, err := Open("broken-test", Options{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected wrapped constructor error, got %v", err)
	}
}

func TestOptionsKey(t *testing.T) {
	if got := (Options{Namespace: "todo_mui_rtk_v1_"}).Key(StateKey); got != "todo_mui_rtk_v1_state" {
		t.Errorf("Key() = %q", got)
	}
}
