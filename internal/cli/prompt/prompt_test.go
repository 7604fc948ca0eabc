package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"daybucket/internal/store"
)

func sampleTasks() []store.Task {
	return []store.Task{
		{ID: "t1", Title: "Buy groceries", Date: "2026-03-10", Priority: store.PriorityHigh},
		{ID: "t2", Title: "Fix bug in parser", Backlog: true},
		{ID: "t3", Title: "Write documentation", Tags: []string{"docs"}},
		{ID: "t4", Title: "Buy milk", Completed: true, Date: "2026-03-10"},
	}
}

// =============================================================================
// TaskSelector
// =============================================================================

func TestTaskSelectorFiltersAndSelects(t *testing.T) {
	var out bytes.Buffer
	selector := &TaskSelector{
		Tasks:  sampleTasks(),
		Prompt: "Which task?",
		Reader: strings.NewReader("BUY\n2\n"),
		Writer: &out,
	}

	selected, err := selector.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.ID != "t4" {
		t.Errorf("expected t4, got %s", selected.ID)
	}
	if !strings.Contains(out.String(), "1) Buy groceries [open, 2026-03-10, high]") {
		t.Errorf("expected rich task line, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "2) Buy milk [done, 2026-03-10]") {
		t.Errorf("expected completed task line, got:\n%s", out.String())
	}
}

func TestTaskSelectorAutoSelectsSingleMatch(t *testing.T) {
	var out bytes.Buffer
	selector := &TaskSelector{
		Tasks:  sampleTasks(),
		Reader: strings.NewReader("parser\n"),
		Writer: &out,
	}

	selected, err := selector.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.ID != "t2" {
		t.Errorf("expected t2, got %s", selected.ID)
	}
	if !strings.Contains(out.String(), "Auto-selected: Fix bug in parser") {
		t.Errorf("expected auto-select message, got:\n%s", out.String())
	}
}

func TestTaskSelectorErrors(t *testing.T) {
	tests := []struct {
		name  string
		tasks []store.Task
		input string
		noUI  bool
		want  error
		msg   string
	}{
		{name: "no-prompt mode", tasks: sampleTasks(), noUI: true, want: ErrNoPromptMode},
		{name: "no tasks", tasks: nil, want: ErrNoTasks},
		{name: "no matches", tasks: sampleTasks(), input: "zzz\n", want: ErrNoMatches},
		{name: "cancel", tasks: sampleTasks(), input: "\n0\n", want: ErrSelectionCancelled},
		{name: "end of input", tasks: sampleTasks(), input: "", want: ErrSelectionCancelled},
		{name: "out of range", tasks: sampleTasks(), input: "\n9\n", msg: "out of range"},
		{name: "not a number", tasks: sampleTasks(), input: "\nabc\n", msg: "invalid selection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selector := &TaskSelector{Tasks: tt.tasks, Reader: strings.NewReader(tt.input), NoPrompt: tt.noUI}
			_, err := selector.Run()
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected error containing %q, got %v", tt.msg, err)
			}
		})
	}
}

// =============================================================================
// InteractiveAdder
// =============================================================================

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestInteractiveAdderCollectsFields(t *testing.T) {
	input := strings.Join([]string{
		"Plan trip",
		"Flights and hotel",
		"HIGH",
		"tomorrow",
		"travel, family ,",
		"weekly",
	}, "\n") + "\n"

	adder := &InteractiveAdder{Reader: strings.NewReader(input), Now: now}
	fields, err := adder.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields.Title != "Plan trip" || fields.Description != "Flights and hotel" {
		t.Errorf("unexpected title/description: %+v", fields)
	}
	if fields.Priority != "high" {
		t.Errorf("expected priority high, got %q", fields.Priority)
	}
	if fields.Date != "2026-03-11" {
		t.Errorf("expected date 2026-03-11, got %q", fields.Date)
	}
	if strings.Join(fields.Tags, "|") != "travel|family" {
		t.Errorf("unexpected tags: %v", fields.Tags)
	}
	if fields.Recurrence != "weekly" {
		t.Errorf("expected weekly, got %q", fields.Recurrence)
	}
}

func TestInteractiveAdderRepromptsInvalidInput(t *testing.T) {
	input := strings.Join([]string{
		"   ",
		"Read",
		"",
		"urgent",
		"low",
		"someday",
		"",
		"",
		"hourly",
		"",
	}, "\n") + "\n"

	var out bytes.Buffer
	adder := &InteractiveAdder{Reader: strings.NewReader(input), Writer: &out, Now: now}
	fields, err := adder.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields.Title != "Read" || fields.Priority != "low" || fields.Date != "" || fields.Recurrence != "" {
		t.Errorf("unexpected fields: %+v", fields)
	}
	for _, msg := range []string{"Title cannot be empty.", "Invalid priority", "Invalid date: someday", "Invalid repeat"} {
		if !strings.Contains(out.String(), msg) {
			t.Errorf("expected %q in output:\n%s", msg, out.String())
		}
	}
}

func TestInteractiveAdderNoPrompt(t *testing.T) {
	adder := &InteractiveAdder{NoPrompt: true}
	if _, err := adder.Run(); !errors.Is(err, ErrNoPromptMode) {
		t.Errorf("expected ErrNoPromptMode, got %v", err)
	}
}

func TestInteractiveAdderRequiresTitle(t *testing.T) {
	adder := &InteractiveAdder{Reader: strings.NewReader("")}
	if _, err := adder.Run(); err == nil {
		t.Error("expected an error when input ends before a title")
	}
}

// =============================================================================
// Confirm
// =============================================================================

func TestConfirm(t *testing.T) {
	if !Confirm(nil, nil, true, "Delete?") {
		t.Error("no-prompt mode should confirm")
	}
	var out bytes.Buffer
	if Confirm(strings.NewReader("n\n"), &out, false, "Delete?") {
		t.Error("expected no")
	}
	if !strings.Contains(out.String(), "Delete? (y/n)") {
		t.Errorf("expected question, got %q", out.String())
	}
	if !Confirm(strings.NewReader("yes\n"), &out, false, "Delete?") {
		t.Error("expected yes")
	}
}
