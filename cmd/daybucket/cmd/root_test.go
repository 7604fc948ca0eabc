package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybucket/internal/store"
)

func TestHelpFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"--help"}, &stdout, &stderr, nil)
	require.Equal(t, 0, exitCode, stderr.String())

	output := stdout.String()
	assert.Contains(t, output, "daybucket")
	assert.Contains(t, output, "Usage:")
}

func TestVersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"--version"}, &stdout, &stderr, nil)
	require.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), Version)
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"frobnicate", "-y"}, &stdout, &stderr, &Config{NoPrompt: true})
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "unknown command")
	assert.Equal(t, ResultError, strings.TrimSpace(stdout.String()))
}

func TestContainsJSONFlag(t *testing.T) {
	assert.True(t, containsJSONFlag([]string{"list", "--json"}))
	assert.False(t, containsJSONFlag([]string{"list", "--jsonx"}))
}

func sampleState() store.State {
	return store.State{Items: []store.Task{
		{ID: "a1b2c3d4-0000", Title: "Buy milk"},
		{ID: "a1b2ffff-0000", Title: "Buy bread"},
		{ID: "99990000-0000", Title: "Call Sam"},
	}}
}

func TestFindTask(t *testing.T) {
	st := sampleState()

	tests := []struct {
		ref    string
		wantID string
		errSub string
	}{
		{ref: "99990000-0000", wantID: "99990000-0000"},
		{ref: "a1b2c3", wantID: "a1b2c3d4-0000"},
		{ref: "buy MILK", wantID: "a1b2c3d4-0000"},
		{ref: "sam", wantID: "99990000-0000"},
		{ref: "a1b2", errSub: "multiple tasks match"},
		{ref: "buy", errSub: "multiple tasks match"},
		{ref: "eggs", errSub: "task not found"},
		{ref: " ", errSub: "task not found"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := findTask(st, tt.ref)
			if tt.errSub != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSub)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestFindSubtask(t *testing.T) {
	task := store.Task{Subtasks: []store.Subtask{
		{ID: "s1", Title: "First"},
		{ID: "s2", Title: "Second"},
	}}

	s, err := findSubtask(task, "2")
	require.NoError(t, err)
	assert.Equal(t, "s2", s.ID)

	s, err = findSubtask(task, "first")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)

	_, err = findSubtask(task, "3")
	assert.Error(t, err)
}

func TestFormatTask(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	task := store.Task{
		ID:          "abcdef1234567890",
		Title:       "Deploy",
		Priority:    store.PriorityHigh,
		Tags:        []string{"ops"},
		Subtasks:    []store.Subtask{{Completed: true}, {}},
		DependsOn:   &store.Dependency{TaskID: "x"},
		AvailableAt: &until,
	}

	line := formatTask(task, now, time.UTC)
	assert.True(t, strings.HasPrefix(line, "[ ] Deploy  (abcdef12)"), line)
	assert.Contains(t, line, "!high")
	assert.Contains(t, line, "#ops")
	assert.Contains(t, line, "1/2")
	assert.Contains(t, line, "locked until 10:00")

	task.Completed = true
	task.AvailableAt = nil
	line = formatTask(task, now, time.UTC)
	assert.True(t, strings.HasPrefix(line, "[x]"))
	assert.NotContains(t, line, "locked")
}

func TestNewTasks(t *testing.T) {
	before := store.State{Items: []store.Task{{ID: "a"}}}
	after := store.State{Items: []store.Task{{ID: "a"}, {ID: "b"}}}

	added := newTasks(before, after)
	require.Len(t, added, 1)
	assert.Equal(t, "b", added[0].ID)
}

func TestValidThresholds(t *testing.T) {
	assert.NoError(t, validThresholds(store.DefaultProductivity().Thresholds))
	assert.Error(t, validThresholds(store.Thresholds{Red: 0.5, Orange: 0.4, Yellow: 0.6, Green: 1}))
	assert.Error(t, validThresholds(store.Thresholds{Red: 0, Orange: 0.4, Yellow: 0.6, Green: 1.5}))
}

func TestDependsOnChain(t *testing.T) {
	st := store.State{Items: []store.Task{
		{ID: "a", DependsOn: &store.Dependency{TaskID: "b"}},
		{ID: "b", DependsOn: &store.Dependency{TaskID: "c"}},
		{ID: "c"},
	}}
	assert.True(t, dependsOnChain(st, "a", "c"))
	assert.False(t, dependsOnChain(st, "c", "a"))
}
