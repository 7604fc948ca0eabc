// Package prompt handles interactive prompts with no-prompt mode support.
// It provides filtered task selection for ambiguous references, an
// interactive add mode with field validation, and yes/no confirmation.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"daybucket/internal/store"
	"daybucket/internal/utils"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt / -y)")
	ErrNoTasks            = errors.New("no tasks available")
	ErrNoMatches          = errors.New("no tasks match the filter")
)

// TaskSelector picks one task from a list by filter text and number.
type TaskSelector struct {
	Tasks    []store.Task
	Prompt   string
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the task selection prompt.
// If NoPrompt is true, returns ErrNoPromptMode.
// If there is exactly one task, auto-selects it.
// Otherwise, prompts the user to filter and select a task.
func (s *TaskSelector) Run() (*store.Task, error) {
	if s.NoPrompt {
		return nil, ErrNoPromptMode
	}
	if len(s.Tasks) == 0 {
		return nil, ErrNoTasks
	}
	if len(s.Tasks) == 1 {
		return &s.Tasks[0], nil
	}

	writer := s.Writer
	if writer == nil {
		writer = io.Discard
	}
	scanner := bufio.NewScanner(s.Reader)

	_, _ = fmt.Fprintf(writer, "%s\nFilter (or press Enter to show all): ", s.Prompt)
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}
	filter := strings.ToLower(strings.TrimSpace(scanner.Text()))

	var filtered []store.Task
	for _, t := range s.Tasks {
		if filter == "" || strings.Contains(strings.ToLower(t.Title), filter) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoMatches
	}
	if len(filtered) == 1 {
		_, _ = fmt.Fprintf(writer, "Auto-selected: %s\n", filtered[0].Title)
		return &filtered[0], nil
	}

	for i, t := range filtered {
		_, _ = fmt.Fprintf(writer, "  %d) %s\n", i+1, formatTaskLine(t))
	}
	_, _ = fmt.Fprintf(writer, "Select (0 to cancel): ")
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}

	input := strings.TrimSpace(scanner.Text())
	num, err := strconv.Atoi(input)
	if err != nil {
		return nil, fmt.Errorf("invalid selection: %s", input)
	}
	if num == 0 {
		return nil, ErrSelectionCancelled
	}
	if num < 1 || num > len(filtered) {
		return nil, fmt.Errorf("selection out of range: %d", num)
	}
	return &filtered[num-1], nil
}

// formatTaskLine shows the title with where the task lives and its state.
func formatTaskLine(t store.Task) string {
	var meta []string
	switch {
	case t.Completed:
		meta = append(meta, "done")
	default:
		meta = append(meta, "open")
	}
	switch {
	case t.IsTemplate:
		meta = append(meta, "template")
	case t.Backlog:
		meta = append(meta, "backlog")
	case t.Date != "":
		meta = append(meta, t.Date)
	default:
		meta = append(meta, "bucket")
	}
	if t.Priority != "" && t.Priority != store.PriorityMedium {
		meta = append(meta, string(t.Priority))
	}
	if len(t.Tags) > 0 {
		meta = append(meta, "tags: "+strings.Join(t.Tags, ","))
	}
	return fmt.Sprintf("%s [%s]", t.Title, strings.Join(meta, ", "))
}

// AddFields holds the field values collected during interactive add mode.
type AddFields struct {
	Title       string
	Description string
	Priority    string
	Date        string // resolved YYYY-MM-DD, empty for the bucket
	Tags        []string
	Recurrence  string
}

// InteractiveAdder asks for each task field in turn when add is run
// without a title.
type InteractiveAdder struct {
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
	Now      time.Time
}

var recurrenceChoices = []string{"daily", "weekly", "monthly", "custom"}

// Run prompts for title (required), description, priority, date, tags and
// recurrence. Invalid priority, date or recurrence input is asked again.
func (a *InteractiveAdder) Run() (*AddFields, error) {
	if a.NoPrompt {
		return nil, ErrNoPromptMode
	}
	writer := a.Writer
	if writer == nil {
		writer = io.Discard
	}
	scanner := bufio.NewScanner(a.Reader)
	fields := &AddFields{}

	for {
		_, _ = fmt.Fprint(writer, "Title (required): ")
		if !scanner.Scan() {
			return nil, errors.New("no input for title")
		}
		title, err := utils.ValidateTitle(scanner.Text())
		if err == nil {
			fields.Title = title
			break
		}
		_, _ = fmt.Fprintln(writer, "Title cannot be empty.")
	}

	_, _ = fmt.Fprint(writer, "Description (optional): ")
	if scanner.Scan() {
		fields.Description = strings.TrimSpace(scanner.Text())
	}

	for {
		_, _ = fmt.Fprint(writer, "Priority (high, medium, low, optional): ")
		if !scanner.Scan() {
			break
		}
		input := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if err := utils.ValidatePriority(input); err != nil {
			_, _ = fmt.Fprintln(writer, "Invalid priority: must be high, medium or low")
			continue
		}
		fields.Priority = input
		break
	}

	for {
		_, _ = fmt.Fprint(writer, "Date (YYYY-MM-DD, today, tomorrow, +Nd, empty for the bucket): ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		date, err := utils.ParseDateFlag(input, a.Now)
		if err != nil {
			_, _ = fmt.Fprintf(writer, "Invalid date: %s. Use YYYY-MM-DD, today, tomorrow, +Nd, +Nw, +Nm\n", input)
			continue
		}
		fields.Date = date
		break
	}

	_, _ = fmt.Fprint(writer, "Tags (comma-separated, optional): ")
	if scanner.Scan() {
		for _, tag := range strings.Split(scanner.Text(), ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				fields.Tags = append(fields.Tags, tag)
			}
		}
	}

	for {
		_, _ = fmt.Fprint(writer, "Repeat (daily, weekly, monthly, optional): ")
		if !scanner.Scan() {
			break
		}
		input := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if input == "" || contains(recurrenceChoices, input) {
			fields.Recurrence = input
			break
		}
		_, _ = fmt.Fprintf(writer, "Invalid repeat: choose one of %s\n", strings.Join(recurrenceChoices, ", "))
	}

	return fields, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Confirm asks a yes/no question. In no-prompt mode the answer is yes.
func Confirm(reader io.Reader, writer io.Writer, noPrompt bool, question string) bool {
	if noPrompt {
		return true
	}
	return utils.PromptYesNoWithReader(question, reader, writer)
}
