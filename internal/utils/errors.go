package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrTaskNotFound returns an error for when a task is not found.
func ErrTaskNotFound(searchTerm string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task not found: %s", searchTerm),
		Suggestion: "Check the id or title, or use 'daybucket list' to see all tasks",
	}
}

// ErrSubtaskNotFound returns an error for an unknown subtask.
func ErrSubtaskNotFound(searchTerm string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("subtask not found: %s", searchTerm),
		Suggestion: "Use 'daybucket show <task>' to list its subtasks",
	}
}

// ErrCategoryNotFound returns an error for an unknown category.
func ErrCategoryNotFound(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("category not found: %s", name),
		Suggestion: "Use 'daybucket category list' to see categories",
	}
}

// ErrTemplateNotFound returns an error for an unknown template.
func ErrTemplateNotFound(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("template not found: %s", name),
		Suggestion: "Use 'daybucket template list' to see templates",
	}
}

// ErrEmptyTitle returns an error for a blank task title.
func ErrEmptyTitle() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("title cannot be empty"),
		Suggestion: "Provide a non-blank title",
	}
}

// ErrTaskLocked returns an error when a task waits on its dependency.
func ErrTaskLocked(title, availableAt string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task %q is locked until %s", title, availableAt),
		Suggestion: "Wait for the dependency delay to pass or run 'daybucket dep unlock'",
	}
}

// ErrConcurrentChange returns an error when the daemon changed the tasks
// while a command was working on its own copy.
func ErrConcurrentChange() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("tasks were changed by the daemon while this command ran; nothing was saved"),
		Suggestion: "Run the command again",
	}
}

// ErrDateWithBacklog returns an error when a task is given a date and put
// in the backlog at once.
func ErrDateWithBacklog() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("a task cannot have a date and be in the backlog"),
		Suggestion: "Use either --date or --backlog",
	}
}

// ErrSyncNotConfigured returns an error when remote sync is not configured.
func ErrSyncNotConfigured() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("remote sync is not configured"),
		Suggestion: "Set sync.enabled and sync.supabase_url in your config and run 'daybucket credentials set'",
	}
}

// ErrRemoteUnavailable returns an error when the remote store is unreachable.
func ErrRemoteUnavailable(reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("remote store is unavailable: %s", reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	if strings.Contains(lowerReason, "circuit breaker") {
		return "Too many recent failures. Sync resumes automatically after a cooldown"
	}

	return "Check your internet connection and try again"
}

// ErrInvalidPriority returns an error for an invalid priority value.
func ErrInvalidPriority(priority string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid priority: %s", priority),
		Suggestion: "Priority must be one of: high, medium, low",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use date format YYYY-MM-DD (e.g., 2026-01-15) or today, tomorrow, +3d",
	}
}

// ErrInvalidFrequency returns an error for an unknown recurrence frequency.
func ErrInvalidFrequency(freq string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid frequency: %s", freq),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// ErrCredentialsNotFound returns an error when the remote key is missing.
func ErrCredentialsNotFound(user string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("credentials not found for user %s", user),
		Suggestion: "Run 'daybucket credentials set' or set DAYBUCKET_SUPABASE_KEY",
	}
}
