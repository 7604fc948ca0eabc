// Package store holds the authoritative in-memory task state and the typed
// requests that transition it.
package store

import (
	"time"
)

// DateLayout is the calendar date format used for task dates and analytics keys.
const DateLayout = "2006-01-02"

// Priority ranks a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Frequency is the recurrence cadence of a RecurringPattern.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Task is a single task record.
type Task struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Completed     bool              `json:"completed"`
	Subtasks      []Subtask         `json:"subtasks"`
	DependsOn     *Dependency       `json:"dependsOn,omitempty"`
	AvailableAt   *time.Time        `json:"availableAt,omitempty"`
	ReminderAt    *time.Time        `json:"reminderAt,omitempty"`
	Backlog       bool              `json:"backlog,omitempty"`
	Date          string            `json:"date,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	OriginID      string            `json:"originId,omitempty"`
	ExcludedDates []string          `json:"excludedDates,omitempty"`
	Category      string            `json:"category,omitempty"`
	Priority      Priority          `json:"priority,omitempty"`
	Tags          []string          `json:"tags"`
	Urgent        bool              `json:"urgent,omitempty"`
	Important     bool              `json:"important,omitempty"`
	Order         int64             `json:"order,omitempty"`
	Recurring     *RecurringPattern `json:"recurring,omitempty"`
	Estimated     *int              `json:"estimatedDuration,omitempty"`
	Actual        int               `json:"actualDuration,omitempty"`
	PomodoroCount int               `json:"pomodoroCount,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Attachments   []Attachment      `json:"attachments"`
	IsTemplate    bool              `json:"isTemplate,omitempty"`
	TemplateName  string            `json:"templateName,omitempty"`
}

// InBucket reports whether t is a bucket task: no date, not in the backlog
// and not a template.
func (t *Task) InBucket() bool {
	return t.Date == "" && !t.Backlog && !t.IsTemplate
}

// IsExcluded reports whether date is in the task's rollover exclusion set.
func (t *Task) IsExcluded(date string) bool {
	for _, d := range t.ExcludedDates {
		if d == date {
			return true
		}
	}
	return false
}

// IsLocked reports whether the dependency gate of t is closed at now.
func (t *Task) IsLocked(now time.Time) bool {
	return t.DependsOn != nil && t.AvailableAt != nil && t.AvailableAt.After(now)
}

// Subtask is a checklist item owned by a Task.
type Subtask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dependency links a task to the task that must complete first.
type Dependency struct {
	TaskID       string `json:"taskId"`
	DelaySeconds int    `json:"delaySeconds,omitempty"`
}

// Delay returns the dependency delay as a duration.
func (d Dependency) Delay() time.Duration {
	if d.DelaySeconds <= 0 {
		return 0
	}
	return time.Duration(d.DelaySeconds) * time.Second
}

// RecurringPattern describes how a dated task repeats.
type RecurringPattern struct {
	Frequency   Frequency `json:"frequency"`
	Interval    int       `json:"interval,omitempty"`
	DaysOfWeek  []int     `json:"daysOfWeek,omitempty"`
	DayOfMonth  int       `json:"dayOfMonth,omitempty"`
	EndDate     string    `json:"endDate,omitempty"`
	LastCreated string    `json:"lastCreated,omitempty"`
}

// Attachment is a reference to an external file attached to a task.
type Attachment struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	Type    string    `json:"type,omitempty"`
	Size    int64     `json:"size,omitempty"`
	AddedAt time.Time `json:"uploadedAt"`
}

// Category groups tasks by a user-defined label.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon,omitempty"`
}

// CompletionRecord counts completions for one calendar date.
type CompletionRecord struct {
	Date       string         `json:"date"`
	Completed  int            `json:"completed"`
	Total      int            `json:"total"`
	Categories map[string]int `json:"categories"`
}

// Streaks tracks consecutive days with at least one completion.
type Streaks struct {
	Current            int    `json:"current"`
	Longest            int    `json:"longest"`
	LastCompletionDate string `json:"lastCompletionDate,omitempty"`
}

// TimeTracking accumulates tracked minutes.
type TimeTracking struct {
	TotalMinutes int            `json:"totalMinutes"`
	ByCategory   map[string]int `json:"byCategory"`
	ByDate       map[string]int `json:"byDate"`
}

// Analytics is the process-wide analytics aggregate.
type Analytics struct {
	CompletionHistory []CompletionRecord `json:"completionHistory"`
	Streaks           Streaks            `json:"streaks"`
	TimeTracking      TimeTracking       `json:"timeTracking"`
}

// Settings are application preferences carried with the state but never
// interpreted by the store.
type Settings struct {
	Theme              string `json:"theme"`
	SoundEnabled       bool   `json:"soundEnabled"`
	ConfettiEnabled    bool   `json:"confettiEnabled"`
	EmailNotifications bool   `json:"emailNotifications"`
	WeeklyDigest       bool   `json:"weeklyDigest"`
}

// Thresholds are completion-ratio cut-offs used for display banding.
type Thresholds struct {
	Red    float64 `json:"red"`
	Orange float64 `json:"orange"`
	Yellow float64 `json:"yellow"`
	Green  float64 `json:"green"`
}

// ProductivitySettings hold the daily goal and banding thresholds.
type ProductivitySettings struct {
	DailyGoal  int        `json:"dailyGoal,omitempty"`
	Thresholds Thresholds `json:"thresholds"`
}

// State is the full store state.
type State struct {
	Items        []Task               `json:"items"`
	Categories   []Category           `json:"categories"`
	Templates    []Task               `json:"templates"`
	Analytics    Analytics            `json:"analytics"`
	Settings     Settings             `json:"settings"`
	Productivity ProductivitySettings `json:"productivity"`
}

// DefaultCategories returns the categories seeded into a fresh state.
func DefaultCategories() []Category {
	return []Category{
		{ID: "1", Name: "Work", Color: "#3b82f6"},
		{ID: "2", Name: "Personal", Color: "#10b981"},
		{ID: "3", Name: "Health", Color: "#ef4444"},
		{ID: "4", Name: "Learning", Color: "#8b5cf6"},
	}
}

// DefaultSettings returns the preferences of a fresh state.
func DefaultSettings() Settings {
	return Settings{
		Theme:           "dark",
		SoundEnabled:    true,
		ConfettiEnabled: true,
	}
}

// DefaultProductivity returns the productivity settings of a fresh state.
func DefaultProductivity() ProductivitySettings {
	return ProductivitySettings{
		DailyGoal: 5,
		Thresholds: Thresholds{
			Red:    0.25,
			Orange: 0.5,
			Yellow: 0.75,
			Green:  1,
		},
	}
}

// NewState returns an empty state with default categories and settings.
func NewState() State {
	return State{
		Items:      []Task{},
		Categories: DefaultCategories(),
		Templates:  []Task{},
		Analytics: Analytics{
			CompletionHistory: []CompletionRecord{},
			TimeTracking: TimeTracking{
				ByCategory: map[string]int{},
				ByDate:     map[string]int{},
			},
		},
		Settings:     DefaultSettings(),
		Productivity: DefaultProductivity(),
	}
}
