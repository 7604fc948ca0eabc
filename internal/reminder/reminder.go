// Package reminder acts on fired task timers: due reminders are announced
// and cleared, expired dependency gates are unlocked and announced.
package reminder

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"daybucket/internal/notification"
	"daybucket/internal/scheduler"
	"daybucket/internal/store"
	"daybucket/internal/utils"
)

// TaskStore is the part of *store.Store the service needs.
type TaskStore interface {
	Dispatch(req store.Request) error
	Task(id string) (store.Task, bool)
}

// Service handles scheduler timers.
type Service struct {
	store     TaskStore
	notifier  notification.Notifier
	reminders bool
}

// NewService returns a service. With remindersEnabled false, reminder timers
// are ignored and the timestamps stay in place; unlocks still happen.
func NewService(st TaskStore, notifier notification.Notifier, remindersEnabled bool) *Service {
	return &Service{store: st, notifier: notifier, reminders: remindersEnabled}
}

// Handle is a scheduler.Handler.
func (s *Service) Handle(key scheduler.Key, at time.Time) {
	ctx := context.Background()
	var err error
	switch key.Kind {
	case scheduler.KindReminder:
		err = s.FireReminder(ctx, key.TaskID, at)
	case scheduler.KindUnlock:
		err = s.FireUnlock(ctx, key.TaskID, at)
	}
	if err != nil {
		utils.Warnf("Handling %s timer for task %s: %v", key.Kind, key.TaskID, err)
	}
}

// FireReminder notifies about the task's reminder and clears it. Nothing
// happens when the reminder has since moved away from at.
func (s *Service) FireReminder(ctx context.Context, taskID string, at time.Time) error {
	if !s.reminders {
		return nil
	}
	task, ok := s.store.Task(taskID)
	if !ok || task.ReminderAt == nil || !task.ReminderAt.Equal(at) {
		return nil
	}

	var notifyErr error
	if s.notifier != nil {
		notifyErr = s.notifier.Notify(ctx, notification.Notification{
			Type:    notification.TypeReminder,
			Title:   "Reminder",
			Message: task.Title,
			TaskID:  task.ID,
		})
	}
	if err := s.store.Dispatch(store.ClearReminder{ID: task.ID}); err != nil {
		return fmt.Errorf("failed to clear reminder: %w", err)
	}
	return notifyErr
}

// FireUnlock opens the dependency gate of the task and announces it.
func (s *Service) FireUnlock(ctx context.Context, taskID string, at time.Time) error {
	task, ok := s.store.Task(taskID)
	if !ok || task.AvailableAt == nil || !task.AvailableAt.Equal(at) {
		return nil
	}
	if err := s.store.Dispatch(store.UnlockTask{ID: task.ID}); err != nil {
		return fmt.Errorf("failed to unlock task: %w", err)
	}
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Notify(ctx, notification.Notification{
		Type:    notification.TypeUnlocked,
		Title:   "Task available",
		Message: fmt.Sprintf("Task %s is now available", task.Title),
		TaskID:  task.ID,
	})
}

// Upcoming is a task with a pending reminder.
type Upcoming struct {
	Task store.Task
	At   time.Time
}

// UpcomingReminders returns the tasks whose reminder falls before
// now+window, earliest first. Overdue reminders are included. A zero window
// returns every pending reminder.
func UpcomingReminders(st store.State, now time.Time, window time.Duration) []Upcoming {
	var out []Upcoming
	for _, t := range st.Items {
		if t.ReminderAt == nil {
			continue
		}
		if window > 0 && t.ReminderAt.Sub(now) > window {
			continue
		}
		out = append(out, Upcoming{Task: t, At: *t.ReminderAt})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

var intervalPattern = regexp.MustCompile(`^(\d+)\s*(m|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days|w|week|weeks)$`)

// ParseInterval parses offsets such as "15m", "2 hours", "1d" or "1w".
func ParseInterval(interval string) (time.Duration, error) {
	s := strings.TrimSpace(strings.ToLower(interval))
	matches := intervalPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid interval %q (examples: 15m, 2 hours, 1d, 1w)", interval)
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", interval, err)
	}

	var unit time.Duration
	switch matches[2] {
	case "m", "min", "mins", "minute", "minutes":
		unit = time.Minute
	case "h", "hr", "hrs", "hour", "hours":
		unit = time.Hour
	case "d", "day", "days":
		unit = 24 * time.Hour
	case "w", "week", "weeks":
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

// ParseTime resolves a reminder time given either as an interval from now
// ("in 15m" or "15m"), an RFC 3339 timestamp, or "YYYY-MM-DD HH:MM" in loc.
func ParseTime(value string, now time.Time, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(value)
	if loc == nil {
		loc = time.Local
	}
	if d, err := ParseInterval(strings.TrimPrefix(strings.ToLower(v), "in ")); err == nil {
		return now.Add(d).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", v, loc); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid reminder time %q (use 15m, 2 hours, 2026-10-17 09:00 or RFC 3339)", value)
}
