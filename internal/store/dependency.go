package store

import "time"

// SetDependency links a task to a prerequisite. The gate is re-armed: the
// availability timestamp is cleared and the task becomes incomplete until the
// prerequisite completes.
type SetDependency struct {
	ID        string     `json:"id"`
	DependsOn Dependency `json:"dependsOn"`
}

func (r SetDependency) apply(st *State, _ *env) error {
	t := st.find(r.ID)
	if t == nil {
		return nil
	}
	d := r.DependsOn
	t.DependsOn = &d
	t.AvailableAt = nil
	t.Completed = false
	return nil
}

// ClearDependency removes the dependency link and its gate.
type ClearDependency struct {
	ID string `json:"id"`
}

func (r ClearDependency) apply(st *State, _ *env) error {
	t := st.find(r.ID)
	if t == nil {
		return nil
	}
	t.DependsOn = nil
	t.AvailableAt = nil
	return nil
}

// UnlockTask clears the availability timestamp and keeps the link. Timers
// issue it once the gate has expired.
type UnlockTask struct {
	ID string `json:"id"`
}

func (r UnlockTask) apply(st *State, _ *env) error {
	if t := st.find(r.ID); t != nil {
		t.AvailableAt = nil
	}
	return nil
}

// propagateDependents re-derives the gate of every task that depends on id.
func propagateDependents(st *State, id string, completed bool, now time.Time) {
	for i := range st.Items {
		dep := &st.Items[i]
		if dep.DependsOn == nil || dep.DependsOn.TaskID != id {
			continue
		}
		if completed {
			at := now.Add(dep.DependsOn.Delay())
			dep.AvailableAt = &at
		} else {
			dep.AvailableAt = nil
			dep.Completed = false
		}
	}
}

// Dependents returns the tasks whose dependency references id.
func (st *State) Dependents(id string) []Task {
	var out []Task
	for i := range st.Items {
		if d := st.Items[i].DependsOn; d != nil && d.TaskID == id {
			out = append(out, st.Items[i].clone())
		}
	}
	return out
}

// SetReminder sets or clears (nil At) a task reminder.
type SetReminder struct {
	ID string     `json:"id"`
	At *time.Time `json:"reminderAt,omitempty"`
}

func (r SetReminder) apply(st *State, _ *env) error {
	if t := st.find(r.ID); t != nil {
		t.ReminderAt = cloneTime(r.At)
	}
	return nil
}

// ClearReminder removes a task reminder. Fired reminders are cleared with it.
type ClearReminder struct {
	ID string `json:"id"`
}

func (r ClearReminder) apply(st *State, _ *env) error {
	if t := st.find(r.ID); t != nil {
		t.ReminderAt = nil
	}
	return nil
}
