package store

import "time"

// Clone returns a deep copy of the state.
func (st State) Clone() State {
	out := st
	out.Items = cloneTasks(st.Items)
	out.Templates = cloneTasks(st.Templates)
	if st.Categories != nil {
		out.Categories = append([]Category(nil), st.Categories...)
	}
	out.Analytics = st.Analytics.clone()
	return out
}

func cloneTasks(in []Task) []Task {
	if in == nil {
		return nil
	}
	out := make([]Task, len(in))
	for i := range in {
		out[i] = in[i].clone()
	}
	return out
}

func (t *Task) clone() Task {
	out := *t
	if t.Subtasks != nil {
		out.Subtasks = append([]Subtask(nil), t.Subtasks...)
		if len(out.Subtasks) == 0 {
			out.Subtasks = []Subtask{}
		}
	}
	if t.DependsOn != nil {
		d := *t.DependsOn
		out.DependsOn = &d
	}
	out.AvailableAt = cloneTime(t.AvailableAt)
	out.ReminderAt = cloneTime(t.ReminderAt)
	out.ExcludedDates = cloneStrings(t.ExcludedDates)
	out.Tags = cloneStrings(t.Tags)
	if t.Recurring != nil {
		r := *t.Recurring
		if t.Recurring.DaysOfWeek != nil {
			r.DaysOfWeek = append([]int{}, t.Recurring.DaysOfWeek...)
		}
		out.Recurring = &r
	}
	if t.Estimated != nil {
		e := *t.Estimated
		out.Estimated = &e
	}
	if t.Attachments != nil {
		out.Attachments = append([]Attachment{}, t.Attachments...)
	}
	return out
}

func (a Analytics) clone() Analytics {
	out := a
	if a.CompletionHistory != nil {
		out.CompletionHistory = make([]CompletionRecord, len(a.CompletionHistory))
		for i, r := range a.CompletionHistory {
			r.Categories = cloneCounts(r.Categories)
			out.CompletionHistory[i] = r
		}
	}
	out.TimeTracking.ByCategory = cloneCounts(a.TimeTracking.ByCategory)
	out.TimeTracking.ByDate = cloneCounts(a.TimeTracking.ByDate)
	return out
}

func cloneCounts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// normalize fills the collections every canonical state carries.
func (st *State) normalize() {
	if st.Items == nil {
		st.Items = []Task{}
	}
	if st.Templates == nil {
		st.Templates = []Task{}
	}
	if st.Categories == nil {
		st.Categories = []Category{}
	}
	for i := range st.Items {
		st.Items[i].normalize()
	}
	for i := range st.Templates {
		st.Templates[i].normalize()
	}
	a := &st.Analytics
	if a.CompletionHistory == nil {
		a.CompletionHistory = []CompletionRecord{}
	}
	for i := range a.CompletionHistory {
		if a.CompletionHistory[i].Categories == nil {
			a.CompletionHistory[i].Categories = map[string]int{}
		}
	}
	if a.TimeTracking.ByCategory == nil {
		a.TimeTracking.ByCategory = map[string]int{}
	}
	if a.TimeTracking.ByDate == nil {
		a.TimeTracking.ByDate = map[string]int{}
	}
}

func (t *Task) normalize() {
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []Attachment{}
	}
}

// find returns a pointer to the live task with id, or nil.
func (st *State) find(id string) *Task {
	for i := range st.Items {
		if st.Items[i].ID == id {
			return &st.Items[i]
		}
	}
	return nil
}

// cloneSubtasksReset duplicates subtasks with fresh ids and completion cleared.
func cloneSubtasksReset(in []Subtask, newID func() string) []Subtask {
	out := make([]Subtask, 0, len(in))
	for _, s := range in {
		s.ID = newID()
		s.Completed = false
		out = append(out, s)
	}
	return out
}
