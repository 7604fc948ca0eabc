package store

import "sort"

// TasksForDate returns the tasks dated date, in display order.
func (st *State) TasksForDate(date string) []Task {
	return st.filter(func(t *Task) bool { return t.Date == date && !t.IsTemplate })
}

// BucketTasks returns the undated, non-backlog tasks that roll over daily.
func (st *State) BucketTasks() []Task {
	return st.filter(func(t *Task) bool { return t.InBucket() })
}

// BacklogTasks returns the tasks parked in the backlog.
func (st *State) BacklogTasks() []Task {
	return st.filter(func(t *Task) bool { return t.Backlog && t.Date == "" && !t.IsTemplate })
}

// Task returns a copy of the task with id.
func (st *State) Task(id string) (Task, bool) {
	t := st.find(id)
	if t == nil {
		return Task{}, false
	}
	return t.clone(), true
}

func (st *State) filter(keep func(*Task) bool) []Task {
	out := []Task{}
	for i := range st.Items {
		if keep(&st.Items[i]) {
			out = append(out, st.Items[i].clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
