package store

// AddSubtask appends a checklist item and marks the parent incomplete.
type AddSubtask struct {
	TaskID string `json:"taskId"`
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
}

func (r AddSubtask) apply(st *State, e *env) error {
	t := st.find(r.TaskID)
	if t == nil {
		return nil
	}
	id := r.ID
	if id == "" {
		id = e.newID()
	}
	t.Subtasks = append(t.Subtasks, Subtask{
		ID:        id,
		Title:     r.Title,
		CreatedAt: e.now,
	})
	t.Completed = false
	return nil
}

// ToggleSubtask flips a subtask. The parent is complete exactly when every
// subtask is. Checking off the last open subtask of a locked parent fails
// with ErrTaskLocked.
type ToggleSubtask struct {
	TaskID    string `json:"taskId"`
	SubtaskID string `json:"subtaskId"`
}

func (r ToggleSubtask) apply(st *State, e *env) error {
	t := st.find(r.TaskID)
	if t == nil {
		return nil
	}
	s := findSubtask(t, r.SubtaskID)
	if s == nil {
		return nil
	}
	all := true
	for _, x := range t.Subtasks {
		done := x.Completed
		if x.ID == s.ID {
			done = !done
		}
		if !done {
			all = false
			break
		}
	}
	if all && !t.Completed && t.IsLocked(e.now) {
		return ErrTaskLocked
	}
	s.Completed = !s.Completed
	t.Completed = all
	return nil
}

// DeleteSubtask removes a subtask. The parent's completion is left as is.
type DeleteSubtask struct {
	TaskID    string `json:"taskId"`
	SubtaskID string `json:"subtaskId"`
}

func (r DeleteSubtask) apply(st *State, _ *env) error {
	t := st.find(r.TaskID)
	if t == nil {
		return nil
	}
	kept := make([]Subtask, 0, len(t.Subtasks))
	for _, s := range t.Subtasks {
		if s.ID != r.SubtaskID {
			kept = append(kept, s)
		}
	}
	t.Subtasks = kept
	return nil
}

// EditSubtask renames a subtask.
type EditSubtask struct {
	TaskID    string `json:"taskId"`
	SubtaskID string `json:"subtaskId"`
	Title     string `json:"title"`
}

func (r EditSubtask) apply(st *State, _ *env) error {
	t := st.find(r.TaskID)
	if t == nil {
		return nil
	}
	if s := findSubtask(t, r.SubtaskID); s != nil {
		s.Title = r.Title
	}
	return nil
}

func findSubtask(t *Task, id string) *Subtask {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return &t.Subtasks[i]
		}
	}
	return nil
}
