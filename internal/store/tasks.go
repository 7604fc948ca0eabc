package store

import (
	"time"
)

// AddTask creates a task. Callers validate the title before dispatching.
type AddTask struct {
	ID           string            `json:"id,omitempty"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Date         string            `json:"date,omitempty"`
	Backlog      bool              `json:"backlog,omitempty"`
	Category     string            `json:"category,omitempty"`
	Priority     Priority          `json:"priority,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Recurring    *RecurringPattern `json:"recurring,omitempty"`
	Estimated    *int              `json:"estimatedDuration,omitempty"`
	Urgent       bool              `json:"urgent,omitempty"`
	Important    bool              `json:"important,omitempty"`
	IsTemplate   bool              `json:"isTemplate,omitempty"`
	TemplateName string            `json:"templateName,omitempty"`
}

func (r AddTask) apply(st *State, e *env) error {
	id := r.ID
	if id == "" {
		id = e.newID()
	}
	priority := r.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	t := Task{
		ID:           id,
		Title:        r.Title,
		Description:  r.Description,
		Backlog:      r.Backlog && r.Date == "",
		Date:         r.Date,
		CreatedAt:    e.now,
		Category:     r.Category,
		Priority:     priority,
		Tags:         cloneStrings(r.Tags),
		Urgent:       r.Urgent,
		Important:    r.Important,
		Order:        nextOrder(st, e.now),
		Estimated:    r.Estimated,
		IsTemplate:   r.IsTemplate,
		TemplateName: r.TemplateName,
	}
	if r.Recurring != nil {
		p := *r.Recurring
		t.Recurring = &p
	}
	t.normalize()
	st.Items = append(st.Items, t)
	return nil
}

// nextOrder returns a sort key later than now and every existing task.
func nextOrder(st *State, now time.Time) int64 {
	order := now.UnixMilli()
	for i := range st.Items {
		if st.Items[i].Order >= order {
			order = st.Items[i].Order + 1
		}
	}
	return order
}

// TaskPatch lists the fields EditTask may change. Nil fields are left alone.
type TaskPatch struct {
	Title          *string           `json:"title,omitempty"`
	Description    *string           `json:"description,omitempty"`
	Completed      *bool             `json:"completed,omitempty"`
	Date           *string           `json:"date,omitempty"`
	Backlog        *bool             `json:"backlog,omitempty"`
	Category       *string           `json:"category,omitempty"`
	Priority       *Priority         `json:"priority,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Urgent         *bool             `json:"urgent,omitempty"`
	Important      *bool             `json:"important,omitempty"`
	Order          *int64            `json:"order,omitempty"`
	Recurring      *RecurringPattern `json:"recurring,omitempty"`
	ClearRecurring bool              `json:"clearRecurring,omitempty"`
	Estimated      *int              `json:"estimatedDuration,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
}

// EditTask merges a patch into a task. A dated task is never in the
// backlog: setting a date leaves the backlog and joining the backlog drops
// the date.
type EditTask struct {
	ID      string    `json:"id"`
	Changes TaskPatch `json:"changes"`
}

func (r EditTask) apply(st *State, _ *env) error {
	t := st.find(r.ID)
	if t == nil {
		return nil
	}
	c := r.Changes
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Description != nil {
		t.Description = *c.Description
	}
	if c.Completed != nil {
		t.Completed = *c.Completed
	}
	if c.Date != nil {
		assignDate(t, *c.Date)
	}
	if c.Backlog != nil {
		t.Backlog = *c.Backlog
		if t.Backlog {
			t.Date = ""
		}
	}
	if c.Category != nil {
		t.Category = *c.Category
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.Tags != nil {
		t.Tags = cloneStrings(c.Tags)
	}
	if c.Urgent != nil {
		t.Urgent = *c.Urgent
	}
	if c.Important != nil {
		t.Important = *c.Important
	}
	if c.Order != nil {
		t.Order = *c.Order
	}
	if c.ClearRecurring {
		t.Recurring = nil
	} else if c.Recurring != nil {
		p := *c.Recurring
		t.Recurring = &p
	}
	if c.Estimated != nil {
		v := *c.Estimated
		t.Estimated = &v
	}
	if c.Notes != nil {
		t.Notes = *c.Notes
	}
	return nil
}

// DeleteTask removes a task. Deleting a dated rollover copy excludes that
// date from future rollovers of its origin.
type DeleteTask struct {
	ID string `json:"id"`
}

func (r DeleteTask) apply(st *State, _ *env) error {
	deleteTask(st, r.ID)
	return nil
}

func deleteTask(st *State, id string) {
	t := st.find(id)
	if t == nil {
		return
	}
	if t.OriginID != "" && t.Date != "" {
		if origin := st.find(t.OriginID); origin != nil && !origin.IsExcluded(t.Date) {
			origin.ExcludedDates = append(origin.ExcludedDates, t.Date)
		}
	}
	kept := st.Items[:0]
	for _, x := range st.Items {
		if x.ID != id {
			kept = append(kept, x)
		}
	}
	st.Items = kept
}

// ToggleComplete flips a task's completion. Completing a locked task fails
// with ErrTaskLocked.
type ToggleComplete struct {
	ID string `json:"id"`
}

func (r ToggleComplete) apply(st *State, e *env) error {
	t := st.find(r.ID)
	if t == nil {
		return nil
	}
	return setCompletion(st, t, !t.Completed, e)
}

// setCompletion moves t to the given completion value and applies the
// subtask cascade, analytics and dependent re-evaluation.
func setCompletion(st *State, t *Task, completed bool, e *env) error {
	if completed && !t.Completed && t.IsLocked(e.now) {
		return ErrTaskLocked
	}
	t.Completed = completed
	for i := range t.Subtasks {
		t.Subtasks[i].Completed = completed
	}
	if completed {
		recordCompletion(st, t.Category, e)
	}
	propagateDependents(st, t.ID, completed, e.now)
	return nil
}

// AssignDate places a task on a date, or clears its date when Date is empty.
type AssignDate struct {
	ID   string `json:"id"`
	Date string `json:"date,omitempty"`
}

func (r AssignDate) apply(st *State, _ *env) error {
	if t := st.find(r.ID); t != nil {
		assignDate(t, r.Date)
	}
	return nil
}

func assignDate(t *Task, date string) {
	t.Date = date
	if date != "" {
		t.Backlog = false
	}
}

// CopyBucketToDate rolls every bucket task into the given date once.
type CopyBucketToDate struct {
	Date string `json:"date"`
}

func (r CopyBucketToDate) apply(st *State, e *env) error {
	var bucket []Task
	for i := range st.Items {
		if st.Items[i].InBucket() {
			bucket = append(bucket, st.Items[i])
		}
	}
	for _, b := range bucket {
		if b.IsExcluded(r.Date) {
			continue
		}
		exists := false
		for i := range st.Items {
			x := &st.Items[i]
			if x.Date == r.Date && (x.Title == b.Title || x.OriginID == b.ID) {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		copied := Task{
			ID:          e.newID(),
			Title:       b.Title,
			Description: b.Description,
			Subtasks:    cloneSubtasksReset(b.Subtasks, e.newID),
			Date:        r.Date,
			CreatedAt:   e.now,
			OriginID:    b.ID,
		}
		copied.normalize()
		st.Items = append(st.Items, copied)
	}
	return nil
}

// CopyTaskToDate duplicates one task into a date unless a task with the same
// title is already there. The copy never carries the dependency link.
type CopyTaskToDate struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

func (r CopyTaskToDate) apply(st *State, e *env) error {
	src := st.find(r.ID)
	if src == nil {
		return nil
	}
	for i := range st.Items {
		if st.Items[i].Date == r.Date && st.Items[i].Title == src.Title {
			return nil
		}
	}
	copied := Task{
		ID:          e.newID(),
		Title:       src.Title,
		Description: src.Description,
		Subtasks:    cloneSubtasksReset(src.Subtasks, e.newID),
		Date:        r.Date,
		CreatedAt:   e.now,
	}
	copied.normalize()
	st.Items = append(st.Items, copied)
	return nil
}

// BulkAdd appends externally prepared tasks. Tasks without an id get one.
type BulkAdd struct {
	Tasks []Task `json:"tasks"`
}

func (r BulkAdd) apply(st *State, e *env) error {
	for _, t := range r.Tasks {
		t = t.clone()
		if t.ID == "" {
			t.ID = e.newID()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = e.now
		}
		t.normalize()
		st.Items = append(st.Items, t)
	}
	return nil
}

// DuplicateTask clones a task with a fresh id and a "(Copy)" title suffix.
// The copy keeps the dependency link but starts without a gate.
type DuplicateTask struct {
	ID string `json:"id"`
}

func (r DuplicateTask) apply(st *State, e *env) error {
	src := st.find(r.ID)
	if src == nil {
		return nil
	}
	dup := src.clone()
	dup.ID = e.newID()
	dup.Title = src.Title + " (Copy)"
	dup.Completed = false
	dup.CreatedAt = e.now
	dup.ReminderAt = nil
	dup.AvailableAt = nil
	dup.Order = nextOrder(st, e.now)
	dup.Subtasks = cloneSubtasksReset(src.Subtasks, e.newID)
	dup.normalize()
	st.Items = append(st.Items, dup)
	return nil
}

// BulkDelete deletes every task in IDs.
type BulkDelete struct {
	IDs []string `json:"ids"`
}

func (r BulkDelete) apply(st *State, _ *env) error {
	for _, id := range r.IDs {
		deleteTask(st, id)
	}
	return nil
}

// BulkComplete sets the completion of every task in IDs. Locked tasks are
// skipped when completing.
type BulkComplete struct {
	IDs       []string `json:"ids"`
	Completed bool     `json:"completed"`
}

func (r BulkComplete) apply(st *State, e *env) error {
	for _, id := range r.IDs {
		t := st.find(id)
		if t == nil || t.Completed == r.Completed {
			continue
		}
		if r.Completed && t.IsLocked(e.now) {
			continue
		}
		_ = setCompletion(st, t, r.Completed, e)
	}
	return nil
}

// BulkMove assigns the same date to every task in IDs.
type BulkMove struct {
	IDs  []string `json:"ids"`
	Date string   `json:"date,omitempty"`
}

func (r BulkMove) apply(st *State, _ *env) error {
	for _, id := range r.IDs {
		if t := st.find(id); t != nil {
			assignDate(t, r.Date)
		}
	}
	return nil
}

// IncrementPomodoro records a finished pomodoro session on a task.
type IncrementPomodoro struct {
	ID      string `json:"id"`
	Minutes int    `json:"minutes"`
}

func (r IncrementPomodoro) apply(st *State, e *env) error {
	t := st.find(r.ID)
	if t == nil {
		return nil
	}
	t.PomodoroCount++
	t.Actual += r.Minutes
	trackTime(st, t.Category, r.Minutes, e)
	return nil
}

// AddAttachment appends an attachment to a task.
type AddAttachment struct {
	TaskID     string     `json:"taskId"`
	Attachment Attachment `json:"attachment"`
}

func (r AddAttachment) apply(st *State, e *env) error {
	t := st.find(r.TaskID)
	if t == nil {
		return nil
	}
	a := r.Attachment
	if a.ID == "" {
		a.ID = e.newID()
	}
	if a.AddedAt.IsZero() {
		a.AddedAt = e.now
	}
	t.Attachments = append(t.Attachments, a)
	return nil
}

// RemoveAttachment removes an attachment from a task.
type RemoveAttachment struct {
	TaskID       string `json:"taskId"`
	AttachmentID string `json:"attachmentId"`
}

func (r RemoveAttachment) apply(st *State, _ *env) error {
	t := st.find(r.TaskID)
	if t == nil {
		return nil
	}
	kept := make([]Attachment, 0, len(t.Attachments))
	for _, a := range t.Attachments {
		if a.ID != r.AttachmentID {
			kept = append(kept, a)
		}
	}
	t.Attachments = kept
	return nil
}
