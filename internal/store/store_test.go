package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	seq := 0
	s := New(
		WithClock(clock.Now),
		WithLocation(time.UTC),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	return s, clock
}

func mustAdd(t *testing.T, s *Store, req AddTask) Task {
	t.Helper()
	task, err := s.AddTask(req)
	require.NoError(t, err)
	return task
}

func mustTask(t *testing.T, s *Store, id string) Task {
	t.Helper()
	task, ok := s.Task(id)
	require.True(t, ok, "task %s not found", id)
	return task
}

func TestAddTask_Defaults(t *testing.T) {
	s, clock := newTestStore(t)

	task := mustAdd(t, s, AddTask{Title: "Write report"})

	assert.Equal(t, "id-1", task.ID)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, clock.now, task.CreatedAt)
	assert.False(t, task.Completed)
	assert.NotNil(t, task.Subtasks)
	assert.NotNil(t, task.Tags)
	assert.True(t, task.InBucket())
	assert.Equal(t, clock.now.UnixMilli(), task.Order)

	second := mustAdd(t, s, AddTask{Title: "Second"})
	assert.Greater(t, second.Order, task.Order)
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, AddTask{Title: "Only"})
	before, err := EncodeSnapshot(s.State())
	require.NoError(t, err)

	reqs := []Request{
		EditTask{ID: "missing"},
		DeleteTask{ID: "missing"},
		ToggleComplete{ID: "missing"},
		AssignDate{ID: "missing", Date: "2026-10-18"},
		AddSubtask{TaskID: "missing", Title: "x"},
		ToggleSubtask{TaskID: "id-1", SubtaskID: "missing"},
		SetDependency{ID: "missing", DependsOn: Dependency{TaskID: "id-1"}},
		UnlockTask{ID: "missing"},
		IncrementPomodoro{ID: "missing", Minutes: 25},
	}
	for _, req := range reqs {
		require.NoError(t, s.Dispatch(req))
	}

	after, err := EncodeSnapshot(s.State())
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestEditTask_MergesOnlySetFields(t *testing.T) {
	s, _ := newTestStore(t)
	task := mustAdd(t, s, AddTask{Title: "Old", Description: "keep", Priority: PriorityHigh})

	title := "New"
	require.NoError(t, s.Dispatch(EditTask{ID: task.ID, Changes: TaskPatch{Title: &title}}))

	got := mustTask(t, s, task.ID)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "keep", got.Description)
	assert.Equal(t, PriorityHigh, got.Priority)
}

func TestCopyBucketToDate_IdempotentAndExclusions(t *testing.T) {
	s, _ := newTestStore(t)
	bucket := mustAdd(t, s, AddTask{Title: "Stretch"})
	mustAdd(t, s, AddTask{Title: "Parked", Backlog: true})
	const date = "2026-10-17"

	require.NoError(t, s.Dispatch(CopyBucketToDate{Date: date}))
	require.NoError(t, s.Dispatch(CopyBucketToDate{Date: date}))

	st := s.State()
	dated := st.TasksForDate(date)
	require.Len(t, dated, 1)
	assert.Equal(t, "Stretch", dated[0].Title)
	assert.Equal(t, bucket.ID, dated[0].OriginID)
	assert.False(t, dated[0].Completed)

	require.NoError(t, s.Dispatch(DeleteTask{ID: dated[0].ID}))
	origin := mustTask(t, s, bucket.ID)
	assert.Equal(t, []string{date}, origin.ExcludedDates)

	require.NoError(t, s.Dispatch(CopyBucketToDate{Date: date}))
	st = s.State()
	assert.Empty(t, st.TasksForDate(date))

	require.NoError(t, s.Dispatch(CopyBucketToDate{Date: "2026-10-18"}))
	st = s.State()
	assert.Len(t, st.TasksForDate("2026-10-18"), 1)
}

func TestCopyBucketToDate_SkipsSameTitle(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, AddTask{Title: "Walk"})
	mustAdd(t, s, AddTask{Title: "Walk", Date: "2026-10-17"})

	require.NoError(t, s.Dispatch(CopyBucketToDate{Date: "2026-10-17"}))

	st := s.State()
	assert.Len(t, st.TasksForDate("2026-10-17"), 1)
}

func TestAssignDate_ClearsBacklog(t *testing.T) {
	s, _ := newTestStore(t)
	task := mustAdd(t, s, AddTask{Title: "Someday", Backlog: true})

	require.NoError(t, s.Dispatch(AssignDate{ID: task.ID, Date: "2026-10-20"}))

	got := mustTask(t, s, task.ID)
	assert.Equal(t, "2026-10-20", got.Date)
	assert.False(t, got.Backlog)
}

func TestDateAndBacklogAreExclusive(t *testing.T) {
	s, _ := newTestStore(t)
	added := mustAdd(t, s, AddTask{Title: "Both", Date: "2026-10-20", Backlog: true})
	assert.False(t, added.Backlog, "a dated task is not added to the backlog")

	backlog := true
	require.NoError(t, s.Dispatch(EditTask{ID: added.ID, Changes: TaskPatch{Backlog: &backlog}}))
	got := mustTask(t, s, added.ID)
	assert.True(t, got.Backlog)
	assert.Empty(t, got.Date, "joining the backlog drops the date")

	date := "2026-10-21"
	require.NoError(t, s.Dispatch(EditTask{ID: added.ID, Changes: TaskPatch{Date: &date}}))
	got = mustTask(t, s, added.ID)
	assert.Equal(t, "2026-10-21", got.Date)
	assert.False(t, got.Backlog, "setting a date leaves the backlog")
}

func TestSubtaskInvariant(t *testing.T) {
	s, _ := newTestStore(t)
	task := mustAdd(t, s, AddTask{Title: "Groceries"})
	require.NoError(t, s.Dispatch(AddSubtask{TaskID: task.ID, ID: "a", Title: "Milk"}))
	require.NoError(t, s.Dispatch(AddSubtask{TaskID: task.ID, ID: "b", Title: "Eggs"}))

	require.NoError(t, s.Dispatch(ToggleSubtask{TaskID: task.ID, SubtaskID: "a"}))
	assert.False(t, mustTask(t, s, task.ID).Completed)

	require.NoError(t, s.Dispatch(ToggleSubtask{TaskID: task.ID, SubtaskID: "b"}))
	assert.True(t, mustTask(t, s, task.ID).Completed)

	require.NoError(t, s.Dispatch(AddSubtask{TaskID: task.ID, ID: "c", Title: "Bread"}))
	assert.False(t, mustTask(t, s, task.ID).Completed)

	require.NoError(t, s.Dispatch(ToggleComplete{ID: task.ID}))
	got := mustTask(t, s, task.ID)
	assert.True(t, got.Completed)
	for _, st := range got.Subtasks {
		assert.True(t, st.Completed, "subtask %s", st.ID)
	}

	require.NoError(t, s.Dispatch(ToggleComplete{ID: task.ID}))
	got = mustTask(t, s, task.ID)
	assert.False(t, got.Completed)
	for _, st := range got.Subtasks {
		assert.False(t, st.Completed, "subtask %s", st.ID)
	}
}

func TestDependencyGate(t *testing.T) {
	s, clock := newTestStore(t)
	a := mustAdd(t, s, AddTask{Title: "Write draft"})
	b := mustAdd(t, s, AddTask{Title: "Review draft"})
	require.NoError(t, s.Dispatch(SetDependency{ID: b.ID, DependsOn: Dependency{TaskID: a.ID, DelaySeconds: 10}}))

	t0 := clock.now
	require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))

	got := mustTask(t, s, b.ID)
	require.NotNil(t, got.AvailableAt)
	assert.Equal(t, t0.Add(10*time.Second), *got.AvailableAt)
	assert.True(t, got.IsLocked(clock.now))

	err := s.Dispatch(ToggleComplete{ID: b.ID})
	assert.ErrorIs(t, err, ErrTaskLocked)
	assert.False(t, mustTask(t, s, b.ID).Completed)

	clock.Advance(11 * time.Second)
	require.NoError(t, s.Dispatch(ToggleComplete{ID: b.ID}))
	assert.True(t, mustTask(t, s, b.ID).Completed)

	require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))
	got = mustTask(t, s, b.ID)
	assert.False(t, got.Completed)
	assert.Nil(t, got.AvailableAt)
	require.NotNil(t, got.DependsOn)
	assert.Equal(t, a.ID, got.DependsOn.TaskID)
}

func TestToggleSubtask_LockedParent(t *testing.T) {
	s, clock := newTestStore(t)
	a := mustAdd(t, s, AddTask{Title: "Write draft"})
	b := mustAdd(t, s, AddTask{Title: "Review draft"})
	require.NoError(t, s.Dispatch(AddSubtask{TaskID: b.ID, ID: "s1", Title: "Read"}))
	require.NoError(t, s.Dispatch(AddSubtask{TaskID: b.ID, ID: "s2", Title: "Comment"}))
	require.NoError(t, s.Dispatch(SetDependency{ID: b.ID, DependsOn: Dependency{TaskID: a.ID, DelaySeconds: 60}}))
	require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))

	require.NoError(t, s.Dispatch(ToggleSubtask{TaskID: b.ID, SubtaskID: "s1"}), "a subtask that leaves the parent open is fine")

	err := s.Dispatch(ToggleSubtask{TaskID: b.ID, SubtaskID: "s2"})
	assert.ErrorIs(t, err, ErrTaskLocked)
	got := mustTask(t, s, b.ID)
	assert.False(t, got.Completed)
	assert.True(t, got.Subtasks[0].Completed)
	assert.False(t, got.Subtasks[1].Completed, "state is unchanged after the rejected toggle")

	clock.Advance(61 * time.Second)
	require.NoError(t, s.Dispatch(ToggleSubtask{TaskID: b.ID, SubtaskID: "s2"}))
	assert.True(t, mustTask(t, s, b.ID).Completed)
}

func TestUnlockTask_KeepsLink(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, AddTask{Title: "First"})
	b := mustAdd(t, s, AddTask{Title: "Second"})
	require.NoError(t, s.Dispatch(SetDependency{ID: b.ID, DependsOn: Dependency{TaskID: a.ID, DelaySeconds: 60}}))
	require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))

	require.NoError(t, s.Dispatch(UnlockTask{ID: b.ID}))

	got := mustTask(t, s, b.ID)
	assert.Nil(t, got.AvailableAt)
	assert.NotNil(t, got.DependsOn)
	assert.NoError(t, s.Dispatch(ToggleComplete{ID: b.ID}))
}

func TestBulkComplete_SkipsLocked(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, AddTask{Title: "A"})
	b := mustAdd(t, s, AddTask{Title: "B"})
	c := mustAdd(t, s, AddTask{Title: "C"})
	require.NoError(t, s.Dispatch(SetDependency{ID: b.ID, DependsOn: Dependency{TaskID: a.ID, DelaySeconds: 60}}))
	require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))

	require.NoError(t, s.Dispatch(BulkComplete{IDs: []string{b.ID, c.ID}, Completed: true}))

	assert.False(t, mustTask(t, s, b.ID).Completed)
	assert.True(t, mustTask(t, s, c.ID).Completed)
}

func TestStreaks(t *testing.T) {
	s, clock := newTestStore(t)
	complete := func() {
		task := mustAdd(t, s, AddTask{Title: "Daily"})
		require.NoError(t, s.Dispatch(ToggleComplete{ID: task.ID}))
	}

	complete()
	complete()
	st := s.State()
	assert.Equal(t, 1, st.Analytics.Streaks.Current)

	clock.Advance(24 * time.Hour)
	complete()
	st = s.State()
	assert.Equal(t, 2, st.Analytics.Streaks.Current)
	assert.Equal(t, 2, st.Analytics.Streaks.Longest)

	clock.Advance(48 * time.Hour)
	complete()
	st = s.State()
	assert.Equal(t, 1, st.Analytics.Streaks.Current)
	assert.Equal(t, 2, st.Analytics.Streaks.Longest)
	assert.Equal(t, "2026-10-20", st.Analytics.Streaks.LastCompletionDate)
}

func TestCompletionHistory(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, AddTask{Title: "A", Category: "1", Date: "2026-10-17"})
	b := mustAdd(t, s, AddTask{Title: "B", Category: "1", Date: "2026-10-17"})
	mustAdd(t, s, AddTask{Title: "C", Date: "2026-10-17"})

	require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))
	require.NoError(t, s.Dispatch(ToggleComplete{ID: b.ID}))
	require.NoError(t, s.Dispatch(ToggleComplete{ID: b.ID}))

	st := s.State()
	require.Len(t, st.Analytics.CompletionHistory, 1)
	rec := st.Analytics.CompletionHistory[0]
	assert.Equal(t, "2026-10-17", rec.Date)
	assert.Equal(t, 2, rec.Completed)
	assert.Equal(t, 3, rec.Total)
	assert.Equal(t, 2, rec.Categories["1"])
}

func TestIncrementPomodoro(t *testing.T) {
	s, _ := newTestStore(t)
	task := mustAdd(t, s, AddTask{Title: "Focus", Category: "4"})

	require.NoError(t, s.Dispatch(IncrementPomodoro{ID: task.ID, Minutes: 25}))
	require.NoError(t, s.Dispatch(IncrementPomodoro{ID: task.ID, Minutes: 25}))

	got := mustTask(t, s, task.ID)
	assert.Equal(t, 2, got.PomodoroCount)
	assert.Equal(t, 50, got.Actual)
	st := s.State()
	assert.Equal(t, 50, st.Analytics.TimeTracking.TotalMinutes)
	assert.Equal(t, 50, st.Analytics.TimeTracking.ByCategory["4"])
	assert.Equal(t, 50, st.Analytics.TimeTracking.ByDate["2026-10-17"])
}

func TestDeleteCategory_ClearsTasks(t *testing.T) {
	s, _ := newTestStore(t)
	task := mustAdd(t, s, AddTask{Title: "Report", Category: "1"})

	require.NoError(t, s.Dispatch(DeleteCategory{ID: "1"}))

	st := s.State()
	_, ok := st.FindCategory("Work")
	assert.False(t, ok)
	assert.Empty(t, mustTask(t, s, task.ID).Category)
}

func TestTemplates(t *testing.T) {
	s, _ := newTestStore(t)
	task := mustAdd(t, s, AddTask{Title: "Weekly review", Category: "1"})
	require.NoError(t, s.Dispatch(AddSubtask{TaskID: task.ID, Title: "Inbox zero"}))
	require.NoError(t, s.Dispatch(SaveAsTemplate{ID: task.ID, TemplateName: "review"}))

	st := s.State()
	tpl, ok := st.FindTemplate("review")
	require.True(t, ok)
	assert.True(t, tpl.IsTemplate)

	require.NoError(t, s.Dispatch(InstantiateTemplate{TemplateID: tpl.ID, ID: "inst", Date: "2026-10-19"}))
	inst := mustTask(t, s, "inst")
	assert.Equal(t, "Weekly review", inst.Title)
	assert.Equal(t, "2026-10-19", inst.Date)
	assert.False(t, inst.IsTemplate)
	require.Len(t, inst.Subtasks, 1)
	assert.NotEqual(t, tpl.Subtasks[0].ID, inst.Subtasks[0].ID)
}

func TestDuplicateTask(t *testing.T) {
	s, _ := newTestStore(t)
	task := mustAdd(t, s, AddTask{Title: "Call mom"})
	require.NoError(t, s.Dispatch(ToggleComplete{ID: task.ID}))

	require.NoError(t, s.Dispatch(DuplicateTask{ID: task.ID}))

	st := s.State()
	require.Len(t, st.Items, 2)
	dup := st.Items[1]
	assert.Equal(t, "Call mom (Copy)", dup.Title)
	assert.False(t, dup.Completed)
	assert.NotEqual(t, task.ID, dup.ID)
}

func TestDuplicateTask_DropsGate(t *testing.T) {
	s, clock := newTestStore(t)
	a := mustAdd(t, s, AddTask{Title: "Write draft"})
	b := mustAdd(t, s, AddTask{Title: "Review draft"})
	require.NoError(t, s.Dispatch(SetDependency{ID: b.ID, DependsOn: Dependency{TaskID: a.ID, DelaySeconds: 60}}))
	require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))
	gated := mustTask(t, s, b.ID)
	require.True(t, gated.IsLocked(clock.now))

	require.NoError(t, s.Dispatch(DuplicateTask{ID: b.ID}))

	st := s.State()
	dup := st.Items[len(st.Items)-1]
	assert.Equal(t, "Review draft (Copy)", dup.Title)
	assert.Nil(t, dup.AvailableAt)
	assert.False(t, dup.IsLocked(clock.now))
	require.NotNil(t, dup.DependsOn)
	assert.Equal(t, a.ID, dup.DependsOn.TaskID)
}

func TestCopyTaskToDate(t *testing.T) {
	tests := []struct {
		name      string
		existing  []AddTask
		wantAdded bool
	}{
		{name: "copies into an empty day", wantAdded: true},
		{name: "skips when the title is already on the date", existing: []AddTask{{Title: "Review draft", Date: "2026-10-20"}}},
		{name: "copies when the title is on another date", existing: []AddTask{{Title: "Review draft", Date: "2026-10-21"}}, wantAdded: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := newTestStore(t)
			a := mustAdd(t, s, AddTask{Title: "Write draft"})
			src := mustAdd(t, s, AddTask{Title: "Review draft", Description: "Second pass"})
			require.NoError(t, s.Dispatch(AddSubtask{TaskID: src.ID, ID: "s1", Title: "Read"}))
			require.NoError(t, s.Dispatch(SetDependency{ID: src.ID, DependsOn: Dependency{TaskID: a.ID, DelaySeconds: 60}}))
			require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))
			clock.Advance(61 * time.Second)
			require.NoError(t, s.Dispatch(ToggleSubtask{TaskID: src.ID, SubtaskID: "s1"}))
			for _, req := range tt.existing {
				mustAdd(t, s, req)
			}
			before := len(s.State().Items)

			require.NoError(t, s.Dispatch(CopyTaskToDate{ID: src.ID, Date: "2026-10-20"}))

			st := s.State()
			if !tt.wantAdded {
				assert.Len(t, st.Items, before)
				return
			}
			require.Len(t, st.Items, before+1)
			copied := st.Items[len(st.Items)-1]
			assert.NotEqual(t, src.ID, copied.ID)
			assert.Equal(t, "Review draft", copied.Title)
			assert.Equal(t, "Second pass", copied.Description)
			assert.Equal(t, "2026-10-20", copied.Date)
			assert.False(t, copied.Completed)
			assert.Nil(t, copied.DependsOn)
			assert.Nil(t, copied.AvailableAt)
			require.Len(t, copied.Subtasks, 1)
			assert.NotEqual(t, "s1", copied.Subtasks[0].ID)
			assert.Equal(t, "Read", copied.Subtasks[0].Title)
			assert.False(t, copied.Subtasks[0].Completed)
		})
	}
}

func TestCompareAndReplace(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, AddTask{Title: "Base"})
	base, err := EncodeSnapshot(s.State())
	require.NoError(t, err)

	other := s.State()
	other.Items = append(other.Items, Task{ID: "x", Title: "From CLI"})
	doc, err := EncodeSnapshot(other)
	require.NoError(t, err)

	mustAdd(t, s, AddTask{Title: "From daemon"})
	err = s.Dispatch(CompareAndReplace{Base: base, Payload: ParsePayload(doc)})
	assert.ErrorIs(t, err, ErrStateChanged)
	st := s.State()
	require.Len(t, st.Items, 2)
	assert.Equal(t, "From daemon", st.Items[1].Title)

	base, err = EncodeSnapshot(s.State())
	require.NoError(t, err)
	require.NoError(t, s.Dispatch(CompareAndReplace{Base: base, Payload: ParsePayload(doc)}))
	st = s.State()
	require.Len(t, st.Items, 2)
	assert.Equal(t, "From CLI", st.Items[1].Title)
}

func TestSubscribe_ReceivesIsolatedSnapshots(t *testing.T) {
	s, _ := newTestStore(t)
	var got []State
	unsubscribe := s.Subscribe(func(st State) {
		got = append(got, st)
	})

	task := mustAdd(t, s, AddTask{Title: "Observed"})
	require.Len(t, got, 1)
	got[0].Items[0].Title = "mutated"
	assert.Equal(t, "Observed", mustTask(t, s, task.ID).Title)

	unsubscribe()
	require.NoError(t, s.Dispatch(DeleteTask{ID: task.ID}))
	assert.Len(t, got, 1)
}

func TestDispatchError_DoesNotNotify(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, AddTask{Title: "A"})
	b := mustAdd(t, s, AddTask{Title: "B"})
	require.NoError(t, s.Dispatch(SetDependency{ID: b.ID, DependsOn: Dependency{TaskID: a.ID, DelaySeconds: 60}}))
	require.NoError(t, s.Dispatch(ToggleComplete{ID: a.ID}))

	calls := 0
	s.Subscribe(func(State) { calls++ })
	require.Error(t, s.Dispatch(ToggleComplete{ID: b.ID}))
	assert.Zero(t, calls)
}

func TestQueries(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, AddTask{Title: "bucket"})
	mustAdd(t, s, AddTask{Title: "backlog", Backlog: true})
	mustAdd(t, s, AddTask{Title: "dated", Date: "2026-10-17"})
	mustAdd(t, s, AddTask{Title: "template", IsTemplate: true})

	st := s.State()
	require.Len(t, st.BucketTasks(), 1)
	assert.Equal(t, "bucket", st.BucketTasks()[0].Title)
	require.Len(t, st.BacklogTasks(), 1)
	assert.Equal(t, "backlog", st.BacklogTasks()[0].Title)
	require.Len(t, st.TasksForDate("2026-10-17"), 1)
	assert.Equal(t, "dated", st.TasksForDate("2026-10-17")[0].Title)
}
