package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return d
}

func TestShouldRecur(t *testing.T) {
	tests := []struct {
		name    string
		pattern RecurringPattern
		created string
		today   string
		want    bool
	}{
		{"daily next day", RecurringPattern{Frequency: FrequencyDaily}, "2026-10-16", "2026-10-17", true},
		{"daily same day", RecurringPattern{Frequency: FrequencyDaily}, "2026-10-17", "2026-10-17", false},
		{"daily interval 3 too early", RecurringPattern{Frequency: FrequencyDaily, Interval: 3}, "2026-10-15", "2026-10-17", false},
		{"daily interval 3 due", RecurringPattern{Frequency: FrequencyDaily, Interval: 3}, "2026-10-14", "2026-10-17", true},
		{"daily uses watermark", RecurringPattern{Frequency: FrequencyDaily, LastCreated: "2026-10-17"}, "2026-10-01", "2026-10-17", false},
		{"weekly after a week", RecurringPattern{Frequency: FrequencyWeekly}, "2026-10-10", "2026-10-17", true},
		{"weekly too early", RecurringPattern{Frequency: FrequencyWeekly}, "2026-10-12", "2026-10-17", false},
		{"weekly matching weekday", RecurringPattern{Frequency: FrequencyWeekly, DaysOfWeek: []int{6}}, "2026-10-10", "2026-10-17", true},
		{"weekly other weekday", RecurringPattern{Frequency: FrequencyWeekly, DaysOfWeek: []int{1}}, "2026-10-10", "2026-10-17", false},
		{"monthly same day", RecurringPattern{Frequency: FrequencyMonthly}, "2026-09-17", "2026-10-17", true},
		{"monthly wrong day", RecurringPattern{Frequency: FrequencyMonthly}, "2026-09-16", "2026-10-17", false},
		{"monthly clamped to month end", RecurringPattern{Frequency: FrequencyMonthly, DayOfMonth: 31}, "2026-01-31", "2026-02-28", true},
		{"monthly before clamped day", RecurringPattern{Frequency: FrequencyMonthly, DayOfMonth: 31}, "2026-01-31", "2026-02-27", false},
		{"monthly interval not reached", RecurringPattern{Frequency: FrequencyMonthly, Interval: 2}, "2026-09-17", "2026-10-17", false},
		{"custom never", RecurringPattern{Frequency: FrequencyCustom}, "2026-01-01", "2026-10-17", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := date(t, tt.created).Add(15 * time.Hour)
			got := ShouldRecur(tt.pattern, created, date(t, tt.today))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessRecurring_SpawnsOncePerDay(t *testing.T) {
	s, clock := newTestStore(t)
	clock.now = time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	src := mustAdd(t, s, AddTask{
		Title:     "Water plants",
		Date:      "2026-10-16",
		Category:  "2",
		Recurring: &RecurringPattern{Frequency: FrequencyDaily},
	})
	require.NoError(t, s.Dispatch(AddSubtask{TaskID: src.ID, Title: "balcony"}))
	require.NoError(t, s.Dispatch(ToggleComplete{ID: src.ID}))

	clock.now = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.Dispatch(ProcessRecurring{}))
	require.NoError(t, s.Dispatch(ProcessRecurring{}))

	st := s.State()
	today := st.TasksForDate("2026-10-17")
	require.Len(t, today, 1)
	inst := today[0]
	assert.Equal(t, "Water plants", inst.Title)
	assert.Equal(t, src.ID, inst.OriginID)
	assert.Nil(t, inst.Recurring)
	assert.False(t, inst.Completed)
	require.Len(t, inst.Subtasks, 1)
	assert.False(t, inst.Subtasks[0].Completed)

	got := mustTask(t, s, src.ID)
	require.NotNil(t, got.Recurring)
	assert.Equal(t, "2026-10-17", got.Recurring.LastCreated)
}

func TestProcessRecurring_Skips(t *testing.T) {
	s, clock := newTestStore(t)
	clock.now = time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)
	mustAdd(t, s, AddTask{Title: "undated", Recurring: &RecurringPattern{Frequency: FrequencyDaily}})
	mustAdd(t, s, AddTask{Title: "ended", Date: "2026-10-10", Recurring: &RecurringPattern{Frequency: FrequencyDaily, EndDate: "2026-10-12"}})
	mustAdd(t, s, AddTask{Title: "template", Date: "2026-10-10", IsTemplate: true, Recurring: &RecurringPattern{Frequency: FrequencyDaily}})

	clock.now = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Dispatch(ProcessRecurring{}))

	st := s.State()
	assert.Len(t, st.Items, 3)
}

func TestProcessRecurring_ExplicitDate(t *testing.T) {
	s, clock := newTestStore(t)
	clock.now = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	mustAdd(t, s, AddTask{Title: "Rent", Date: "2026-10-01", Recurring: &RecurringPattern{Frequency: FrequencyMonthly}})

	require.NoError(t, s.Dispatch(ProcessRecurring{Today: "2026-11-01"}))

	st := s.State()
	assert.Len(t, st.TasksForDate("2026-11-01"), 1)
}
