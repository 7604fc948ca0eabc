package store

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// ProcessRecurring spawns today's instance of every due recurring task.
type ProcessRecurring struct {
	// Today overrides the store's current date when set.
	Today string `json:"today,omitempty"`
}

func (r ProcessRecurring) apply(st *State, e *env) error {
	today := r.Today
	if today == "" {
		today = e.today()
	}
	todayDate, err := time.Parse(DateLayout, today)
	if err != nil {
		return nil
	}

	n := len(st.Items)
	for i := 0; i < n; i++ {
		t := &st.Items[i]
		if t.Recurring == nil || t.Date == "" || t.IsTemplate {
			continue
		}
		p := t.Recurring
		if p.LastCreated == today {
			continue
		}
		if p.EndDate != "" && p.EndDate < today {
			continue
		}
		if !ShouldRecur(*p, t.CreatedAt, todayDate) {
			continue
		}
		inst := t.clone()
		inst.ID = e.newID()
		inst.Completed = false
		inst.CreatedAt = e.now
		inst.Date = today
		inst.Backlog = false
		inst.OriginID = t.ID
		inst.Recurring = nil
		inst.AvailableAt = nil
		inst.ReminderAt = nil
		inst.ExcludedDates = nil
		inst.Subtasks = cloneSubtasksReset(t.Subtasks, e.newID)
		inst.normalize()
		p.LastCreated = today

		st.Items = append(st.Items, inst)
	}
	return nil
}

// ShouldRecur reports whether a pattern is due on today. The watermark is the
// pattern's LastCreated date, or createdAt when nothing has been spawned yet.
func ShouldRecur(p RecurringPattern, createdAt time.Time, today time.Time) bool {
	c := createdAt.UTC()
	last := time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, time.UTC)
	if p.LastCreated != "" {
		if d, err := time.Parse(DateLayout, p.LastCreated); err == nil {
			last = d
		}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 1
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Floor(float64(today.Sub(last)) / float64(day)))

	switch p.Frequency {
	case FrequencyDaily:
		return days >= interval
	case FrequencyWeekly:
		if days < 7*interval {
			return false
		}
		if len(p.DaysOfWeek) > 0 && !containsInt(p.DaysOfWeek, int(today.Weekday())) {
			return false
		}
		return true
	case FrequencyMonthly:
		dom := p.DayOfMonth
		if dom <= 0 {
			dom = last.Day()
		}
		if today.Day() != clampDay(today, dom) {
			return false
		}
		months := (today.Year()-last.Year())*12 + int(today.Month()-last.Month())
		return months >= interval
	}
	return false
}

// clampDay limits dom to the number of days in today's month.
func clampDay(today time.Time, dom int) int {
	last := time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if dom > last {
		return last
	}
	return dom
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
