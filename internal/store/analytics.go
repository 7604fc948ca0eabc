package store

// RecordCompletion records a completion in analytics without touching the
// task itself.
type RecordCompletion struct {
	ID string `json:"id"`
}

func (r RecordCompletion) apply(st *State, e *env) error {
	category := ""
	if t := st.find(r.ID); t != nil {
		category = t.Category
	}
	recordCompletion(st, category, e)
	return nil
}

// recordCompletion bumps today's history record and the streak.
func recordCompletion(st *State, category string, e *env) {
	today := e.today()
	a := &st.Analytics

	var rec *CompletionRecord
	for i := range a.CompletionHistory {
		if a.CompletionHistory[i].Date == today {
			rec = &a.CompletionHistory[i]
			break
		}
	}
	if rec == nil {
		a.CompletionHistory = append(a.CompletionHistory, CompletionRecord{
			Date:       today,
			Categories: map[string]int{},
		})
		rec = &a.CompletionHistory[len(a.CompletionHistory)-1]
	}
	if rec.Categories == nil {
		rec.Categories = map[string]int{}
	}
	rec.Completed++
	if category != "" {
		rec.Categories[category]++
	}
	rec.Total = countDated(st, today)

	s := &a.Streaks
	yesterday := e.now.In(e.loc).AddDate(0, 0, -1).Format(DateLayout)
	switch {
	case s.LastCompletionDate == "" || s.LastCompletionDate == yesterday:
		s.Current++
		if s.Current > s.Longest {
			s.Longest = s.Current
		}
	case s.LastCompletionDate != today:
		s.Current = 1
	}
	s.LastCompletionDate = today
}

// trackTime adds tracked minutes to the global, category and date totals.
func trackTime(st *State, category string, minutes int, e *env) {
	tt := &st.Analytics.TimeTracking
	if tt.ByCategory == nil {
		tt.ByCategory = map[string]int{}
	}
	if tt.ByDate == nil {
		tt.ByDate = map[string]int{}
	}
	tt.TotalMinutes += minutes
	if category != "" {
		tt.ByCategory[category] += minutes
	}
	tt.ByDate[e.today()] += minutes
}

func countDated(st *State, date string) int {
	n := 0
	for i := range st.Items {
		if st.Items[i].Date == date {
			n++
		}
	}
	return n
}
