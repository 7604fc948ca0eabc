// Package analytics derives read-only productivity reports from a state
// snapshot: the daily progress band, streaks, tracked time, per-category
// progress and the Eisenhower matrix.
package analytics

import (
	"sort"

	"daybucket/internal/store"
)

// Band is the display colour of a completion ratio.
type Band string

const (
	BandNone   Band = "none"
	BandRed    Band = "red"
	BandOrange Band = "orange"
	BandYellow Band = "yellow"
	BandGreen  Band = "green"
)

// BandFor places ratio against the thresholds. Anything below orange is red.
func BandFor(ratio float64, th store.Thresholds) Band {
	switch {
	case ratio >= th.Green:
		return BandGreen
	case ratio >= th.Yellow:
		return BandYellow
	case ratio >= th.Orange:
		return BandOrange
	default:
		return BandRed
	}
}

// Progress is the completion state of one day.
type Progress struct {
	Date      string  `json:"date"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Ratio     float64 `json:"ratio"`
	Goal      int     `json:"goal"`
	GoalRatio float64 `json:"goalRatio"`
	Band      Band    `json:"band"`
}

// DailyProgress counts the tasks dated date. A day with no tasks has band
// none.
func DailyProgress(st store.State, date string) Progress {
	p := Progress{Date: date, Goal: st.Productivity.DailyGoal, Band: BandNone}
	for _, t := range st.TasksForDate(date) {
		p.Total++
		if t.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Ratio = float64(p.Completed) / float64(p.Total)
		p.Band = BandFor(p.Ratio, st.Productivity.Thresholds)
	}
	if p.Goal > 0 {
		p.GoalRatio = float64(p.Completed) / float64(p.Goal)
	}
	return p
}

// CategoryStats is the progress of the tasks in one category.
type CategoryStats struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Ratio     float64 `json:"ratio"`
	Minutes   int     `json:"minutes"`
}

// Summary is the dashboard report.
type Summary struct {
	Today          Progress                 `json:"today"`
	CurrentStreak  int                      `json:"currentStreak"`
	LongestStreak  int                      `json:"longestStreak"`
	TotalMinutes   int                      `json:"totalMinutes"`
	TotalCompleted int                      `json:"totalCompleted"`
	SevenDayAvg    float64                  `json:"sevenDayAverage"`
	LastSevenDays  []store.CompletionRecord `json:"lastSevenDays"`
	Categories     []CategoryStats          `json:"categories"`
	Matrix         Matrix                   `json:"matrix"`
}

// Summarize builds the report for today.
func Summarize(st store.State, today string) Summary {
	a := st.Analytics
	s := Summary{
		Today:         DailyProgress(st, today),
		CurrentStreak: a.Streaks.Current,
		LongestStreak: a.Streaks.Longest,
		TotalMinutes:  a.TimeTracking.TotalMinutes,
		Matrix:        BuildMatrix(st),
	}

	for _, rec := range a.CompletionHistory {
		s.TotalCompleted += rec.Completed
	}
	history := a.CompletionHistory
	if len(history) > 7 {
		history = history[len(history)-7:]
	}
	s.LastSevenDays = append([]store.CompletionRecord{}, history...)
	if len(history) > 0 {
		sum := 0
		for _, rec := range history {
			sum += rec.Completed
		}
		s.SevenDayAvg = float64(sum) / float64(len(history))
	}

	s.Categories = categoryStats(st)
	return s
}

// categoryStats reports every category, busiest first by tracked minutes
// then completions.
func categoryStats(st store.State) []CategoryStats {
	byID := make(map[string]*CategoryStats, len(st.Categories))
	out := make([]CategoryStats, len(st.Categories))
	for i, c := range st.Categories {
		out[i] = CategoryStats{ID: c.ID, Name: c.Name, Minutes: st.Analytics.TimeTracking.ByCategory[c.ID]}
		byID[c.ID] = &out[i]
	}
	for _, t := range st.Items {
		cs, ok := byID[t.Category]
		if !ok || t.IsTemplate {
			continue
		}
		cs.Total++
		if t.Completed {
			cs.Completed++
		}
	}
	for i := range out {
		if out[i].Total > 0 {
			out[i].Ratio = float64(out[i].Completed) / float64(out[i].Total)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Minutes != out[j].Minutes {
			return out[i].Minutes > out[j].Minutes
		}
		return out[i].Completed > out[j].Completed
	})
	return out
}

// Matrix sorts open tasks into Eisenhower quadrants.
type Matrix struct {
	DoFirst   []store.Task `json:"doFirst"`
	Schedule  []store.Task `json:"schedule"`
	Delegate  []store.Task `json:"delegate"`
	Eliminate []store.Task `json:"eliminate"`
}

// BuildMatrix places every incomplete, non-template task by its urgent and
// important flags.
func BuildMatrix(st store.State) Matrix {
	var m Matrix
	for _, t := range st.Items {
		if t.Completed || t.IsTemplate {
			continue
		}
		switch {
		case t.Urgent && t.Important:
			m.DoFirst = append(m.DoFirst, t)
		case t.Important:
			m.Schedule = append(m.Schedule, t)
		case t.Urgent:
			m.Delegate = append(m.Delegate, t)
		default:
			m.Eliminate = append(m.Eliminate, t)
		}
	}
	return m
}
