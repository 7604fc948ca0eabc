// Package markdown reads and writes tasks as markdown checklists.
//
// Tasks are grouped under "## Bucket", "## Backlog" and "## YYYY-MM-DD"
// headings. Each task is a checkbox line; its subtasks are indented
// checkboxes and any other indented line is part of its description:
//
//	## 2026-03-10
//	- [ ] Write report !high #work
//	  - [x] Outline
//	  Due before the review.
package markdown

import (
	"bufio"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"daybucket/internal/store"
)

const (
	bucketHeading  = "Bucket"
	backlogHeading = "Backlog"
)

var (
	checkboxPattern = regexp.MustCompile(`^(\s*)[-*] \[([ xX])\] (.*)$`)
	headingPattern  = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	dayPattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	priorityPattern = regexp.MustCompile(`(^|\s)!(high|medium|low)\b`)
	datePattern     = regexp.MustCompile(`(^|\s)@(\d{4}-\d{2}-\d{2})\b`)
	tagPattern      = regexp.MustCompile(`(^|\s)#([\w-]+)`)
)

// Format renders tasks as a checklist. Templates are left out.
func Format(tasks []store.Task) string {
	groups := make(map[string][]store.Task)
	var dates []string
	for _, t := range tasks {
		if t.IsTemplate {
			continue
		}
		key := section(t)
		if _, ok := groups[key]; !ok && key != bucketHeading && key != backlogHeading {
			dates = append(dates, key)
		}
		groups[key] = append(groups[key], t)
	}
	sort.Strings(dates)

	var sb strings.Builder
	for _, key := range append([]string{bucketHeading, backlogHeading}, dates...) {
		items := groups[key]
		if len(items) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## " + key + "\n")
		for i := range items {
			writeTask(&sb, &items[i])
		}
	}
	return sb.String()
}

func section(t store.Task) string {
	switch {
	case t.Date != "":
		return t.Date
	case t.Backlog:
		return backlogHeading
	default:
		return bucketHeading
	}
}

func writeTask(sb *strings.Builder, t *store.Task) {
	sb.WriteString("- [" + FormatStatusChar(t.Completed) + "] " + FormatTaskText(t) + "\n")
	for _, s := range t.Subtasks {
		sb.WriteString("  - [" + FormatStatusChar(s.Completed) + "] " + s.Title + "\n")
	}
	if t.Description != "" {
		for _, line := range strings.Split(t.Description, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}
}

// FormatStatusChar returns the checkbox character for a completion state.
func FormatStatusChar(completed bool) string {
	if completed {
		return "x"
	}
	return " "
}

// ParseStatusChar reports whether a checkbox character means done.
func ParseStatusChar(char string) bool {
	return strings.EqualFold(char, "x")
}

// FormatTaskText renders a task's title with its inline markers.
func FormatTaskText(t *store.Task) string {
	parts := []string{t.Title}
	if t.Priority != "" && t.Priority != store.PriorityMedium {
		parts = append(parts, "!"+string(t.Priority))
	}
	for _, tag := range t.Tags {
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}

// TaskText is what ParseTaskText pulls out of a checkbox line.
type TaskText struct {
	Title    string
	Priority store.Priority
	Date     string
	Tags     []string
}

// ParseTaskText extracts the title, priority, date and tags from
// "Title !high @2026-03-10 #tag".
func ParseTaskText(text string) TaskText {
	var out TaskText
	if m := priorityPattern.FindStringSubmatch(text); m != nil {
		out.Priority = store.Priority(m[2])
		text = priorityPattern.ReplaceAllString(text, "$1")
	}
	if m := datePattern.FindStringSubmatch(text); m != nil {
		out.Date = m[2]
		text = datePattern.ReplaceAllString(text, "$1")
	}
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		out.Tags = append(out.Tags, m[2])
	}
	text = tagPattern.ReplaceAllString(text, "$1")
	out.Title = strings.Join(strings.Fields(text), " ")
	return out
}

// Parse reads a checklist into tasks ready for store.BulkAdd. Task ids are
// left empty; subtasks get fresh ids created at now.
func Parse(doc string, now time.Time) ([]store.Task, error) {
	var (
		tasks   []store.Task
		current *store.Task
		date    string
		backlog bool
	)
	scanner := bufio.NewScanner(strings.NewReader(doc))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			current = nil
			heading := strings.TrimSpace(m[1])
			switch {
			case strings.EqualFold(heading, bucketHeading):
				date, backlog = "", false
			case strings.EqualFold(heading, backlogHeading):
				date, backlog = "", true
			case dayPattern.MatchString(heading):
				date, backlog = heading, false
			default:
				date, backlog = "", false
			}
			continue
		}

		if m := checkboxPattern.FindStringSubmatch(line); m != nil {
			indent, done, text := m[1], ParseStatusChar(m[2]), m[3]
			if indent != "" && current != nil {
				current.Subtasks = append(current.Subtasks, store.Subtask{
					ID:        uuid.NewString(),
					Title:     strings.TrimSpace(text),
					Completed: done,
					CreatedAt: now,
				})
				continue
			}
			parsed := ParseTaskText(text)
			if parsed.Title == "" {
				return nil, fmt.Errorf("line %d: task has no title", lineNo)
			}
			t := store.Task{
				Title:     parsed.Title,
				Completed: done,
				Priority:  parsed.Priority,
				Tags:      parsed.Tags,
				Date:      date,
				Backlog:   backlog && date == "",
			}
			if parsed.Date != "" {
				t.Date, t.Backlog = parsed.Date, false
			}
			if t.Priority == "" {
				t.Priority = store.PriorityMedium
			}
			tasks = append(tasks, t)
			current = &tasks[len(tasks)-1]
			continue
		}

		if current != nil && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			text := strings.TrimSpace(line)
			if current.Description != "" {
				current.Description += "\n"
			}
			current.Description += text
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}
