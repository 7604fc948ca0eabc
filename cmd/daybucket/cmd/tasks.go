package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"daybucket/internal/analytics"
	"daybucket/internal/cli/prompt"
	"daybucket/internal/store"
	"daybucket/internal/utils"
)

var validFrequencies = []string{"daily", "weekly", "monthly", "custom"}

// taskFlags are the attribute flags shared by add and edit.
type taskFlags struct {
	date        string
	backlog     bool
	category    string
	priority    string
	tags        []string
	description string
	estimate    int
	urgent      bool
	important   bool
	notes       string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "Date (YYYY-MM-DD, today, tomorrow, +3d); empty keeps it in the bucket")
	cmd.Flags().BoolVar(&f.backlog, "backlog", false, "Park the task in the backlog")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Category name or id")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", "", "Priority (high, medium, low)")
	cmd.Flags().StringSliceVarP(&f.tags, "tag", "t", nil, "Tag (repeatable or comma-separated)")
	cmd.Flags().StringVar(&f.description, "desc", "", "Description")
	cmd.Flags().IntVar(&f.estimate, "estimate", 0, "Estimated minutes")
	cmd.Flags().BoolVar(&f.urgent, "urgent", false, "Mark urgent")
	cmd.Flags().BoolVar(&f.important, "important", false, "Mark important")
}

// resolveCategory maps a category name or id to its id.
func resolveCategory(st store.State, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	c, ok := st.FindCategory(ref)
	if !ok {
		return "", utils.ErrCategoryNotFound(ref)
	}
	return c.ID, nil
}

func parsePriority(p string) (store.Priority, error) {
	if err := utils.ValidatePriority(p); err != nil {
		return "", err
	}
	return store.Priority(strings.ToLower(p)), nil
}

// recurFlags describe a recurrence pattern.
type recurFlags struct {
	frequency  string
	interval   int
	days       []int
	dayOfMonth int
	until      string
}

func (f *recurFlags) register(cmd *cobra.Command, freqName string) {
	cmd.Flags().StringVar(&f.frequency, freqName, "", "Repeat daily, weekly, monthly or custom")
	cmd.Flags().IntVar(&f.interval, "every", 1, "Repeat every N periods")
	cmd.Flags().IntSliceVar(&f.days, "weekdays", nil, "Weekdays for weekly repeats (0=Sunday)")
	cmd.Flags().IntVar(&f.dayOfMonth, "day-of-month", 0, "Day of month for monthly repeats")
	cmd.Flags().StringVar(&f.until, "until", "", "Last date to repeat on")
}

// pattern builds the recurrence for a task dated taskDate.
func (f *recurFlags) pattern(a *app, taskDate string) (*store.RecurringPattern, error) {
	if f.frequency == "" {
		return nil, nil
	}
	freq := strings.ToLower(f.frequency)
	valid := false
	for _, v := range validFrequencies {
		if v == freq {
			valid = true
		}
	}
	if !valid {
		return nil, utils.ErrInvalidFrequency(f.frequency, validFrequencies)
	}
	for _, d := range f.days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %d (must be 0-6)", d)
		}
	}
	if f.dayOfMonth < 0 || f.dayOfMonth > 31 {
		return nil, fmt.Errorf("invalid day of month %d", f.dayOfMonth)
	}
	until, err := a.parseDate(f.until)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateDateRange(taskDate, until); err != nil {
		return nil, fmt.Errorf("invalid recurrence: %w", err)
	}
	return &store.RecurringPattern{
		Frequency:  store.Frequency(freq),
		Interval:   f.interval,
		DaysOfWeek: f.days,
		DayOfMonth: f.dayOfMonth,
		EndDate:    until,
	}, nil
}

func newAddCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var flags taskFlags
	var recur recurFlags
	cmd := &cobra.Command{
		Use:   "add [title...]",
		Short: "Add a task",
		Long: `Add a task to the bucket, a date, or the backlog.

Without a title, add asks for each field in turn.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				if len(args) == 0 {
					if a.cfg.NoPrompt || a.json {
						return fmt.Errorf("task title is required in no-prompt mode")
					}
					adder := &prompt.InteractiveAdder{
						Reader: a.stdin(),
						Writer: a.stdout,
						Now:    a.now().In(a.cfg.location(a.conf)),
					}
					fields, err := adder.Run()
					if err != nil {
						return err
					}
					args = []string{fields.Title}
					flags.description = fields.Description
					flags.priority = fields.Priority
					flags.date = fields.Date
					flags.tags = fields.Tags
					recur.frequency = fields.Recurrence
				}
				title, err := utils.ValidateTitle(strings.Join(args, " "))
				if err != nil {
					return err
				}
				priority, err := parsePriority(flags.priority)
				if err != nil {
					return err
				}
				date, err := a.parseDate(flags.date)
				if err != nil {
					return err
				}
				if date != "" && flags.backlog {
					return utils.ErrDateWithBacklog()
				}
				category, err := resolveCategory(a.store.State(), flags.category)
				if err != nil {
					return err
				}
				pattern, err := recur.pattern(a, date)
				if err != nil {
					return err
				}
				req := store.AddTask{
					Title:       title,
					Description: flags.description,
					Date:        date,
					Backlog:     flags.backlog,
					Category:    category,
					Priority:    priority,
					Tags:        flags.tags,
					Recurring:   pattern,
					Urgent:      flags.urgent,
					Important:   flags.important,
				}
				if flags.estimate > 0 {
					est := flags.estimate
					req.Estimated = &est
				}
				task, err := a.store.AddTask(req)
				if err != nil {
					return err
				}
				return a.completed("add", fmt.Sprintf("Created task: %s (ID: %s)", task.Title, task.ID), &task)
			})
		},
	}
	flags.register(cmd)
	recur.register(cmd, "recur")
	return cmd
}

type listResponse struct {
	View     string              `json:"view"`
	Tasks    []store.Task        `json:"tasks"`
	Count    int                 `json:"count"`
	Progress *analytics.Progress `json:"progress,omitempty"`
	Result   string              `json:"result"`
}

func newListCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var date string
	var bucket, backlog, templates, all bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks for a day, the bucket, the backlog or templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				st := a.store.State()
				resp := listResponse{Result: ResultInfoOnly}
				switch {
				case templates:
					resp.View, resp.Tasks = "templates", st.Templates
				case bucket:
					resp.View, resp.Tasks = "bucket", st.BucketTasks()
				case backlog:
					resp.View, resp.Tasks = "backlog", st.BacklogTasks()
				case all:
					resp.View, resp.Tasks = "all", st.Items
				default:
					day := a.store.Today()
					if date != "" {
						parsed, err := a.parseDate(date)
						if err != nil {
							return err
						}
						day = parsed
					}
					progress := analytics.DailyProgress(st, day)
					resp.View, resp.Tasks, resp.Progress = day, st.TasksForDate(day), &progress
				}
				if resp.Tasks == nil {
					resp.Tasks = []store.Task{}
				}
				resp.Count = len(resp.Tasks)

				if a.json {
					return a.writeJSON(resp)
				}
				printTaskList(a, resp)
				if a.cfg.NoPrompt {
					_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to list (default today)")
	cmd.Flags().BoolVar(&bucket, "bucket", false, "List the undated bucket")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "List the backlog")
	cmd.Flags().BoolVar(&templates, "templates", false, "List saved templates")
	cmd.Flags().BoolVar(&all, "all", false, "List every task")
	return cmd
}

func printTaskList(a *app, resp listResponse) {
	w := a.stdout
	loc := a.cfg.location(a.conf)
	if resp.Progress != nil {
		p := resp.Progress
		line := fmt.Sprintf("%s: %d/%d done", resp.View, p.Completed, p.Total)
		if p.Goal > 0 {
			line += fmt.Sprintf(", goal %d", p.Goal)
		}
		if p.Band != analytics.BandNone {
			line += fmt.Sprintf(" [%s]", p.Band)
		}
		_, _ = fmt.Fprintln(w, line)
	} else {
		_, _ = fmt.Fprintf(w, "%s (%d)\n", resp.View, resp.Count)
	}
	if resp.Count == 0 {
		_, _ = fmt.Fprintln(w, "No tasks")
		return
	}
	now := a.now()
	for _, t := range resp.Tasks {
		line := formatTask(t, now, loc)
		if resp.View == "all" && t.Date != "" {
			line = t.Date + "  " + line
		}
		_, _ = fmt.Fprintln(w, "  "+line)
	}
}

func newShowCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task>",
		Short: "Show a task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				st := a.store.State()
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				return a.info(t, func(w io.Writer) { printTaskDetail(w, a, st, t) })
			})
		},
	}
}

func printTaskDetail(w io.Writer, a *app, st store.State, t store.Task) {
	loc := a.cfg.location(a.conf)
	_, _ = fmt.Fprintln(w, formatTask(t, a.now(), loc))
	_, _ = fmt.Fprintf(w, "  id: %s\n", t.ID)
	switch {
	case t.Backlog:
		_, _ = fmt.Fprintln(w, "  in: backlog")
	case t.Date != "":
		_, _ = fmt.Fprintf(w, "  date: %s\n", t.Date)
	default:
		_, _ = fmt.Fprintln(w, "  in: bucket")
	}
	if t.Description != "" {
		_, _ = fmt.Fprintf(w, "  description: %s\n", t.Description)
	}
	if t.Category != "" {
		name := t.Category
		if c, ok := st.FindCategory(t.Category); ok {
			name = c.Name
		}
		_, _ = fmt.Fprintf(w, "  category: %s\n", name)
	}
	_, _ = fmt.Fprintf(w, "  priority: %s\n", t.Priority)
	if t.Estimated != nil || t.Actual > 0 {
		est := 0
		if t.Estimated != nil {
			est = *t.Estimated
		}
		_, _ = fmt.Fprintf(w, "  time: %d/%d min, %d pomodoros\n", t.Actual, est, t.PomodoroCount)
	}
	if t.DependsOn != nil {
		dep := t.DependsOn.TaskID
		if d, ok := st.Task(dep); ok {
			dep = d.Title
		}
		_, _ = fmt.Fprintf(w, "  depends on: %s (+%ds)\n", dep, t.DependsOn.DelaySeconds)
	}
	if t.Recurring != nil {
		_, _ = fmt.Fprintf(w, "  repeats: %s every %d\n", t.Recurring.Frequency, max(t.Recurring.Interval, 1))
	}
	for i, s := range t.Subtasks {
		box := "[ ]"
		if s.Completed {
			box = "[x]"
		}
		_, _ = fmt.Fprintf(w, "  %d. %s %s\n", i+1, box, s.Title)
	}
	for _, att := range t.Attachments {
		_, _ = fmt.Fprintf(w, "  attachment: %s <%s> (%s)\n", att.Name, att.URL, shortID(att.ID))
	}
	if t.Notes != "" {
		_, _ = fmt.Fprintf(w, "  notes: %s\n", t.Notes)
	}
}

func newEditCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var flags taskFlags
	var title string
	cmd := &cobra.Command{
		Use:   "edit <task>",
		Short: "Change a task's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				st := a.store.State()
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				changed := cmd.Flags().Changed
				var patch store.TaskPatch
				if changed("title") {
					v, err := utils.ValidateTitle(title)
					if err != nil {
						return err
					}
					patch.Title = &v
				}
				if changed("desc") {
					patch.Description = &flags.description
				}
				if changed("date") {
					v, err := a.parseDate(flags.date)
					if err != nil {
						return err
					}
					patch.Date = &v
				}
				if changed("backlog") {
					if flags.backlog && patch.Date != nil && *patch.Date != "" {
						return utils.ErrDateWithBacklog()
					}
					patch.Backlog = &flags.backlog
				}
				if changed("category") {
					v, err := resolveCategory(st, flags.category)
					if err != nil {
						return err
					}
					patch.Category = &v
				}
				if changed("priority") {
					v, err := parsePriority(flags.priority)
					if err != nil {
						return err
					}
					patch.Priority = &v
				}
				if changed("tag") {
					patch.Tags = append([]string{}, flags.tags...)
				}
				if changed("urgent") {
					patch.Urgent = &flags.urgent
				}
				if changed("important") {
					patch.Important = &flags.important
				}
				if changed("estimate") {
					patch.Estimated = &flags.estimate
				}
				if changed("notes") {
					patch.Notes = &flags.notes
				}
				if err := a.dispatch(store.EditTask{ID: t.ID, Changes: patch}); err != nil {
					return err
				}
				return a.completed("edit", fmt.Sprintf("Updated task: %s", a.task(t.ID).Title), a.task(t.ID))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&flags.notes, "notes", "", "Notes")
	return cmd
}

func newRmCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				if !a.confirm(fmt.Sprintf("Delete task '%s'?", t.Title)) {
					_, _ = fmt.Fprintln(a.stdout, "Cancelled")
					return nil
				}
				if err := a.dispatch(store.DeleteTask{ID: t.ID}); err != nil {
					return err
				}
				return a.completed("delete", fmt.Sprintf("Deleted task: %s", t.Title), &t)
			})
		},
	}
}

func newDoneCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "done <task>",
		Short: "Toggle a task's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				if err := a.dispatch(store.ToggleComplete{ID: t.ID}); err != nil {
					return err
				}
				updated := a.task(t.ID)
				msg := "Completed task: " + t.Title
				if !updated.Completed {
					msg = "Reopened task: " + t.Title
				}
				return a.completed("complete", msg, updated)
			})
		},
	}
}

func newDateCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "date <task> [date]",
		Short: "Move a task to a date, or back to the bucket when no date is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				date := ""
				if len(args) == 2 {
					if date, err = a.parseDate(args[1]); err != nil {
						return err
					}
				}
				if err := a.dispatch(store.AssignDate{ID: t.ID, Date: date}); err != nil {
					return err
				}
				msg := fmt.Sprintf("Moved %s to %s", t.Title, date)
				if date == "" {
					msg = fmt.Sprintf("Moved %s to the bucket", t.Title)
				}
				return a.completed("date", msg, a.task(t.ID))
			})
		},
	}
}

func newRollCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "roll [date]",
		Short: "Copy the bucket into a date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				date := a.store.Today()
				if len(args) == 1 {
					parsed, err := a.parseDate(args[0])
					if err != nil {
						return err
					}
					date = parsed
				}
				before := a.store.State()
				if err := a.dispatch(store.CopyBucketToDate{Date: date}); err != nil {
					return err
				}
				after := a.store.State()
				added := newTasks(before, after)
				return a.completedMany("roll", fmt.Sprintf("Rolled %d task(s) into %s", len(added), date), added)
			})
		},
	}
}

// newTasks returns the tasks in after that are not in before.
func newTasks(before, after store.State) []store.Task {
	seen := make(map[string]bool, len(before.Items))
	for _, t := range before.Items {
		seen[t.ID] = true
	}
	var added []store.Task
	for _, t := range after.Items {
		if !seen[t.ID] {
			added = append(added, t)
		}
	}
	return added
}

func newCopyCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <task> <date>",
		Short: "Copy a task onto another date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				date, err := a.parseDate(args[1])
				if err != nil {
					return err
				}
				if date == "" {
					return utils.ErrInvalidDate(args[1])
				}
				before := a.store.State()
				if err := a.dispatch(store.CopyTaskToDate{ID: t.ID, Date: date}); err != nil {
					return err
				}
				added := newTasks(before, a.store.State())
				if len(added) == 0 {
					return a.info(map[string]string{"task": t.Title, "date": date, "status": "already present"}, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "%s is already on %s\n", t.Title, date)
					})
				}
				return a.completed("copy", fmt.Sprintf("Copied %s to %s", t.Title, date), &added[0])
			})
		},
	}
}

func newDupCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dup <task>",
		Short: "Duplicate a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				before := a.store.State()
				if err := a.dispatch(store.DuplicateTask{ID: t.ID}); err != nil {
					return err
				}
				var dup *store.Task
				if added := newTasks(before, a.store.State()); len(added) > 0 {
					dup = &added[0]
				}
				return a.completed("duplicate", fmt.Sprintf("Duplicated task: %s", t.Title), dup)
			})
		},
	}
}

func newPomodoroCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "pomodoro <task>",
		Short: "Log a finished pomodoro on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minutes <= 0 {
				return fmt.Errorf("minutes must be positive, got %d", minutes)
			}
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				if err := a.dispatch(store.IncrementPomodoro{ID: t.ID, Minutes: minutes}); err != nil {
					return err
				}
				updated := a.task(t.ID)
				return a.completed("pomodoro",
					fmt.Sprintf("Logged %d min on %s (%d pomodoros)", minutes, t.Title, updated.PomodoroCount), updated)
			})
		},
	}
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 25, "Minutes worked")
	return cmd
}

func newRecurCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var recur recurFlags
	var clearPattern bool
	cmd := &cobra.Command{
		Use:   "recur <task> [daily|weekly|monthly|custom]",
		Short: "Set or clear how a task repeats",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				if clearPattern {
					if err := a.dispatch(store.EditTask{ID: t.ID, Changes: store.TaskPatch{ClearRecurring: true}}); err != nil {
						return err
					}
					return a.completed("recur", fmt.Sprintf("%s no longer repeats", t.Title), a.task(t.ID))
				}
				if len(args) < 2 {
					return fmt.Errorf("frequency is required (one of %s) unless --clear is set", strings.Join(validFrequencies, ", "))
				}
				recur.frequency = args[1]
				pattern, err := recur.pattern(a, t.Date)
				if err != nil {
					return err
				}
				if err := a.dispatch(store.EditTask{ID: t.ID, Changes: store.TaskPatch{Recurring: pattern}}); err != nil {
					return err
				}
				return a.completed("recur", fmt.Sprintf("%s repeats %s", t.Title, pattern.Frequency), a.task(t.ID))
			})
		},
	}
	cmd.Flags().IntVar(&recur.interval, "every", 1, "Repeat every N periods")
	cmd.Flags().IntSliceVar(&recur.days, "weekdays", nil, "Weekdays for weekly repeats (0=Sunday)")
	cmd.Flags().IntVar(&recur.dayOfMonth, "day-of-month", 0, "Day of month for monthly repeats")
	cmd.Flags().StringVar(&recur.until, "until", "", "Last date to repeat on")
	cmd.Flags().BoolVar(&clearPattern, "clear", false, "Stop repeating")
	return cmd
}

func newAttachCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Manage task attachments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var mimeType string
	var size int64
	add := &cobra.Command{
		Use:   "add <task> <name> <url>",
		Short: "Attach a link or file reference",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				name, err := utils.ValidateTitle(args[1])
				if err != nil {
					return err
				}
				att := store.Attachment{Name: name, URL: args[2], Type: mimeType, Size: size}
				if err := a.dispatch(store.AddAttachment{TaskID: t.ID, Attachment: att}); err != nil {
					return err
				}
				return a.completed("attach", fmt.Sprintf("Attached %s to %s", name, t.Title), a.task(t.ID))
			})
		},
	}
	add.Flags().StringVar(&mimeType, "type", "", "MIME type")
	add.Flags().Int64Var(&size, "size", 0, "Size in bytes")

	rm := &cobra.Command{
		Use:   "rm <task> <attachment>",
		Short: "Remove an attachment by id or name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				for _, att := range t.Attachments {
					if att.ID == args[1] || strings.HasPrefix(att.ID, args[1]) || strings.EqualFold(att.Name, args[1]) {
						if err := a.dispatch(store.RemoveAttachment{TaskID: t.ID, AttachmentID: att.ID}); err != nil {
							return err
						}
						return a.completed("detach", fmt.Sprintf("Removed %s from %s", att.Name, t.Title), a.task(t.ID))
					}
				}
				return fmt.Errorf("attachment not found: %s", args[1])
			})
		},
	}

	cmd.AddCommand(add, rm)
	return cmd
}
