package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"daybucket/internal/reminder"
	"daybucket/internal/store"
	"daybucket/internal/utils"
)

func newSubtaskCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subtask",
		Aliases: []string{"sub"},
		Short:   "Manage a task's checklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	add := &cobra.Command{
		Use:   "add <task> <title...>",
		Short: "Add a subtask",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				title, err := utils.ValidateTitle(strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				if err := a.dispatch(store.AddSubtask{TaskID: t.ID, Title: title}); err != nil {
					return err
				}
				return a.completed("subtask-add", fmt.Sprintf("Added subtask to %s: %s", t.Title, title), a.task(t.ID))
			})
		},
	}

	// subtaskAction resolves <task> <subtask> and dispatches build's request.
	subtaskAction := func(use, short, action string, nargs int, build func(t store.Task, s store.Subtask, args []string) (store.Request, string, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.MinimumNArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
					t, err := a.resolve(args[0])
					if err != nil {
						return err
					}
					s, err := findSubtask(t, args[1])
					if err != nil {
						return err
					}
					req, msg, err := build(t, s, args[2:])
					if err != nil {
						return err
					}
					if err := a.dispatch(req); err != nil {
						return err
					}
					return a.completed(action, msg, a.task(t.ID))
				})
			},
		}
	}

	done := subtaskAction("done <task> <subtask>", "Toggle a subtask", "subtask-toggle", 2,
		func(t store.Task, s store.Subtask, _ []string) (store.Request, string, error) {
			verb := "Completed"
			if s.Completed {
				verb = "Reopened"
			}
			return store.ToggleSubtask{TaskID: t.ID, SubtaskID: s.ID}, fmt.Sprintf("%s subtask: %s", verb, s.Title), nil
		})
	rm := subtaskAction("rm <task> <subtask>", "Delete a subtask", "subtask-delete", 2,
		func(t store.Task, s store.Subtask, _ []string) (store.Request, string, error) {
			return store.DeleteSubtask{TaskID: t.ID, SubtaskID: s.ID}, fmt.Sprintf("Deleted subtask: %s", s.Title), nil
		})
	edit := subtaskAction("edit <task> <subtask> <title...>", "Rename a subtask", "subtask-edit", 3,
		func(t store.Task, s store.Subtask, rest []string) (store.Request, string, error) {
			title, err := utils.ValidateTitle(strings.Join(rest, " "))
			if err != nil {
				return nil, "", err
			}
			return store.EditSubtask{TaskID: t.ID, SubtaskID: s.ID, Title: title}, fmt.Sprintf("Renamed subtask: %s", title), nil
		})

	cmd.AddCommand(add, done, rm, edit)
	return cmd
}

// dependsOnChain reports whether following prerequisites from start reaches
// target.
func dependsOnChain(st store.State, start, target string) bool {
	seen := map[string]bool{}
	for id := start; id != "" && !seen[id]; {
		if id == target {
			return true
		}
		seen[id] = true
		t, ok := st.Task(id)
		if !ok || t.DependsOn == nil {
			return false
		}
		id = t.DependsOn.TaskID
	}
	return false
}

func newDepCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage task dependencies",
		Long:  "A dependent task stays locked until its prerequisite is completed and the optional delay has passed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var delay string
	set := &cobra.Command{
		Use:   "set <task> <prerequisite>",
		Short: "Make a task wait for another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				st := a.store.State()
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				pre, err := a.resolve(args[1])
				if err != nil {
					return err
				}
				if t.ID == pre.ID {
					return fmt.Errorf("a task cannot depend on itself")
				}
				if dependsOnChain(st, pre.ID, t.ID) {
					return fmt.Errorf("circular dependency: %s already waits on %s", pre.Title, t.Title)
				}
				seconds := 0
				if delay != "" {
					d, err := reminder.ParseInterval(delay)
					if err != nil {
						return err
					}
					seconds = int(d / time.Second)
				}
				req := store.SetDependency{ID: t.ID, DependsOn: store.Dependency{TaskID: pre.ID, DelaySeconds: seconds}}
				if err := a.dispatch(req); err != nil {
					return err
				}
				return a.completed("dep-set", fmt.Sprintf("%s now waits for %s", t.Title, pre.Title), a.task(t.ID))
			})
		},
	}
	set.Flags().StringVar(&delay, "delay", "", "Wait this long after the prerequisite completes (15m, 2 hours, 1d)")

	clearCmd := &cobra.Command{
		Use:   "clear <task>",
		Short: "Remove a task's dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				if err := a.dispatch(store.ClearDependency{ID: t.ID}); err != nil {
					return err
				}
				return a.completed("dep-clear", fmt.Sprintf("%s no longer waits on anything", t.Title), a.task(t.ID))
			})
		},
	}

	unlock := &cobra.Command{
		Use:   "unlock <task>",
		Short: "Release a task whose delay is still running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				if err := a.dispatch(store.UnlockTask{ID: t.ID}); err != nil {
					return err
				}
				return a.completed("unlock", fmt.Sprintf("Unlocked task: %s", t.Title), a.task(t.ID))
			})
		},
	}

	cmd.AddCommand(set, clearCmd, unlock)
	return cmd
}

type upcomingJSON struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	At    time.Time `json:"at"`
}

func newRemindCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Manage task reminders",
		Long:  "Reminders are delivered by the daemon as desktop notifications and in the notification log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	set := &cobra.Command{
		Use:   "set <task> <when>",
		Short: "Remind about a task (in 15m, 2 hours, 2026-10-17 09:00)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				loc := a.cfg.location(a.conf)
				at, err := reminder.ParseTime(strings.Join(args[1:], " "), a.now(), loc)
				if err != nil {
					return err
				}
				if err := a.dispatch(store.SetReminder{ID: t.ID, At: &at}); err != nil {
					return err
				}
				return a.completed("remind-set",
					fmt.Sprintf("Reminder for %s at %s", t.Title, at.In(loc).Format("2006-01-02 15:04")), a.task(t.ID))
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <task>",
		Short: "Remove a task's reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				if err := a.dispatch(store.ClearReminder{ID: t.ID}); err != nil {
					return err
				}
				return a.completed("remind-clear", fmt.Sprintf("Cleared reminder for %s", t.Title), a.task(t.ID))
			})
		},
	}

	var within string
	list := &cobra.Command{
		Use:   "list",
		Short: "Show pending reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				var window time.Duration
				if within != "" {
					d, err := reminder.ParseInterval(within)
					if err != nil {
						return err
					}
					window = d
				}
				upcoming := reminder.UpcomingReminders(a.store.State(), a.now(), window)
				out := make([]upcomingJSON, 0, len(upcoming))
				for _, u := range upcoming {
					out = append(out, upcomingJSON{ID: u.Task.ID, Title: u.Task.Title, At: u.At})
				}
				loc := a.cfg.location(a.conf)
				return a.info(out, func(w io.Writer) {
					if len(out) == 0 {
						_, _ = fmt.Fprintln(w, "No pending reminders")
						return
					}
					for _, u := range out {
						_, _ = fmt.Fprintf(w, "%s  %s  (%s)\n", u.At.In(loc).Format("2006-01-02 15:04"), u.Title, shortID(u.ID))
					}
				})
			})
		},
	}
	list.Flags().StringVar(&within, "within", "", "Only reminders due within this interval (24h, 2d)")

	cmd.AddCommand(set, clearCmd, list)
	return cmd
}

func newBulkCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply one change to several tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	bulkAction := func(use, short, action string, build func(a *app, ids []string) (store.Request, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
					tasks, err := a.resolveAll(args)
					if err != nil {
						return err
					}
					ids := taskIDs(tasks)
					req, err := build(a, ids)
					if err != nil {
						return err
					}
					if req == nil {
						_, _ = fmt.Fprintln(a.stdout, "Cancelled")
						return nil
					}
					if err := a.dispatch(req); err != nil {
						return err
					}
					var updated []store.Task
					for _, id := range ids {
						if t := a.task(id); t != nil {
							updated = append(updated, *t)
						}
					}
					return a.completedMany(action, fmt.Sprintf("%s %d task(s)", short, len(ids)), updated)
				})
			},
		}
	}

	rm := bulkAction("rm <task...>", "Deleted", "bulk-delete", func(a *app, ids []string) (store.Request, error) {
		if !a.confirm(fmt.Sprintf("Delete %d task(s)?", len(ids))) {
			return nil, nil
		}
		return store.BulkDelete{IDs: ids}, nil
	})
	done := bulkAction("done <task...>", "Completed", "bulk-complete", func(_ *app, ids []string) (store.Request, error) {
		return store.BulkComplete{IDs: ids, Completed: true}, nil
	})
	undone := bulkAction("undone <task...>", "Reopened", "bulk-reopen", func(_ *app, ids []string) (store.Request, error) {
		return store.BulkComplete{IDs: ids, Completed: false}, nil
	})
	var moveDate string
	move := bulkAction("move <task...>", "Moved", "bulk-move", func(a *app, ids []string) (store.Request, error) {
		date, err := a.parseDate(moveDate)
		if err != nil {
			return nil, err
		}
		return store.BulkMove{IDs: ids, Date: date}, nil
	})
	move.Flags().StringVarP(&moveDate, "date", "d", "", "Target date; empty moves to the bucket")

	cmd.AddCommand(rm, done, undone, move)
	return cmd
}
