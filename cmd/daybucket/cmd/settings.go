package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"daybucket/internal/analytics"
	"daybucket/internal/store"
)

func newSettingsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				s := a.store.State().Settings
				return a.info(s, func(w io.Writer) { printSettings(w, s) })
			})
		},
	}

	var theme string
	var sound, confetti, email, digest bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch store.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("theme") {
				t := strings.ToLower(strings.TrimSpace(theme))
				if t != "light" && t != "dark" && t != "system" {
					return fmt.Errorf("invalid theme %q (valid: light, dark, system)", theme)
				}
				patch.Theme = &t
			}
			if flags.Changed("sound") {
				patch.SoundEnabled = &sound
			}
			if flags.Changed("confetti") {
				patch.ConfettiEnabled = &confetti
			}
			if flags.Changed("email") {
				patch.EmailNotifications = &email
			}
			if flags.Changed("digest") {
				patch.WeeklyDigest = &digest
			}
			if patch == (store.SettingsPatch{}) {
				return errors.New("nothing to change; pass at least one of --theme, --sound, --confetti, --email, --digest")
			}
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				if err := a.dispatch(store.UpdateSettings{Changes: patch}); err != nil {
					return err
				}
				return a.completed("settings", "Settings updated", nil)
			})
		},
	}
	set.Flags().StringVar(&theme, "theme", "", "Theme: light, dark or system")
	set.Flags().BoolVar(&sound, "sound", false, "Play sounds")
	set.Flags().BoolVar(&confetti, "confetti", false, "Celebrate completed days")
	set.Flags().BoolVar(&email, "email", false, "Email notifications")
	set.Flags().BoolVar(&digest, "digest", false, "Weekly digest")

	cmd.AddCommand(show, set)
	return cmd
}

func printSettings(w io.Writer, s store.Settings) {
	_, _ = fmt.Fprintf(w, "Theme: %s\n", s.Theme)
	_, _ = fmt.Fprintf(w, "Sound: %t\n", s.SoundEnabled)
	_, _ = fmt.Fprintf(w, "Confetti: %t\n", s.ConfettiEnabled)
	_, _ = fmt.Fprintf(w, "Email notifications: %t\n", s.EmailNotifications)
	_, _ = fmt.Fprintf(w, "Weekly digest: %t\n", s.WeeklyDigest)
}

func validThresholds(th store.Thresholds) error {
	values := []float64{th.Red, th.Orange, th.Yellow, th.Green}
	for i, v := range values {
		if v < 0 || v > 1 {
			return fmt.Errorf("thresholds must be between 0 and 1, got %g", v)
		}
		if i > 0 && v < values[i-1] {
			return errors.New("thresholds must be ordered red <= orange <= yellow <= green")
		}
	}
	return nil
}

func newGoalCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var red, orange, yellow, green float64
	cmd := &cobra.Command{
		Use:   "goal [n]",
		Short: "Show or set the daily goal and progress thresholds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				p := a.store.State().Productivity
				changed := false
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("invalid goal %q: must be a positive number", args[0])
					}
					if err := a.dispatch(store.SetDailyGoal{Goal: n}); err != nil {
						return err
					}
					p.DailyGoal = n
					changed = true
				}

				th := p.Thresholds
				flags := cmd.Flags()
				for name, dst := range map[string]*float64{"red": &th.Red, "orange": &th.Orange, "yellow": &th.Yellow, "green": &th.Green} {
					if flags.Changed(name) {
						v, _ := flags.GetFloat64(name)
						*dst = v
					}
				}
				if th != p.Thresholds {
					if err := validThresholds(th); err != nil {
						return err
					}
					if err := a.dispatch(store.SetThresholds{Thresholds: th}); err != nil {
						return err
					}
					p.Thresholds = th
					changed = true
				}

				if changed {
					return a.completed("goal", fmt.Sprintf("Daily goal: %d", p.DailyGoal), nil)
				}
				return a.info(p, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Daily goal: %d\n", p.DailyGoal)
					_, _ = fmt.Fprintf(w, "Thresholds: red %.2f, orange %.2f, yellow %.2f, green %.2f\n",
						p.Thresholds.Red, p.Thresholds.Orange, p.Thresholds.Yellow, p.Thresholds.Green)
				})
			})
		},
	}
	cmd.Flags().Float64Var(&red, "red", 0, "Red threshold (0-1)")
	cmd.Flags().Float64Var(&orange, "orange", 0, "Orange threshold (0-1)")
	cmd.Flags().Float64Var(&yellow, "yellow", 0, "Yellow threshold (0-1)")
	cmd.Flags().Float64Var(&green, "green", 0, "Green threshold (0-1)")
	return cmd
}

func newStatsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show progress, streaks, tracked time and the priority matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				day := a.store.Today()
				if date != "" {
					d, err := a.parseDate(date)
					if err != nil {
						return err
					}
					day = d
				}
				summary := analytics.Summarize(a.store.State(), day)
				return a.info(summary, func(w io.Writer) { printSummary(w, summary) })
			})
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to report progress for (default today)")
	return cmd
}

func printSummary(w io.Writer, s analytics.Summary) {
	p := s.Today
	_, _ = fmt.Fprintf(w, "%s: %d/%d done (%.0f%%, %s)", p.Date, p.Completed, p.Total, p.Ratio*100, p.Band)
	if p.Goal > 0 {
		_, _ = fmt.Fprintf(w, ", goal %d/%d", p.Completed, p.Goal)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Streak: %d days (longest %d)\n", s.CurrentStreak, s.LongestStreak)
	_, _ = fmt.Fprintf(w, "Completed: %d total, %.1f per day over the last %d days\n", s.TotalCompleted, s.SevenDayAvg, len(s.LastSevenDays))
	_, _ = fmt.Fprintf(w, "Focus time: %dh%02dm\n", s.TotalMinutes/60, s.TotalMinutes%60)

	if len(s.Categories) > 0 {
		_, _ = fmt.Fprintln(w, "\nCategories:")
		for _, c := range s.Categories {
			_, _ = fmt.Fprintf(w, "  %-16s %d/%d  %dm\n", c.Name, c.Completed, c.Total, c.Minutes)
		}
	}

	_, _ = fmt.Fprintln(w, "\nMatrix:")
	quadrants := []struct {
		name  string
		tasks []store.Task
	}{
		{"Do first", s.Matrix.DoFirst},
		{"Schedule", s.Matrix.Schedule},
		{"Delegate", s.Matrix.Delegate},
		{"Eliminate", s.Matrix.Eliminate},
	}
	for _, q := range quadrants {
		_, _ = fmt.Fprintf(w, "  %s (%d)\n", q.name, len(q.tasks))
		for _, t := range q.tasks {
			_, _ = fmt.Fprintf(w, "    - %s\n", t.Title)
		}
	}
}
