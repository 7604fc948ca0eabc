package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"daybucket/internal/backoff"
	"daybucket/internal/config"
	"daybucket/internal/credentials"
	"daybucket/internal/daemon"
	"daybucket/internal/markdown"
	"daybucket/internal/store"
	"daybucket/internal/syncbridge"
)

func newExportCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the full state as JSON, or the tasks as a markdown checklist",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				var doc []byte
				switch format {
				case "json":
					var err error
					doc, err = store.EncodeSnapshot(a.store.State())
					if err != nil {
						return err
					}
				case "markdown", "md":
					doc = []byte(strings.TrimRight(markdown.Format(a.store.State().Items), "\n"))
				default:
					return fmt.Errorf("unknown export format %q (use json or markdown)", format)
				}
				if len(args) == 0 || args[0] == "-" {
					_, err := fmt.Fprintln(stdout, string(doc))
					return err
				}
				if err := os.WriteFile(args[0], doc, 0600); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				return a.completed("export", fmt.Sprintf("Exported %d tasks to %s", len(a.store.State().Items), args[0]), nil)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or markdown")
	return cmd
}

func newImportCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var force, asMarkdown bool
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the state with an exported or synced JSON document",
		Long: `Replace the state with a JSON document. Accepted shapes are an array of
tasks, an object with a tasks (or items) array, or an object mapping task ids
to tasks. Categories, templates, analytics, settings and productivity are
replaced only when present.

With --markdown the file is read as a checklist (see export --format markdown)
and its tasks are added to the existing ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				in := cfg.Stdin
				if in == nil {
					in = os.Stdin
				}
				raw, err = io.ReadAll(in)
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read import: %w", err)
			}

			if asMarkdown {
				return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
					tasks, err := markdown.Parse(string(raw), a.now())
					if err != nil {
						return fmt.Errorf("invalid checklist: %w", err)
					}
					if err := a.dispatch(store.BulkAdd{Tasks: tasks}); err != nil {
						return err
					}
					added := a.store.State().Items
					return a.completedMany("import", fmt.Sprintf("Added %d tasks from checklist", len(tasks)),
						added[len(added)-len(tasks):])
				})
			}

			req := store.ReplaceAllFromJSON(raw)
			if req.Payload.Kind == store.PayloadInvalid && !force {
				return errors.New("unrecognised document; pass --force to clear all tasks anyway")
			}
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				n := len(a.store.State().Items)
				if n > 0 && args[0] != "-" && !a.confirm(fmt.Sprintf("Replace %d existing task(s)?", n)) {
					_, _ = fmt.Fprintln(a.stdout, "Cancelled")
					return nil
				}
				if err := a.dispatch(req); err != nil {
					return err
				}
				return a.completed("import", fmt.Sprintf("Imported %d tasks (%s document)",
					len(a.store.State().Items), req.Payload.Kind), nil)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Apply unrecognised documents (clears all tasks)")
	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "Add the tasks of a markdown checklist instead of replacing the state")
	return cmd
}

type syncStatus struct {
	Enabled    bool               `json:"enabled"`
	URL        string             `json:"url,omitempty"`
	Table      string             `json:"table,omitempty"`
	Credential credentials.Source `json:"credential"`
	Daemon     *syncbridge.Status `json:"daemon,omitempty"`
}

func newSyncCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Exchange the state with the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	push := &cobra.Command{
		Use:   "push",
		Short: "Upload the local state, replacing the remote document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				remote, err := a.remote(ctx)
				if err != nil {
					return err
				}
				doc, err := store.EncodeSnapshot(a.store.State())
				if err != nil {
					return err
				}
				if err := backoff.Retry(ctx, backoff.DefaultPolicy(), func(ctx context.Context) error {
					return remote.Push(ctx, doc)
				}); err != nil {
					return fmt.Errorf("push failed: %w", err)
				}
				return a.completed("sync-push", fmt.Sprintf("Pushed %d tasks", len(a.store.State().Items)), nil)
			})
		},
	}

	pull := &cobra.Command{
		Use:   "pull",
		Short: "Replace the local state with the remote document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				remote, err := a.remote(ctx)
				if err != nil {
					return err
				}
				bridge := syncbridge.New(a.store, remote, syncbridge.Config{})
				defer bridge.Close()
				applied, err := bridge.Pull(ctx)
				if err != nil {
					return err
				}
				if !applied {
					return a.completed("sync-pull", "Already up to date", nil)
				}
				return a.completed("sync-pull", fmt.Sprintf("Pulled %d tasks", len(a.store.State().Items)), nil)
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show sync configuration and the daemon's sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			s := syncStatus{Enabled: conf.IsSyncEnabled(), Credential: credentials.SourceNone}
			if s.Enabled {
				s.URL = conf.Sync.SupabaseURL
				s.Table = conf.GetSyncTable()
			}
			if info, err := newCredentialManager(cfg).Get(cmd.Context(), credentials.DefaultAccount); err == nil {
				s.Credential = info.Source
			}
			if daemon.IsRunning(cfg.pidPath(), cfg.socketPath()) {
				if resp, err := daemon.NewClient(cfg.socketPath()).Status(); err == nil && resp.Daemon != nil {
					s.Daemon = resp.Daemon.Sync
				}
			}
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return printInfo(stdout, jsonOutput || conf.OutputFormat == "json", cfg.NoPrompt, s, func(w io.Writer) {
				printSyncStatus(w, s)
			})
		},
	}

	cmd.AddCommand(push, pull, status)
	return cmd
}

func printSyncStatus(w io.Writer, s syncStatus) {
	if !s.Enabled {
		_, _ = fmt.Fprintln(w, "Sync: disabled")
		_, _ = fmt.Fprintf(w, "Enable it in %s under sync:\n", config.GetConfigDir())
	} else {
		_, _ = fmt.Fprintln(w, "Sync: enabled")
		_, _ = fmt.Fprintf(w, "Remote: %s (table %s)\n", s.URL, s.Table)
	}
	_, _ = fmt.Fprintf(w, "Credential: %s\n", s.Credential)
	if s.Daemon == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Daemon breaker: %s (%d failures)\n", s.Daemon.Breaker, s.Daemon.Failures)
	_, _ = fmt.Fprintf(w, "Pushes: %d, ingests: %d, pending: %t\n", s.Daemon.Pushes, s.Daemon.Ingests, s.Daemon.Pending)
	if s.Daemon.LastError != "" {
		_, _ = fmt.Fprintf(w, "Last error: %s\n", s.Daemon.LastError)
	}
}
