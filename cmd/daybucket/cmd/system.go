package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"daybucket/internal/credentials"
	"daybucket/internal/daemon"
	"daybucket/internal/notification"
	"daybucket/internal/syncbridge"
	"daybucket/internal/utils"
)

func newDaemonCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the background process that fires reminders, rolls over and syncs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newDaemonRunCmd(stdout, stderr, cfg))
	cmd.AddCommand(newDaemonStartCmd(stdout, cfg))
	cmd.AddCommand(newDaemonStatusCmd(stdout, cfg))
	cmd.AddCommand(newDaemonStopCmd(stdout, cfg))
	return cmd
}

func newDaemonRunCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			if daemon.IsRunning(cfg.pidPath(), cfg.socketPath()) {
				return errors.New("daemon is already running")
			}

			bl, err := utils.NewBackgroundLoggerWithEnabled(conf.IsBackgroundLoggingEnabled())
			if err != nil {
				utils.Warnf("Background log unavailable: %v", err)
			}
			if bl.IsEnabled() {
				utils.GetLogger().SetOutput(io.MultiWriter(stderr, bl.Writer()))
				defer func() {
					utils.GetLogger().SetOutput(stderr)
					bl.Close()
				}()
			}

			be, err := openBackend(conf)
			if err != nil {
				return err
			}
			notifier := newNotifier(cfg, conf)
			defer func() { _ = notifier.Close() }()

			dcfg := daemon.Config{
				Backend:          be,
				Notifier:         notifier,
				RemindersEnabled: conf.IsReminderEnabled(),
				Watch:            true,
				Location:         cfg.location(conf),
				Clock:            cfg.clock(),
				SocketPath:       cfg.socketPath(),
				PIDPath:          cfg.pidPath(),
				Sync: syncbridge.Config{
					Debounce:     conf.GetSyncDebounce(),
					PollInterval: conf.GetPollInterval(),
				},
			}
			if cfg.Remote != nil || conf.IsSyncEnabled() {
				remote, err := buildRemote(cmd.Context(), cfg, conf)
				if err != nil {
					_ = be.Close()
					return err
				}
				dcfg.Remote = remote
			}

			d, err := daemon.New(dcfg)
			if err != nil {
				_ = be.Close()
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Daemon running (pid %d)\n", os.Getpid())
			if bl.IsEnabled() {
				_, _ = fmt.Fprintf(stdout, "Logging to %s\n", bl.GetLogPath())
			}
			err = d.Run(cmd.Context())
			if cerr := be.Close(); err == nil {
				err = cerr
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newDaemonStartCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath, socketPath := cfg.pidPath(), cfg.socketPath()
			if daemon.IsRunning(pidPath, socketPath) {
				return printDaemonMessage(stdout, cmd, cfg, "Daemon is already running")
			}
			forkArgs := []string{"daemon", "run"}
			if cfg.ConfigPath != "" {
				forkArgs = append(forkArgs, "--config", cfg.ConfigPath)
			}
			if err := daemon.Fork("", forkArgs); err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) {
				if daemon.IsRunning(pidPath, socketPath) {
					return printDaemonMessage(stdout, cmd, cfg, "Daemon started")
				}
				time.Sleep(100 * time.Millisecond)
			}
			return errors.New("daemon did not come up; run 'daybucket daemon run' to see why")
		},
	}
}

func newDaemonStatusCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running and what it is doing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			status := &daemon.Status{}
			if daemon.IsRunning(cfg.pidPath(), cfg.socketPath()) {
				resp, err := daemon.NewClient(cfg.socketPath()).Status()
				if err != nil {
					return err
				}
				if resp.Daemon != nil {
					status = resp.Daemon
				}
				status.Running = true
			}
			return printInfo(stdout, jsonOutput || cfg.OutputFormat == "json", cfg.NoPrompt, status, func(w io.Writer) {
				printDaemonStatus(w, status)
			})
		},
	}
}

func printDaemonStatus(w io.Writer, s *daemon.Status) {
	if !s.Running {
		_, _ = fmt.Fprintln(w, "Daemon is not running")
		return
	}
	_, _ = fmt.Fprintf(w, "Daemon is running (pid %d)\n", s.PID)
	_, _ = fmt.Fprintf(w, "Started: %s\n", s.StartedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Today: %s (last rollover %s)\n", s.Today, s.LastRollDate)
	_, _ = fmt.Fprintf(w, "Tasks: %d, saves: %d, reloads: %d\n", s.Tasks, s.Saves, s.Reloads)
	_, _ = fmt.Fprintf(w, "Timers: %d", s.Timers)
	if s.NextTimer != "" {
		_, _ = fmt.Fprintf(w, " (next %s)", s.NextTimer)
	}
	_, _ = fmt.Fprintln(w)
	if s.Sync != nil {
		_, _ = fmt.Fprintf(w, "Sync: breaker %s, %d pushes, %d ingests\n", s.Sync.Breaker, s.Sync.Pushes, s.Sync.Ingests)
	}
	if s.LastError != "" {
		_, _ = fmt.Fprintf(w, "Last error: %s\n", s.LastError)
	}
}

func newDaemonStopCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !daemon.IsRunning(cfg.pidPath(), cfg.socketPath()) {
				return printDaemonMessage(stdout, cmd, cfg, "Daemon is not running")
			}
			if err := daemon.NewClient(cfg.socketPath()).Stop(); err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			return printDaemonMessage(stdout, cmd, cfg, "Daemon stopped")
		},
	}
}

func printDaemonMessage(stdout io.Writer, cmd *cobra.Command, cfg *Config, msg string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput || cfg.OutputFormat == "json" {
		return printInfo(stdout, true, cfg.NoPrompt, map[string]string{"message": msg}, nil)
	}
	_, _ = fmt.Fprintln(stdout, msg)
	if cfg.NoPrompt {
		_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
	}
	return nil
}

func newCredentialsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the remote store API key",
		Long:  "Store the remote store API key in the system keyring. DAYBUCKET_SUPABASE_KEY is used when no key is stored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	handler := func() *credentials.CLIHandler {
		in := cfg.Stdin
		if in == nil {
			in = os.Stdin
		}
		return credentials.NewCLIHandler(newCredentialManager(cfg), in, stdout)
	}
	account := func(args []string) string {
		if len(args) == 1 {
			return args[0]
		}
		return credentials.DefaultAccount
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [account]",
		Short: "Store an API key in the system keyring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handler().Set(cmd.Context(), account(args))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get [account]",
		Short: "Show where the API key comes from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return handler().Get(cmd.Context(), account(args), jsonOutput || cfg.OutputFormat == "json")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete [account]",
		Short: "Remove the API key from the system keyring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handler().Delete(cmd.Context(), account(args))
		},
	})
	return cmd
}

func newNotificationCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notification",
		Short: "Test notifications and read the notification log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	test := &cobra.Command{
		Use:   "test",
		Short: "Send a test notification through every enabled channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			n := newNotifier(cfg, conf)
			defer func() { _ = n.Close() }()
			if n.ChannelCount() == 0 {
				return errors.New("no notification channels enabled")
			}
			if err := n.Notify(cmd.Context(), notification.Notification{
				Type:    notification.TypeTest,
				Title:   "daybucket",
				Message: "Test notification",
			}); err != nil {
				return err
			}
			return printDaemonMessage(stdout, cmd, cfg, fmt.Sprintf("Test notification sent to %d channel(s)", n.ChannelCount()))
		},
	}

	var clearLog bool
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show the notification log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			path := cfg.NotificationLogPath
			if path == "" {
				path = conf.GetNotificationLogPath()
			}
			if clearLog {
				if err := notification.ClearLog(path); err != nil {
					return err
				}
				return printDaemonMessage(stdout, cmd, cfg, "Notification log cleared")
			}
			lines, err := notification.ReadLog(path)
			if err != nil {
				return err
			}
			if lines == nil {
				lines = []string{}
			}
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return printInfo(stdout, jsonOutput || conf.OutputFormat == "json", cfg.NoPrompt, lines, func(w io.Writer) {
				if len(lines) == 0 {
					_, _ = fmt.Fprintln(w, "No notifications logged")
					return
				}
				for _, l := range lines {
					_, _ = fmt.Fprintln(w, l)
				}
			})
		},
	}
	logCmd.Flags().BoolVar(&clearLog, "clear", false, "Clear the log")

	cmd.AddCommand(test, logCmd)
	return cmd
}
