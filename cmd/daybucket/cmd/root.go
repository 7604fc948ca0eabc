// Package cmd implements the daybucket command tree.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	_ "daybucket/backend/file"
	_ "daybucket/backend/sqlite"
	"daybucket/internal/credentials"
	"daybucket/internal/syncbridge"
	"daybucket/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds invocation settings. The zero value reads the user's config
// file; tests override paths and inject fakes.
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string
	Backend      string // storage backend override
	DBPath       string // storage path override

	Now      func() time.Time
	Location *time.Location

	NotificationLogPath string
	NotificationMock    bool // replace desktop notification commands with a no-op

	Keyring credentials.Keyring
	Getenv  func(string) string
	Remote  syncbridge.Remote
	Stdin   io.Reader

	SocketPath string
	PIDPath    string
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	rootCmd := NewDaybucket(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if containsJSONFlag(args) || cfg.OutputFormat == "json" {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewDaybucket creates the root command with injectable IO
func NewDaybucket(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "daybucket",
		Short:   "Plan your days from a bucket of tasks",
		Long:    "daybucket keeps a bucket of undated tasks, rolls them into each day, and tracks what you get done.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
				cfg.NoPrompt = true
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				cfg.Verbose = true
			}
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg.ConfigPath = path
			}
			utils.SetVerboseMode(cfg.Verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to the config file")

	cmd.AddCommand(
		newAddCmd(stdout, cfg),
		newListCmd(stdout, cfg),
		newShowCmd(stdout, cfg),
		newEditCmd(stdout, cfg),
		newRmCmd(stdout, cfg),
		newDoneCmd(stdout, cfg),
		newDateCmd(stdout, cfg),
		newRollCmd(stdout, cfg),
		newCopyCmd(stdout, cfg),
		newDupCmd(stdout, cfg),
		newPomodoroCmd(stdout, cfg),
		newRecurCmd(stdout, cfg),
		newAttachCmd(stdout, cfg),
		newSubtaskCmd(stdout, cfg),
		newDepCmd(stdout, cfg),
		newRemindCmd(stdout, cfg),
		newBulkCmd(stdout, cfg),
		newCategoryCmd(stdout, cfg),
		newTemplateCmd(stdout, cfg),
		newSettingsCmd(stdout, cfg),
		newGoalCmd(stdout, cfg),
		newStatsCmd(stdout, cfg),
		newExportCmd(stdout, cfg),
		newImportCmd(stdout, cfg),
		newSyncCmd(stdout, cfg),
		newCredentialsCmd(stdout, cfg),
		newDaemonCmd(stdout, stderr, cfg),
		newNotificationCmd(stdout, cfg),
	)
	return cmd
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}
	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}
