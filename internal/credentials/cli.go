package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"daybucket/internal/config"
)

// CLIHandler implements the credentials subcommands.
type CLIHandler struct {
	manager *Manager
	stdin   io.Reader
	stdout  io.Writer
}

// NewCLIHandler returns a handler writing to stdout.
func NewCLIHandler(manager *Manager, stdin io.Reader, stdout io.Writer) *CLIHandler {
	return &CLIHandler{manager: manager, stdin: stdin, stdout: stdout}
}

// Set prompts for a key and stores it.
func (h *CLIHandler) Set(ctx context.Context, acct string) error {
	key, err := PromptKey(h.stdin, h.stdout, acct)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if err := h.manager.Set(ctx, acct, key); err != nil {
		return fmt.Errorf("%w\n\nAlternatively export %s=<key>", err, config.EnvSupabaseKey)
	}
	_, _ = fmt.Fprintln(h.stdout, "API key stored in system keyring")
	return nil
}

// Get reports where the key for acct comes from without printing it.
func (h *CLIHandler) Get(ctx context.Context, acct string, jsonOutput bool) error {
	info, err := h.manager.Get(ctx, acct)
	if err != nil {
		return fmt.Errorf("failed to look up key: %w", err)
	}

	if jsonOutput {
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(h.stdout, string(data))
		return nil
	}

	if !info.Found {
		_, _ = fmt.Fprintf(h.stdout, "No API key found for %s\n", info.Account)
		_, _ = fmt.Fprintf(h.stdout, "Searched the system keyring and %s\n", config.EnvSupabaseKey)
		_, _ = fmt.Fprintf(h.stdout, "\nSuggestion: Run 'daybucket credentials set %s'\n", info.Account)
		return nil
	}
	_, _ = fmt.Fprintf(h.stdout, "Account: %s\n", info.Account)
	_, _ = fmt.Fprintf(h.stdout, "Source: %s\n", info.Source)
	_, _ = fmt.Fprintln(h.stdout, "Key: ******** (hidden)")
	return nil
}

// Delete removes the stored key.
func (h *CLIHandler) Delete(ctx context.Context, acct string) error {
	if err := h.manager.Delete(ctx, acct); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(h.stdout, "API key removed from system keyring")
	return nil
}
