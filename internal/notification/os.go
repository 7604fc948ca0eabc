package notification

import (
	"fmt"
	"os/exec"
	"strings"
)

// osChannel shows desktop notifications through the platform's notifier.
type osChannel struct {
	skip     map[Type]bool
	platform string
	executor CommandExecutor
}

func newOSChannel(cfg OSConfig, platform string, executor CommandExecutor) *osChannel {
	skip := make(map[Type]bool, len(cfg.Skip))
	for _, t := range cfg.Skip {
		skip[t] = true
	}
	return &osChannel{skip: skip, platform: platform, executor: executor}
}

func (c *osChannel) Send(n Notification) error {
	if c.skip[n.Type] && n.Type != TypeTest {
		return nil
	}
	title := n.Title
	if title == "" {
		title = "daybucket"
	}

	switch c.platform {
	case "linux":
		return c.executor.Execute("notify-send", "--app-name=daybucket", title, n.Message)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(n.Message), escapeAppleScript(title))
		return c.executor.Execute("osascript", "-e", script)
	case "windows":
		script := fmt.Sprintf(`
Add-Type -AssemblyName System.Windows.Forms
$n = New-Object System.Windows.Forms.NotifyIcon
$n.Icon = [System.Drawing.SystemIcons]::Information
$n.BalloonTipTitle = "%s"
$n.BalloonTipText = "%s"
$n.Visible = $true
$n.ShowBalloonTip(5000)
`, escapePowerShell(title), escapePowerShell(n.Message))
		return c.executor.Execute("powershell", "-Command", script)
	default:
		return fmt.Errorf("desktop notifications are not supported on %s", c.platform)
	}
}

func (c *osChannel) Close() error { return nil }

// escapeAppleScript escapes backslashes and double quotes.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// escapePowerShell escapes backticks, double quotes and dollar signs.
func escapePowerShell(s string) string {
	s = strings.ReplaceAll(s, "`", "``")
	s = strings.ReplaceAll(s, `"`, "`\"")
	return strings.ReplaceAll(s, "$", "`$")
}

type execCommand struct{}

func (execCommand) Execute(cmd string, args ...string) error {
	return exec.Command(cmd, args...).Run()
}
