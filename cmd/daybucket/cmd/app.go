package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"daybucket/backend"
	"daybucket/backend/supabase"
	"daybucket/internal/cli/prompt"
	"daybucket/internal/config"
	"daybucket/internal/credentials"
	"daybucket/internal/daemon"
	"daybucket/internal/notification"
	"daybucket/internal/store"
	"daybucket/internal/syncbridge"
	"daybucket/internal/utils"
)

// app is one loaded invocation: config, local backend and the store.
type app struct {
	cfg    *Config
	conf   *config.Config
	be     backend.StateBackend
	store  *store.Store
	stdout io.Writer
	json   bool
	loaded []byte
	in     io.Reader
	// daemon is set when a running daemon owns the state; changes are
	// committed through it instead of written to the backend.
	daemon *daemon.Client
}

func loadConfig(cfg *Config) (*config.Config, error) {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Backend != "" {
		conf.Storage.Backend = cfg.Backend
	}
	if cfg.DBPath != "" {
		conf.Storage.Path = cfg.DBPath
	}
	conf.ApplyFlags(cfg.NoPrompt, cfg.OutputFormat)
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.NoPrompt = conf.NoPrompt
	return conf, nil
}

func openBackend(conf *config.Config) (backend.StateBackend, error) {
	return backend.Open(conf.GetStorageBackend(), backend.Options{
		Path:      conf.GetStoragePath(),
		Namespace: conf.GetNamespace(),
	})
}

func (c *Config) clock() store.Clock {
	if c.Now != nil {
		return c.Now
	}
	return time.Now
}

func (c *Config) location(conf *config.Config) *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return conf.GetLocation()
}

func (c *Config) pidPath() string {
	if c.PIDPath != "" {
		return c.PIDPath
	}
	return daemon.DefaultPIDPath(config.GetDataDir())
}

func (c *Config) socketPath() string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return daemon.GetSocketPath()
}

// maxCommitAttempts bounds how often a command is rerun when the daemon
// changed the state underneath it.
const maxCommitAttempts = 3

// openApp loads the state and runs the daily rollover. With a daemon
// running, the state and its rollover come from the daemon.
func openApp(cmd *cobra.Command, cfg *Config, stdout io.Writer) (*app, error) {
	conf, err := loadConfig(cfg)
	if err != nil {
		return nil, err
	}
	be, err := openBackend(conf)
	if err != nil {
		return nil, err
	}

	st := store.New(store.WithClock(cfg.clock()), store.WithLocation(cfg.location(conf)))
	var (
		client *daemon.Client
		loaded []byte
	)
	if daemon.IsRunning(cfg.pidPath(), cfg.socketPath()) {
		client = daemon.NewClient(cfg.socketPath())
		loaded, err = loadFromDaemon(st, client)
	} else {
		loaded, err = loadLocal(cmd.Context(), st, be)
	}
	if err != nil {
		_ = be.Close()
		return nil, err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return &app{
		cfg:    cfg,
		conf:   conf,
		be:     be,
		store:  st,
		stdout: stdout,
		json:   jsonOutput || conf.OutputFormat == "json",
		loaded: loaded,
		daemon: client,
	}, nil
}

func loadFromDaemon(st *store.Store, client *daemon.Client) ([]byte, error) {
	doc, err := client.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load state from daemon: %w", err)
	}
	if err := st.Dispatch(store.ReplaceAllFromJSON(doc)); err != nil {
		return nil, err
	}
	return doc, nil
}

func loadLocal(ctx context.Context, st *store.Store, be backend.StateBackend) ([]byte, error) {
	if err := daemon.LoadState(ctx, st, be); err != nil {
		return nil, err
	}
	if _, _, err := daemon.Rollover(ctx, st, be); err != nil {
		return nil, err
	}
	return store.EncodeSnapshot(st.State())
}

// withApp opens the app, runs fn, saves what changed and closes. When the
// daemon changed the state meanwhile, a command that cannot prompt is rerun
// on the fresh state; its output is held back until it commits.
func withApp(cmd *cobra.Command, cfg *Config, stdout io.Writer, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	for attempt := 1; ; attempt++ {
		a, err := openApp(cmd, cfg, stdout)
		if err != nil {
			return err
		}
		rerun := a.daemon != nil && (a.cfg.NoPrompt || a.json)
		var held bytes.Buffer
		if rerun {
			a.stdout = &held
		}

		err = fn(ctx, a)
		if err == nil {
			err = a.save(ctx)
		}
		_ = a.be.Close()

		if errors.Is(err, store.ErrStateChanged) {
			if rerun && attempt < maxCommitAttempts {
				utils.Debugf("State changed by the daemon, rerunning (attempt %d)", attempt+1)
				continue
			}
			return utils.ErrConcurrentChange()
		}
		if rerun {
			_, _ = stdout.Write(held.Bytes())
		}
		return err
	}
}

// save writes the state if it changed: through the daemon when one owns
// it, otherwise to the backend.
func (a *app) save(ctx context.Context) error {
	doc, err := store.EncodeSnapshot(a.store.State())
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if bytes.Equal(doc, a.loaded) {
		return nil
	}
	if a.daemon != nil {
		if err := a.daemon.Commit(a.loaded, doc); err != nil {
			if errors.Is(err, store.ErrStateChanged) {
				return err
			}
			return fmt.Errorf("failed to save state: %w", err)
		}
		a.loaded = doc
		return nil
	}
	if err := a.be.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	a.loaded = doc
	daemon.NotifyIfRunning(a.cfg.pidPath(), a.cfg.socketPath())
	return nil
}

func (a *app) now() time.Time {
	return a.store.Now()
}

func (a *app) parseDate(value string) (string, error) {
	return utils.ParseDateFlag(value, a.now().In(a.cfg.location(a.conf)))
}

func (a *app) credentials() *credentials.Manager {
	return newCredentialManager(a.cfg)
}

func newCredentialManager(cfg *Config) *credentials.Manager {
	var opts []credentials.Option
	if cfg.Keyring != nil {
		opts = append(opts, credentials.WithKeyring(cfg.Keyring))
	}
	if cfg.Getenv != nil {
		opts = append(opts, credentials.WithGetenv(cfg.Getenv))
	}
	return credentials.NewManager(opts...)
}

// remote returns the configured remote store.
func (a *app) remote(ctx context.Context) (syncbridge.Remote, error) {
	return buildRemote(ctx, a.cfg, a.conf)
}

func buildRemote(ctx context.Context, cfg *Config, conf *config.Config) (syncbridge.Remote, error) {
	if cfg.Remote != nil {
		return cfg.Remote, nil
	}
	if !conf.IsSyncEnabled() {
		return nil, utils.ErrSyncNotConfigured()
	}
	info, err := newCredentialManager(cfg).Get(ctx, credentials.DefaultAccount)
	if err != nil {
		return nil, err
	}
	if !info.Found {
		return nil, utils.ErrCredentialsNotFound(credentials.DefaultAccount)
	}
	remote, err := supabase.New(supabase.Config{
		URL:         conf.Sync.SupabaseURL,
		Key:         info.Key,
		Table:       conf.GetSyncTable(),
		UserID:      conf.Sync.UserID,
		AccessToken: conf.Sync.AccessToken,
	})
	if err != nil {
		return nil, err
	}
	return remote, nil
}

func newNotifier(cfg *Config, conf *config.Config) *notification.Manager {
	logPath := cfg.NotificationLogPath
	if logPath == "" {
		logPath = conf.GetNotificationLogPath()
	}
	var opts []notification.Option
	if cfg.NotificationMock {
		opts = append(opts, notification.WithCommandExecutor(
			notification.ExecutorFunc(func(string, ...string) error { return nil })))
	}
	if cfg.Now != nil {
		opts = append(opts, notification.WithClock(cfg.Now))
	}
	return notification.NewManager(notification.Config{
		OS:  notification.OSConfig{Enabled: conf.IsOSNotificationEnabled()},
		Log: notification.LogConfig{Enabled: conf.IsLogNotificationEnabled(), Path: logPath},
	}, opts...)
}

// findTask resolves ref to one task: exact id, unique id prefix, exact
// title (case-insensitive), then unique title substring.
func findTask(st store.State, ref string) (store.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return store.Task{}, utils.ErrTaskNotFound(ref)
	}
	if t, ok := st.Task(ref); ok {
		return t, nil
	}

	lower := strings.ToLower(ref)
	matchers := []func(store.Task) bool{
		func(t store.Task) bool { return len(ref) >= 4 && strings.HasPrefix(t.ID, ref) },
		func(t store.Task) bool { return strings.EqualFold(t.Title, ref) },
		func(t store.Task) bool { return strings.Contains(strings.ToLower(t.Title), lower) },
	}
	for _, match := range matchers {
		var found []store.Task
		for _, t := range st.Items {
			if match(t) {
				found = append(found, t)
			}
		}
		switch len(found) {
		case 0:
			continue
		case 1:
			return found[0], nil
		default:
			return store.Task{}, &ambiguousError{ref: ref, matches: found}
		}
	}
	return store.Task{}, utils.ErrTaskNotFound(ref)
}

// ambiguousError is returned when a reference matches more than one task.
type ambiguousError struct {
	ref     string
	matches []store.Task
}

func (e *ambiguousError) Error() string {
	return fmt.Sprintf("multiple tasks match '%s' - please be more specific", e.ref)
}

// resolve finds a task by reference. An ambiguous reference is offered
// as a selection list unless prompts are disabled.
func (a *app) resolve(ref string) (store.Task, error) {
	t, err := findTask(a.store.State(), ref)
	var amb *ambiguousError
	if !errors.As(err, &amb) || a.cfg.NoPrompt || a.json {
		return t, err
	}
	selector := &prompt.TaskSelector{
		Tasks:  amb.matches,
		Prompt: fmt.Sprintf("Multiple tasks match '%s':", ref),
		Reader: a.stdin(),
		Writer: a.stdout,
	}
	picked, err := selector.Run()
	if err != nil {
		return store.Task{}, err
	}
	return *picked, nil
}

func (a *app) resolveAll(refs []string) ([]store.Task, error) {
	tasks := make([]store.Task, 0, len(refs))
	for _, ref := range refs {
		t, err := a.resolve(ref)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// stdin is shared by every prompt of one invocation.
func (a *app) stdin() io.Reader {
	if a.in == nil {
		in := a.cfg.Stdin
		if in == nil {
			in = os.Stdin
		}
		a.in = &lineReader{r: bufio.NewReader(in)}
	}
	return a.in
}

// lineReader hands out at most one line per Read so that each prompt's
// scanner leaves the following lines for the next prompt.
type lineReader struct {
	r       *bufio.Reader
	pending []byte
}

func (l *lineReader) Read(p []byte) (int, error) {
	if len(l.pending) == 0 {
		line, err := l.r.ReadBytes('\n')
		if len(line) == 0 {
			return 0, err
		}
		l.pending = line
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// confirm asks before a destructive change; no-prompt and JSON modes
// answer yes.
func (a *app) confirm(question string) bool {
	return prompt.Confirm(a.stdin(), a.stdout, a.cfg.NoPrompt || a.json, question)
}

func taskIDs(tasks []store.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// findSubtask resolves ref by id, 1-based position or title.
func findSubtask(t store.Task, ref string) (store.Subtask, error) {
	for _, s := range t.Subtasks {
		if s.ID == ref {
			return s, nil
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(t.Subtasks) {
		return t.Subtasks[n-1], nil
	}
	for _, s := range t.Subtasks {
		if strings.EqualFold(s.Title, ref) {
			return s, nil
		}
	}
	return store.Subtask{}, utils.ErrSubtaskNotFound(ref)
}

// dispatch applies req and maps store errors to user-facing ones.
func (a *app) dispatch(req store.Request) error {
	err := a.store.Dispatch(req)
	if errors.Is(err, store.ErrTaskLocked) {
		if id := lockedID(req); id != "" {
			if t, ok := a.store.Task(id); ok {
				until := ""
				if t.AvailableAt != nil {
					until = t.AvailableAt.In(a.cfg.location(a.conf)).Format("2006-01-02 15:04")
				}
				return utils.ErrTaskLocked(t.Title, until)
			}
		}
	}
	return err
}

func lockedID(req store.Request) string {
	switch r := req.(type) {
	case store.ToggleComplete:
		return r.ID
	case store.ToggleSubtask:
		return r.TaskID
	}
	return ""
}

// JSON output structures
type actionResponse struct {
	Action string       `json:"action"`
	Task   *store.Task  `json:"task,omitempty"`
	Tasks  []store.Task `json:"tasks,omitempty"`
	Result string       `json:"result"`
}

type infoResponse struct {
	Data   any    `json:"data"`
	Result string `json:"result"`
}

func (a *app) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.stdout, string(data))
	return nil
}

// completed reports a state change on one task.
func (a *app) completed(action, message string, task *store.Task) error {
	if a.json {
		return a.writeJSON(actionResponse{Action: action, Task: task, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintln(a.stdout, message)
	if a.cfg.NoPrompt {
		_, _ = fmt.Fprintln(a.stdout, ResultActionCompleted)
	}
	return nil
}

// completedMany reports a state change on several tasks.
func (a *app) completedMany(action, message string, tasks []store.Task) error {
	if a.json {
		if tasks == nil {
			tasks = []store.Task{}
		}
		return a.writeJSON(actionResponse{Action: action, Tasks: tasks, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintln(a.stdout, message)
	if a.cfg.NoPrompt {
		_, _ = fmt.Fprintln(a.stdout, ResultActionCompleted)
	}
	return nil
}

// info prints read-only output: text through render, or data as JSON.
func (a *app) info(data any, render func(w io.Writer)) error {
	return printInfo(a.stdout, a.json, a.cfg.NoPrompt, data, render)
}

func printInfo(w io.Writer, jsonOutput, noPrompt bool, data any, render func(w io.Writer)) error {
	if jsonOutput {
		out, err := json.Marshal(infoResponse{Data: data, Result: ResultInfoOnly})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, string(out))
		return nil
	}
	render(w)
	if noPrompt {
		_, _ = fmt.Fprintln(w, ResultInfoOnly)
	}
	return nil
}

// lastTask returns the most recently added task.
func (a *app) lastTask() *store.Task {
	st := a.store.State()
	if len(st.Items) == 0 {
		return nil
	}
	t := st.Items[len(st.Items)-1]
	return &t
}

func (a *app) task(id string) *store.Task {
	t, ok := a.store.Task(id)
	if !ok {
		return nil
	}
	return &t
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTask renders one line for a task.
func formatTask(t store.Task, now time.Time, loc *time.Location) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	var extras []string
	if t.Priority == store.PriorityHigh {
		extras = append(extras, "!high")
	} else if t.Priority == store.PriorityLow {
		extras = append(extras, "low")
	}
	if t.Category != "" {
		extras = append(extras, "@"+t.Category)
	}
	for _, tag := range t.Tags {
		extras = append(extras, "#"+tag)
	}
	if n := len(t.Subtasks); n > 0 {
		done := 0
		for _, s := range t.Subtasks {
			if s.Completed {
				done++
			}
		}
		extras = append(extras, fmt.Sprintf("%d/%d", done, n))
	}
	if t.Recurring != nil {
		extras = append(extras, "↻ "+string(t.Recurring.Frequency))
	}
	if t.IsLocked(now) {
		if t.AvailableAt != nil {
			extras = append(extras, "locked until "+t.AvailableAt.In(loc).Format("15:04 Jan 2"))
		} else {
			extras = append(extras, "locked")
		}
	}
	if t.ReminderAt != nil {
		extras = append(extras, "⏰ "+t.ReminderAt.In(loc).Format("15:04 Jan 2"))
	}

	line := fmt.Sprintf("%s %s  (%s)", box, t.Title, shortID(t.ID))
	if len(extras) > 0 {
		line += "  " + strings.Join(extras, " ")
	}
	return line
}
