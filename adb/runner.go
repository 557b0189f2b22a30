package adb

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// DefaultSearchPath is used when no search path is configured
	DefaultSearchPath = "/usr/local/bin:/usr/bin:/bin:/opt/homebrew/bin"

	// DefaultCommandTimeout bounds a single invocation
	DefaultCommandTimeout = 10 * time.Second

	maxStderrBytes = 4096
	waitDelay      = 2 * time.Second
)

// Invocation is one external command to run
type Invocation struct {
	Name    string
	Args    []string
	Env     map[string]string
	Timeout time.Duration // zero means the runner default, negative means none
}

// Result is what a finished process left behind
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes external commands and captures their output
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// Executor creates exec.Cmd instances so tests can substitute command creation
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// OSExecutor builds commands with os/exec
type OSExecutor struct{}

func (OSExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// ExecRunner resolves executables against a fixed search path instead of the
// ambient PATH and runs them with an explicit environment.
type ExecRunner struct {
	searchPath     []string
	defaultTimeout time.Duration
	executor       Executor
	logger         zerolog.Logger
}

// RunnerOption customizes an ExecRunner
type RunnerOption func(*ExecRunner)

func WithExecutor(e Executor) RunnerOption {
	return func(r *ExecRunner) { r.executor = e }
}

func WithDefaultTimeout(d time.Duration) RunnerOption {
	return func(r *ExecRunner) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) RunnerOption {
	return func(r *ExecRunner) { r.logger = l }
}

// NewExecRunner creates a runner that searches the given list of directories
// (os.PathListSeparator separated).
func NewExecRunner(searchPath string, opts ...RunnerOption) *ExecRunner {
	if searchPath == "" {
		searchPath = DefaultSearchPath
	}
	r := &ExecRunner{
		searchPath:     filepath.SplitList(searchPath),
		defaultTimeout: DefaultCommandTimeout,
		executor:       OSExecutor{},
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SearchPath returns the directories executables are resolved in
func (r *ExecRunner) SearchPath() string {
	return strings.Join(r.searchPath, string(os.PathListSeparator))
}

// Resolve finds the executable for name. Names containing a path separator
// are used as given.
func (r *ExecRunner) Resolve(name string) (string, error) {
	if name == "" {
		return "", &ExecError{Kind: ErrKindNotFound, Command: name, Cause: errors.New("empty command name")}
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", &ExecError{Kind: ErrKindNotFound, Command: name, Cause: err}
		}
		return path, nil
	}
	for _, dir := range r.searchPath {
		if dir == "" {
			continue
		}
		if path, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
			return path, nil
		}
	}
	return "", &ExecError{
		Kind:    ErrKindNotFound,
		Command: name,
		Cause:   errors.New("executable not found in " + r.SearchPath()),
	}
}

// Run starts the command, waits for it to exit and returns its stdout.
// A non-zero exit returns both the Result and an ExecError.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	path, err := r.Resolve(inv.Name)
	if err != nil {
		if execErr, ok := err.(*ExecError); ok {
			execErr.Args = inv.Args
		}
		return Result{}, err
	}

	runCtx, cancel := r.withTimeout(ctx, inv.Timeout)
	defer cancel()

	cmd := r.executor.CommandContext(runCtx, path, inv.Args...) //nolint:gosec // resolved against the fixed search path
	cmd.Env = r.environ(inv.Env)
	cmd.WaitDelay = waitDelay

	var stdout bytes.Buffer
	stderr := &cappedBuffer{limit: maxStderrBytes}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	newErr := func(kind ErrorKind, cause error) *ExecError {
		return &ExecError{
			Kind:    kind,
			Command: inv.Name,
			Args:    inv.Args,
			Stderr:  strings.TrimSpace(stderr.String()),
			Cause:   cause,
		}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if kind, cause, ok := contextFailure(ctx, runCtx); ok {
			return Result{}, newErr(kind, cause)
		}
		return Result{}, newErr(ErrKindSpawn, err)
	}
	waitErr := cmd.Wait()

	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	r.logger.Debug().
		Str("command", inv.Name).
		Strs("args", inv.Args).
		Int("exit_code", res.ExitCode).
		Int("stdout_bytes", len(res.Stdout)).
		Dur("duration", res.Duration).
		Msg("Command finished")

	if kind, cause, ok := contextFailure(ctx, runCtx); ok {
		return Result{}, newErr(kind, cause)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			execErr := newErr(ErrKindExit, waitErr)
			execErr.ExitCode = exitErr.ExitCode()
			return res, execErr
		}
		return Result{}, newErr(ErrKindSpawn, waitErr)
	}

	if !utf8.Valid(res.Stdout) {
		return Result{}, newErr(ErrKindDecode, errors.New("stdout is not valid UTF-8"))
	}
	return res, nil
}

// contextFailure reports whether the caller's context or the invocation
// timeout ended the command.
func contextFailure(ctx, runCtx context.Context) (ErrorKind, error, bool) {
	switch {
	case ctx.Err() != nil:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrKindTimeout, ctx.Err(), true
		}
		return ErrKindCanceled, ctx.Err(), true
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return ErrKindTimeout, runCtx.Err(), true
	}
	return "", nil, false
}

func (r *ExecRunner) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	switch {
	case timeout < 0:
		return context.WithCancel(ctx)
	case timeout == 0:
		timeout = r.defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// environ builds the child environment from the explicit mapping only; PATH
// always points at the runner's search path.
func (r *ExecRunner) environ(env map[string]string) []string {
	out := make([]string, 0, len(env)+1)
	out = append(out, "PATH="+r.SearchPath())
	keys := make([]string, 0, len(env))
	for k := range env {
		if k == "PATH" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// cappedBuffer keeps the first limit bytes written and discards the rest
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	return c.buf.String()
}
