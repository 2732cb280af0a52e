package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a command when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Name     string
	Args     []string
	ExitCode int
	Output   string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("command failed: %s %s (exit code %d): %s",
		e.Name, strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Output))
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	timeout time.Duration
	dir     string
	env     []string
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *ExecRunner) {
		r.timeout = timeout
	}
}

// WithDir sets the working directory of spawned processes.
func WithDir(dir string) Option {
	return func(r *ExecRunner) {
		r.dir = dir
	}
}

// WithEnv appends KEY=value pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *ExecRunner) {
		r.env = append(r.env, env...)
	}
}

// NewExecRunner creates a runner. Without options commands run in the
// current directory with DefaultTimeout.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes name with args. If ctx has no deadline the runner's timeout
// applies.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 - callers pass fixed binaries
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Environ(), r.env...)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(output), &ExitError{
				Name:     name,
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Output:   string(output),
			}
		}
		return string(output), fmt.Errorf("command failed: %s %s: %w (output: %s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}

	return string(output), nil
}
