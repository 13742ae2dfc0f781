package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a single log query subprocess.
const DefaultCommandTimeout = 60 * time.Second

// Runner executes an external command and returns its stdout.
// Implemented by ExecRunner (production) and fakes in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError carries the stderr of a failed command for diagnostics.
type CommandError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, msg)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec under a per-call timeout.
type ExecRunner struct {
	// Timeout bounds each call. Zero uses DefaultCommandTimeout.
	Timeout time.Duration
}

// Run executes name with args. A timeout surfaces as a CommandError
// wrapping context.DeadlineExceeded.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return stdout.Bytes(), &CommandError{Name: name, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// isNotFound reports whether err means the executable does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// outputContains reports whether a failed command's stderr or error text
// contains substr. Used to recognize "no results" exits.
func outputContains(err error, substr string) bool {
	var ce *CommandError
	if errors.As(err, &ce) && strings.Contains(ce.Stderr, substr) {
		return true
	}
	return strings.Contains(err.Error(), substr)
}
