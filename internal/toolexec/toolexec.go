// Package toolexec runs external build tools synchronously and captures their
// output as a Result, so callers inspect exit codes instead of relying on
// error propagation alone.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command describes one external tool invocation.
type Command struct {
	Path string   // executable, resolved through PATH when not absolute
	Args []string // arguments, not including Path
	Dir  string   // working directory; empty means the current directory
	Env  []string // extra KEY=VALUE pairs appended to the parent environment
}

// String renders the command line the way a user would type it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// Result is the captured outcome of a finished (or failed-to-start) invocation.
type Result struct {
	Command  string
	Dir      string
	ExitCode int // -1 when the process never started or was killed
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Success reports whether the tool exited with status zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Runner executes a Command to completion.
//
// Run returns a non-nil Result whenever the command was attempted. The error is
// non-nil only when the process could not be started or did not exit normally
// (timeout, cancellation); a non-zero exit status is reported through
// Result.ExitCode alone.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// WaitDelay is how long Run waits for a cancelled tool's output pipes to
// close before abandoning them.
const WaitDelay = time.Second

// ExecRunner runs commands with os/exec, bounding each one with Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates a runner with the given per-invocation timeout.
// A zero timeout disables the bound.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	setProcessGroup(cmd)
	cmd.WaitDelay = WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Command:  c.String(),
		Dir:      c.Dir,
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		return res, fmt.Errorf("%s: %w", c.Path, ctxErr)
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}
	return res, nil
}

// ToolExists reports whether path names an existing regular file.
func ToolExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
