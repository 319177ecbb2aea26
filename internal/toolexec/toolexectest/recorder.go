// Package toolexectest provides a recording toolexec.Runner for tests.
package toolexectest

import (
	"context"
	"sync"

	"github.com/alpacaproxy/proxy-release/internal/toolexec"
)

// Handler decides the outcome of one recorded invocation.
type Handler func(cmd toolexec.Command) (*toolexec.Result, error)

// Recorder is a toolexec.Runner that records every command it is asked to run
// and delegates the outcome to Handler. A nil Handler succeeds with exit code 0.
type Recorder struct {
	Handler Handler

	mu       sync.Mutex
	commands []toolexec.Command
}

// Run implements toolexec.Runner.
func (r *Recorder) Run(_ context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.Handler == nil {
		return Succeed(cmd), nil
	}
	return r.Handler(cmd)
}

// Commands returns a copy of the recorded invocations in order.
func (r *Recorder) Commands() []toolexec.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]toolexec.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Count returns how many invocations were recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

// Succeed builds a zero-exit Result for cmd.
func Succeed(cmd toolexec.Command) *toolexec.Result {
	return &toolexec.Result{Command: cmd.String(), Dir: cmd.Dir}
}

// Fail builds a Result for cmd with the given exit code and captured output.
func Fail(cmd toolexec.Command, code int, stdout, stderr string) *toolexec.Result {
	return &toolexec.Result{
		Command:  cmd.String(),
		Dir:      cmd.Dir,
		ExitCode: code,
		Stdout:   stdout,
		Stderr:   stderr,
	}
}
