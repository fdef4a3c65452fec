// Package sandbox executes untrusted learner code against a loop's
// hidden tests inside an isolated, resource-bounded environment.
package sandbox

import (
	"context"
	"time"
)

// TimeoutExitCode is reported when the wall-clock limit kills a run.
// Matches the shell convention for timed-out commands.
const TimeoutExitCode = 124

// ExecRequest describes one isolated execution: a workspace directory to
// mount as the only volume, the command to run in it, and a hard
// wall-clock bound.
type ExecRequest struct {
	WorkspaceDir string
	Command      []string
	Timeout      time.Duration
}

// ExecResult captures what the execution produced. A timed-out or
// test-failing run is a valid result, not an error; errors are reserved
// for infrastructure failures.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// ExecProvider is the isolated-execution backend. Implementations must
// guarantee the process tree is dead before Execute returns, including
// on timeout and context cancellation.
type ExecProvider interface {
	Execute(ctx context.Context, req ExecRequest) (*ExecResult, error)
	Close() error
}
