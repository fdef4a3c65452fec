package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/felixgeelhaar/looplab/internal/domain"
)

// LoopSource resolves a loop id to its metadata and hidden test source
type LoopSource interface {
	Get(id string) (*domain.Loop, error)
}

// Config holds runner configuration
type Config struct {
	Timeout     time.Duration // wall-clock bound per run
	TestCommand []string      // command executed inside the sandbox
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{
		Timeout:     8 * time.Second,
		TestCommand: []string{"vitest", "run"},
	}
}

// Runner is the sandboxed grading pipeline: workspace acquisition,
// artifact materialization, bounded isolated execution, report capture,
// unconditional cleanup.
type Runner struct {
	loops    LoopSource
	provider ExecProvider
	cfg      Config
}

// NewRunner creates a runner over a loop source and an execution provider
func NewRunner(loops LoopSource, provider ExecProvider, cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if len(cfg.TestCommand) == 0 {
		cfg.TestCommand = DefaultConfig().TestCommand
	}
	return &Runner{loops: loops, provider: provider, cfg: cfg}
}

// Run grades one submission. It fails with domain.ErrLoopNotFound when
// the loop's test source cannot be located, domain.ErrInvalidInput for
// empty or non-textual source, and domain.ErrSandboxUnavailable for
// infrastructure failures. A timed-out or failing run is a valid result.
func (r *Runner) Run(ctx context.Context, loopID, sourceCode string) (*domain.SandboxResult, error) {
	if err := validateSource(sourceCode); err != nil {
		return nil, err
	}

	loop, err := r.loops.Get(loopID)
	if err != nil {
		return nil, fmt.Errorf("loop %q: %w", loopID, domain.ErrLoopNotFound)
	}

	ws, err := NewWorkspace()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSandboxUnavailable, err)
	}
	defer ws.Release()

	if err := ws.Materialize(loop, sourceCode); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSandboxUnavailable, err)
	}

	exec, err := r.provider.Execute(ctx, ExecRequest{
		WorkspaceDir: ws.Dir(),
		Command:      r.cfg.TestCommand,
		Timeout:      r.cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSandboxUnavailable, err)
	}

	result := &domain.SandboxResult{
		ExitCode: exec.ExitCode,
		Stdout:   exec.Stdout,
		Stderr:   exec.Stderr,
		Duration: exec.Duration,
	}
	if exec.TimedOut {
		result.Stderr += timeoutMarker(r.cfg.Timeout)
	}

	result.RawReport = ws.ReadReport()

	slog.Info("sandbox run finished",
		"loop_id", loopID,
		"exit_code", result.ExitCode,
		"timed_out", exec.TimedOut,
		"has_report", result.RawReport != nil,
		"duration_ms", exec.Duration.Milliseconds(),
	)

	return result, nil
}

// Close releases the execution provider
func (r *Runner) Close() error {
	return r.provider.Close()
}

func timeoutMarker(timeout time.Duration) string {
	return fmt.Sprintf("\n[looplab] run exceeded the %s wall-clock limit and was terminated\n", timeout)
}

func validateSource(sourceCode string) error {
	if strings.TrimSpace(sourceCode) == "" {
		return fmt.Errorf("%w: source code is empty", domain.ErrInvalidInput)
	}
	if !utf8.ValidString(sourceCode) || strings.ContainsRune(sourceCode, 0) {
		return fmt.Errorf("%w: source code is not textual", domain.ErrInvalidInput)
	}
	return nil
}
