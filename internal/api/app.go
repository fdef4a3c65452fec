package api

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/looplab/internal/coach"
	"github.com/felixgeelhaar/looplab/internal/config"
	"github.com/felixgeelhaar/looplab/internal/events"
	"github.com/felixgeelhaar/looplab/internal/loop"
	"github.com/felixgeelhaar/looplab/internal/sandbox"
)

// App holds all application dependencies
type App struct {
	Config    *config.Config
	Loops     *loop.Registry
	Runner    *sandbox.Runner
	Coach     *coach.Controller
	Engine    *coach.Engine
	Publisher *events.Publisher // nil when events are disabled

	// StorePing reports budget store health for the readiness probe.
	// Nil for the in-memory store.
	StorePing func(context.Context) error
}

// AppConfig holds configuration for application initialization
type AppConfig struct {
	Config    *config.Config
	Store     coach.BudgetStore
	StorePing func(context.Context) error
	Publisher *events.Publisher

	// Provider overrides the Docker execution provider, used in tests.
	Provider sandbox.ExecProvider
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(ctx context.Context, cfg AppConfig) (*App, error) {
	app := &App{
		Config:    cfg.Config,
		Publisher: cfg.Publisher,
		StorePing: cfg.StorePing,
	}

	// Load loops
	loader := loop.NewLoader(cfg.Config.LoopsPath)
	app.Loops = loop.NewRegistry(loader)
	if err := app.Loops.Load(); err != nil {
		return nil, fmt.Errorf("load loops: %w", err)
	}

	// Execution provider: Docker wrapped in bulkhead + circuit breaker
	provider := cfg.Provider
	if provider == nil {
		docker, err := sandbox.NewDockerProvider(sandbox.DockerConfig{
			Image:    cfg.Config.SandboxImage,
			MemoryMB: int64(cfg.Config.SandboxMemoryMB),
			CPULimit: cfg.Config.SandboxCPULimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create docker provider: %w", err)
		}
		provider = sandbox.NewResilientProvider(docker, sandbox.ResilientConfig{
			MaxConcurrent: cfg.Config.SandboxPoolSize,
		})
	}

	runnerCfg := sandbox.DefaultConfig()
	runnerCfg.Timeout = time.Duration(cfg.Config.SandboxTimeout) * time.Second
	app.Runner = sandbox.NewRunner(app.Loops, provider, runnerCfg)

	// Coaching
	app.Coach = coach.NewController(cfg.Store)
	app.Engine = coach.NewEngine()

	return app, nil
}

// Close cleans up application resources
func (a *App) Close() error {
	if a.Runner != nil {
		return a.Runner.Close()
	}
	return nil
}
