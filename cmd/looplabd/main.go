package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/looplab/internal/api"
	"github.com/felixgeelhaar/looplab/internal/coach"
	"github.com/felixgeelhaar/looplab/internal/config"
	"github.com/felixgeelhaar/looplab/internal/events"
	"github.com/felixgeelhaar/looplab/internal/storage/memory"
	"github.com/felixgeelhaar/looplab/internal/storage/postgres"
	"github.com/felixgeelhaar/looplab/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Local .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storePing, closeStore, err := selectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init budget store: %w", err)
	}
	defer closeStore()

	// Event publishing is optional
	var publisher *events.Publisher
	if cfg.RabbitMQURL != "" {
		conn, err := events.NewConnection(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer conn.Close()
		publisher = events.NewPublisher(conn)
	}

	app, err := api.NewApp(ctx, api.AppConfig{
		Config:    cfg,
		Store:     store,
		StorePing: storePing,
		Publisher: publisher,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer app.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("looplabd starting",
		"port", cfg.Port,
		"debug", cfg.Debug,
		"loops", app.Loops.Count(),
		"events", publisher != nil,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("looplabd stopped")
	return nil
}

// setupLogging installs the default slog handler: colorized console
// output in debug mode, JSON lines otherwise.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if debug {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// selectStore picks the budget store backend: Postgres when a database
// URL is configured, SQLite when a path is set, and the in-memory store
// as a debug-only fallback.
func selectStore(ctx context.Context, cfg *config.Config) (coach.BudgetStore, func(context.Context) error, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := postgres.NewBudgetStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		slog.Info("using postgres budget store")
		return store, pool.Ping, func() { pool.Close() }, nil
	}

	if cfg.SQLitePath != "" {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.EnsureSchema(); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("ensure sqlite schema: %w", err)
		}
		slog.Info("using sqlite budget store", "path", cfg.SQLitePath)
		return sqlite.NewBudgetStore(db), db.PingContext, func() { db.Close() }, nil
	}

	if !cfg.Debug {
		return nil, nil, nil, fmt.Errorf("no budget store configured, set DATABASE_URL or SQLITE_PATH")
	}

	slog.Warn("using in-memory budget store, state does not survive restarts")
	return memory.NewBudgetStore(), nil, func() {}, nil
}
