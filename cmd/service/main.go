// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"devdigest/internal/ai"
	"devdigest/internal/api"
	"devdigest/internal/checkpoint"
	"devdigest/internal/config"
	"devdigest/internal/github"
	"devdigest/internal/model"
	"devdigest/internal/publisher"
	"devdigest/internal/storage"
	"devdigest/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	store := storage.NewPostgres(dbpool)
	checkpoints := checkpoint.NewManager(store)
	ghClient := github.NewClient(cfg.GithubToken, logger)
	appSyncer := syncer.NewSyncer(store, ghClient, checkpoints, logger,
		cfg.SyncLookback, config.CheckpointPolicy(cfg.CheckpointPolicy))

	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}
	generator := ai.NewGenerator(completer, logger)
	relay := publisher.NewClient(cfg.RelayURL, cfg.RelayToken, cfg.RelayAuthor, logger)

	router := api.NewRouter(api.Deps{
		Store:       store,
		Fetcher:     ghClient,
		Syncer:      &timeoutSyncer{inner: appSyncer, timeout: cfg.SyncTimeout},
		Generator:   generator,
		Publisher:   relay,
		Checkpoints: checkpoints,
		Logger:      logger,
	})

	// 6. Serve HTTP until the shutdown signal arrives
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received. Exiting.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// timeoutSyncer bounds every sync pass; no outbound call inside the loop
// carries its own deadline.
type timeoutSyncer struct {
	inner   *syncer.Syncer
	timeout time.Duration
}

func (t *timeoutSyncer) Run(ctx context.Context) (model.SyncResult, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.inner.Run(ctx)
}

func newCompleter(cfg *config.Config) (ai.Completer, error) {
	if cfg.AIAPIKey == "" {
		return nil, errors.New("AI_API_KEY is a required configuration field")
	}
	switch cfg.AIProvider {
	case "openai":
		return ai.NewOpenAICompleter(cfg.AIAPIKey, cfg.AIModel), nil
	default:
		return ai.NewAnthropicCompleter(cfg.AIAPIKey, cfg.AIModel), nil
	}
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
