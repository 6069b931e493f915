package cmd

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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/qcjiangqianchen/bolt.diy/db"
	"github.com/qcjiangqianchen/bolt.diy/internal/analytics"
	"github.com/qcjiangqianchen/bolt.diy/internal/config"
	"github.com/qcjiangqianchen/bolt.diy/internal/deploy"
	"github.com/qcjiangqianchen/bolt.diy/internal/llm"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/web"
)

// Server timeout configuration. The write timeout is long because the
// chat and deploy endpoints hold streaming responses open.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 15 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(*cobra.Command, []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("BOLTD_LOG_JSON") != "",
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	streamer, err := newStreamer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	origin := cfg.Server.PublicOrigin
	if origin == "" {
		origin = "http://" + cfg.Server.Addr
	}

	server, err := web.NewServer(web.ServerConfig{
		Logger:         logger,
		Config:         cfg,
		Deployer:       deploy.New(cfg.Deploy, logger),
		Store:          store,
		Streamer:       streamer,
		CallbackOrigin: origin,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Warn("closing sessions", "error", err)
		}
	}()

	if cfg.Analytics.PostgresURL != "" {
		go analytics.PrunePeriodically(ctx, store, cfg.Analytics.Retention, time.Hour, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Server.Addr,
		"workspace", cfg.WorkspaceDir,
		"provider", cfg.AI.Provider,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// newStore picks the analytics backend: Postgres when a URL is
// configured, otherwise the bounded in-memory store.
func newStore(ctx context.Context, cfg *config.Config, logger log.Logger) (analytics.Store, func(), error) {
	if cfg.Analytics.PostgresURL == "" {
		store := analytics.NewMemoryStore(cfg.Analytics.MaxEvents, cfg.Analytics.Retention, logger)
		return store, func() {}, nil
	}

	if err := db.Migrate(cfg.Analytics.PostgresURL); err != nil {
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.Analytics.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}
	logger.Info("analytics store backed by postgres")
	return analytics.NewPostgresStore(pool, logger), pool.Close, nil
}

func newStreamer(ctx context.Context, cfg *config.Config, logger log.Logger) (llm.Streamer, error) {
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		if cfg.AI.APIKey == "" && os.Getenv("GEMINI_API_KEY") == "" {
			logger.Warn("GEMINI_API_KEY not set, chat is disabled")
			return llm.Disabled{}, nil
		}
		streamer, err := llm.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return streamer, nil
	default:
		logger.Warn("no AI provider configured, chat is disabled")
		return llm.Disabled{}, nil
	}
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
