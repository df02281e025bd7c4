package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/auth"
	"github.com/JunoAX/familytasks-go/internal/config"
	"github.com/JunoAX/familytasks-go/internal/database"
	"github.com/JunoAX/familytasks-go/internal/graph"
	"github.com/JunoAX/familytasks-go/internal/observability"
	"github.com/JunoAX/familytasks-go/internal/repository"
	"github.com/JunoAX/familytasks-go/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var Version = "dev"

// errCycleFound makes verify-graph exit non-zero without printing usage.
var errCycleFound = errors.New("dependency graph contains a cycle")

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errCycleFound) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "familytasks",
		Short:         "Family task API with dependency tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("FAMILYTASKS_CONFIG"), "path to a YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create missing tables and indexes",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "verify-graph",
			Short: "Check the stored dependencies for cycles",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return verifyGraph(cmd.Context(), configPath, cmd)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				cmd.Println(Version)
			},
		},
	)
	return root
}

// setup loads config, installs the default logger and opens the pool.
func setup(ctx context.Context, configPath string) (config.Config, *database.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log))

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, db, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func serve(ctx context.Context, configPath string) error {
	cfg, db, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	gin.SetMode(cfg.Server.Mode)

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing, Version)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	metrics := observability.NewMetrics()
	metrics.RegisterPool(db.Stats)

	deps := server.Deps{
		Store:       repository.New(db),
		Logger:      slog.Default(),
		Metrics:     metrics,
		RequireAuth: cfg.Auth.Enabled,
		DB:          db,
		Version:     Version,
		ServiceName: cfg.Tracing.ServiceName,
		RateLimit:   cfg.RateLimit.RPS,
		RateBurst:   cfg.RateLimit.Burst,
	}
	if cfg.Auth.JWTSecret != "" {
		deps.JWT = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	}

	r, err := server.NewRouter(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	slog.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
	return nil
}

func migrate(ctx context.Context, configPath string) error {
	_, db, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.New(db).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	slog.Info("schema applied")
	return nil
}

func verifyGraph(ctx context.Context, configPath string, cmd *cobra.Command) error {
	_, db, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := graph.NewEngine(repository.New(db))
	cycle, edges, err := engine.Verify(ctx)
	if err != nil {
		return err
	}
	if cycle != nil {
		cmd.Printf("cycle found among %d dependencies: %s\n", edges, apperror.FormatPath(cycle))
		return errCycleFound
	}
	cmd.Printf("ok: %d dependencies, no cycles\n", edges)
	return nil
}
