// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

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
	"time"

	"github.com/kaminskia1/excel-autograder/internal/config"
	"github.com/kaminskia1/excel-autograder/internal/database"
	"github.com/kaminskia1/excel-autograder/internal/handlers"
	"github.com/kaminskia1/excel-autograder/internal/i18n"
	"github.com/kaminskia1/excel-autograder/internal/jobs"
	"github.com/kaminskia1/excel-autograder/internal/middleware"
	"github.com/kaminskia1/excel-autograder/internal/repository"
	"github.com/kaminskia1/excel-autograder/internal/services/auth"
	"github.com/kaminskia1/excel-autograder/internal/services/email"
	"github.com/kaminskia1/excel-autograder/internal/services/ratelimit"
	"github.com/kaminskia1/excel-autograder/internal/services/session"
	"github.com/kaminskia1/excel-autograder/internal/services/verification"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// App bundles the HTTP server and the services behind it.
type App struct {
	Echo      *echo.Echo
	Verifier  *verification.Manager
	Scheduler *jobs.Scheduler

	db      *sqlx.DB
	tracker *ratelimit.RedisTracker
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"smtp", cfg.SMTP.Enabled(),
	)

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Scheduler.ScheduleCleanup(cfg.Verification.CleanupSchedule); err != nil {
		return err
	}
	app.Scheduler.Start()
	defer app.Scheduler.Stop()

	return startWithGracefulShutdown(app.Echo, cfg)
}

// New opens the database and wires services, middleware and routes.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// i18n
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	// Database (migrations are applied on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app := &App{db: db}
	if err := app.wire(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config) error {
	repo := repository.New(a.db)

	verifier, err := a.newVerifier(ctx, cfg, repo)
	if err != nil {
		return err
	}

	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")
	sessions, err := session.NewManager(&cfg.Session, secure)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	e.Use(middleware.LoadUser(sessions, repo))

	h := handlers.New(repo, auth.NewService(repo), verifier, sessions)
	h.Routes(e, middleware.RequireAuth)

	a.Echo = e
	a.Verifier = verifier
	a.Scheduler = jobs.NewScheduler(verifier)
	return nil
}

// newVerifier builds the token manager with the configured mail sender and
// cooldown tracker.
func (a *App) newVerifier(ctx context.Context, cfg *config.Config, repo *repository.Repository) (*verification.Manager, error) {
	var sender verification.Sender
	if cfg.SMTP.Enabled() {
		svc, err := email.NewService(&cfg.SMTP, cfg.Verification.FrontendURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create email service: %w", err)
		}
		sender = svc
	} else {
		slog.Warn("smtp_disabled", "hint", "verification mails are written to the log")
		sender = email.NewLogSender(cfg.Verification.FrontendURL, slog.Default())
	}

	opts := []verification.Option{
		verification.WithCooldown(cfg.Verification.Cooldown()),
		verification.WithExpiry(cfg.Verification.Expiry()),
	}

	if cfg.Verification.RedisURL != "" {
		tracker, err := ratelimit.NewRedisTracker(ctx, cfg.Verification.RedisURL, cfg.Verification.Cooldown(), repo)
		if err != nil {
			return nil, fmt.Errorf("failed to connect rate limit store: %w", err)
		}
		a.tracker = tracker
		opts = append(opts, verification.WithTracker(tracker))
	}

	return verification.NewManager(repo, sender, opts...), nil
}

// Close releases the database and the rate limit store.
func (a *App) Close() {
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			slog.Error("failed to close rate limit store", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
