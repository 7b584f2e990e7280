// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kaminskia1/excel-autograder/internal/config"
	"github.com/kaminskia1/excel-autograder/internal/database"
	"github.com/kaminskia1/excel-autograder/internal/repository"
	"github.com/kaminskia1/excel-autograder/internal/services/verification"
	"github.com/urfave/cli/v3"
)

// CleanupTokens deletes expired verification tokens once and exits.
func CleanupTokens(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	verifier := verification.NewManager(repository.New(db), nil,
		verification.WithExpiry(cfg.Verification.Expiry()))

	n, err := verifier.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	slog.Info("expired tokens deleted", "count", n)
	return nil
}

// MigrateUp applies all pending migrations.
func MigrateUp(_ context.Context, cmd *cli.Command) error {
	return withMigrationDB(cmd, func(cfg *config.Config, db *sql.DB) error {
		return database.RunMigrations(db)
	})
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(_ context.Context, cmd *cli.Command) error {
	return withMigrationDB(cmd, func(cfg *config.Config, db *sql.DB) error {
		return database.MigrateDown(db)
	})
}

// MigrateStatus logs the applied migration version.
func MigrateStatus(_ context.Context, cmd *cli.Command) error {
	return withMigrationDB(cmd, func(cfg *config.Config, db *sql.DB) error {
		version, err := database.MigrationVersion(db)
		if err != nil {
			return err
		}
		slog.Info("migration status", "version", version, "database", cfg.Database.DSN)
		return nil
	})
}

func withMigrationDB(cmd *cli.Command, fn func(cfg *config.Config, db *sql.DB) error) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := fn(cfg, db.DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
