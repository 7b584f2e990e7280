// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kaminskia1/excel-autograder/internal/config"
	"github.com/kaminskia1/excel-autograder/internal/server"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "autograder",
		Usage:   "Excel Autograder account API",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the API server",
				Action: server.Run,
			},
			{
				Name:   "cleanup-tokens",
				Usage:  "Delete expired verification tokens",
				Action: server.CleanupTokens,
			},
			{
				Name:  "migrate",
				Usage: "Manage database migrations",
				Commands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: server.MigrateUp,
					},
					{
						Name:   "down",
						Usage:  "Roll back the last migration",
						Action: server.MigrateDown,
					},
					{
						Name:   "status",
						Usage:  "Show the applied migration version",
						Action: server.MigrateStatus,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
