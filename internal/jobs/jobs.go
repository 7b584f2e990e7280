// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package jobs runs periodic maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron"
)

// cleanupTimeout bounds one cleanup run.
const cleanupTimeout = time.Minute

// Cleaner deletes expired verification tokens.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Scheduler wraps a cron instance.
type Scheduler struct {
	cron    *cron.Cron
	cleaner Cleaner
}

// NewScheduler creates a scheduler for cleaner. Call ScheduleCleanup and
// Start to run it.
func NewScheduler(cleaner Cleaner) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		cleaner: cleaner,
	}
}

// ScheduleCleanup registers the token cleanup under spec, e.g. "@hourly" or
// "0 */30 * * * *". An empty spec schedules nothing.
func (s *Scheduler) ScheduleCleanup(spec string) error {
	if spec == "" {
		return nil
	}
	if err := s.cron.AddFunc(spec, func() {
		s.RunCleanup(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	slog.Info("token_cleanup_scheduled", "schedule", spec)
	return nil
}

// RunCleanup deletes expired tokens once.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	n, err := s.cleaner.CleanupExpired(ctx)
	if err != nil {
		slog.Error("token_cleanup_failed", "error", err)
		return
	}
	slog.Debug("token_cleanup_done", "deleted", n)
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. Running jobs are not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
