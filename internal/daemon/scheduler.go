package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Scheduler wraps a gocron scheduler holding the single release-check job.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu   sync.Mutex
	job  gocron.Job
	name string
	task func()
	cron string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler and waits for a running task.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleCron registers task under a cron expression. A tick that fires while
// the previous one is still running is dropped.
func (s *Scheduler) ScheduleCron(name, expr string, task func()) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		return uuid.Nil, errors.New("a job is already scheduled")
	}
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create cron job %q: %w", expr, err)
	}
	s.job, s.name, s.task, s.cron = job, name, task, expr
	return job.ID(), nil
}

// Reschedule moves the job to a new cron expression. An unchanged expression is a no-op.
func (s *Scheduler) Reschedule(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return errors.New("no job scheduled")
	}
	if expr == s.cron {
		return nil
	}
	job, err := s.scheduler.Update(s.job.ID(),
		gocron.CronJob(expr, false),
		gocron.NewTask(s.task),
		gocron.WithName(s.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule %q: %w", expr, err)
	}
	slog.Info("Rescheduled release check", slog.String("from", s.cron), slog.String("to", expr))
	s.job, s.cron = job, expr
	return nil
}

// Cron returns the active cron expression.
func (s *Scheduler) Cron() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron
}

// NextRun returns when the job fires next, or the zero time when nothing is scheduled.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return time.Time{}
	}
	next, err := job.NextRun()
	if err != nil {
		return time.Time{}
	}
	return next
}
