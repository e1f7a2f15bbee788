// Package scheduler coordinates persisted user jobs and config-driven
// maintenance tasks on top of the gocron library. Job trigger timing lives
// in gocron; everything needed at trigger time (who to notify, what to say)
// lives in the task metadata store, keyed by job ID. Because gocron keeps
// jobs in memory only, enabled tasks are re-armed from the store on startup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/vclaes/assistbot/internal/config"
	"github.com/vclaes/assistbot/internal/database"
)

// TaskHandlerFunc executes a user job given its metadata record.
// The context provided by the scheduler should be respected for cancellation.
type TaskHandlerFunc func(ctx context.Context, task *database.Task) error

// MaintenanceFunc is the signature for config-driven maintenance tasks.
type MaintenanceFunc func(ctx context.Context) error

// cronParser validates the standard 5-field cron format accepted for
// recurring tasks, matching what gocron's CronJob expects without seconds.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronExpr reports whether expr is a valid 5-field cron expression.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NewJobID builds a namespaced job identifier for a user task.
// Format: user_{user_id}_{task_type}_{random}.
func NewJobID(userID int64, taskType string) string {
	return fmt.Sprintf("user_%d_%s_%s", userID, taskType, uuid.NewString()[:8])
}

// Scheduler manages scheduled jobs using the gocron library.
type Scheduler struct {
	scheduler   gocron.Scheduler
	logger      *slog.Logger
	cfg         *config.SchedulerConfig
	store       database.Store
	handlers    map[string]TaskHandlerFunc
	maintenance map[string]MaintenanceFunc

	mu      sync.Mutex
	jobs    map[string]uuid.UUID // job ID -> gocron job UUID
	running bool
}

// NewScheduler creates a new scheduler instance using gocron. The handlers
// map associates task types (reminder, gym_booking) with their execution
// functions; maintenance holds the config-driven named tasks.
func NewScheduler(
	logger *slog.Logger,
	cfg *config.SchedulerConfig,
	store database.Store,
	handlers map[string]TaskHandlerFunc,
	maintenance map[string]MaintenanceFunc,
) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	loc := time.Local
	if cfg != nil && cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
		}
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler:   s,
		logger:      log,
		cfg:         cfg,
		store:       store,
		handlers:    handlers,
		maintenance: maintenance,
		jobs:        make(map[string]uuid.UUID),
	}, nil
}

// Start schedules the config-driven maintenance tasks, re-arms persisted
// user tasks from the store, and starts the scheduler's internal ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.logger.Debug("Configuring scheduler jobs...")
	s.startMaintenanceTasks()

	if err := s.restoreTasks(ctx); err != nil {
		return fmt.Errorf("failed to restore persisted tasks: %w", err)
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "user_jobs", len(s.jobs))

	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}
	s.running = false
	s.mu.Unlock()

	// Shutdown waits for in-flight jobs, and a finishing one-time job takes
	// the mutex to drop its trigger; holding it here would deadlock them.
	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	return err
}

// Schedule persists the task metadata and registers its trigger with gocron.
// For recurring tasks CronExpr must hold a valid 5-field expression; for
// one-time tasks RunAt must hold a future time. Scheduling under an existing
// job ID replaces both the metadata and the trigger.
func (s *Scheduler) Schedule(ctx context.Context, task *database.Task) error {
	if task == nil {
		return fmt.Errorf("cannot schedule nil task")
	}
	if _, ok := s.handlers[task.TaskType]; !ok {
		return fmt.Errorf("unknown task type %q", task.TaskType)
	}

	if task.IsRecurring {
		if !task.CronExpr.Valid || task.CronExpr.String == "" {
			return fmt.Errorf("recurring task %q has no cron expression", task.JobID)
		}
		if err := ValidateCronExpr(task.CronExpr.String); err != nil {
			return err
		}
	} else {
		if !task.RunAt.Valid {
			return fmt.Errorf("one-time task %q has no run time", task.JobID)
		}
		if !task.RunAt.Time.After(time.Now()) {
			return fmt.Errorf("one-time task %q has run time in the past", task.JobID)
		}
	}

	task.Enabled = true
	if err := s.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to persist task metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registerJob(task); err != nil {
		// Keep store and scheduler consistent: no metadata without a trigger.
		if _, delErr := s.store.DeleteTask(ctx, task.JobID); delErr != nil {
			s.logger.ErrorContext(ctx, "Failed to clean up task metadata after scheduling failure",
				"job_id", task.JobID, "error", delErr)
		}
		return err
	}

	s.logger.InfoContext(ctx, "Scheduled task",
		"job_id", task.JobID, "task_type", task.TaskType, "recurring", task.IsRecurring)
	return nil
}

// Cancel removes the job trigger and deletes its metadata.
// Returns false if neither a trigger nor metadata existed for the job ID.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" {
		return false, fmt.Errorf("job_id cannot be empty")
	}

	s.mu.Lock()
	removed := s.removeJobLocked(jobID)
	s.mu.Unlock()

	deleted, err := s.store.DeleteTask(ctx, jobID)
	if err != nil {
		return removed, fmt.Errorf("failed to delete task metadata: %w", err)
	}

	found := removed || deleted
	if found {
		s.logger.InfoContext(ctx, "Cancelled scheduled task", "job_id", jobID)
	} else {
		s.logger.WarnContext(ctx, "Cancel requested for unknown job", "job_id", jobID)
	}
	return found, nil
}

// JobCount returns the number of currently registered user jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// startMaintenanceTasks registers the enabled config-driven tasks.
// Caller must hold s.mu.
func (s *Scheduler) startMaintenanceTasks() {
	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Debug("No maintenance tasks configured.")
		return
	}

	scheduledCount := 0
	for taskName, taskConfig := range s.cfg.Tasks {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled maintenance task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.maintenance[taskName]
		if !exists {
			s.logger.Warn("Maintenance task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		if taskConfig.Schedule == "" {
			s.logger.Warn("Maintenance task enabled but has empty schedule, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, false),
			gocron.NewTask(
				func(ctx context.Context, name string) {
					s.logger.Info("Running maintenance task", "task_name", name)
					startTime := time.Now()
					if taskErr := taskFunc(ctx); taskErr != nil {
						s.logger.Error("Maintenance task failed", "task_name", name, "error", taskErr)
					}
					s.logger.Info("Finished maintenance task", "task_name", name, "duration", time.Since(startTime))
				},
				context.Background(),
				taskName,
			),
			gocron.WithName(taskName),
		)
		if err != nil {
			s.logger.Error("Failed to schedule maintenance task",
				"task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled maintenance task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.logger.Info("Maintenance tasks configured", "tasks_scheduled", scheduledCount)
}

// restoreTasks re-arms enabled tasks from the store. One-time tasks whose
// run time already passed while the bot was down are logged and removed
// rather than fired late. Caller must hold s.mu.
func (s *Scheduler) restoreTasks(ctx context.Context) error {
	tasks, err := s.store.ListEnabledTasks(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, task := range tasks {
		if !task.IsRecurring && task.RunAt.Valid && !task.RunAt.Time.After(time.Now()) {
			s.logger.WarnContext(ctx, "Dropping one-time task missed while offline",
				"job_id", task.JobID, "run_at", task.RunAt.Time)
			if _, err := s.store.DeleteTask(ctx, task.JobID); err != nil {
				s.logger.ErrorContext(ctx, "Failed to delete missed task", "job_id", task.JobID, "error", err)
			}
			continue
		}

		if err := s.registerJob(task); err != nil {
			s.logger.ErrorContext(ctx, "Failed to restore task, skipping",
				"job_id", task.JobID, "task_type", task.TaskType, "error", err)
			continue
		}
		restored++
	}

	s.logger.InfoContext(ctx, "Restored persisted tasks", "restored", restored, "total", len(tasks))
	return nil
}

// registerJob adds the gocron trigger for a task. Caller must hold s.mu.
func (s *Scheduler) registerJob(task *database.Task) error {
	// Replace-existing semantics: drop any previous trigger for this job ID.
	s.removeJobLocked(task.JobID)

	var definition gocron.JobDefinition
	if task.IsRecurring {
		definition = gocron.CronJob(task.CronExpr.String, false)
	} else {
		definition = gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(task.RunAt.Time))
	}

	job, err := s.scheduler.NewJob(
		definition,
		gocron.NewTask(s.runTask, context.Background(), task.JobID),
		gocron.WithName(task.JobID),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %q: %w", task.JobID, err)
	}

	s.jobs[task.JobID] = job.ID()
	return nil
}

// removeJobLocked drops the gocron trigger for a job ID if one is registered.
// Caller must hold s.mu.
func (s *Scheduler) removeJobLocked(jobID string) bool {
	gocronID, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	if err := s.scheduler.RemoveJob(gocronID); err != nil {
		s.logger.Warn("Failed to remove gocron job", "job_id", jobID, "error", err)
	}
	delete(s.jobs, jobID)
	return true
}

// runTask is the trigger-time entry point for every user job. It loads the
// latest metadata from the store and dispatches to the task type's handler.
func (s *Scheduler) runTask(ctx context.Context, jobID string) {
	log := s.logger.With("job_id", jobID)
	log.InfoContext(ctx, "Running scheduled task")
	startTime := time.Now()

	task, err := s.store.GetTask(ctx, jobID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load task metadata", "error", err)
		return
	}
	if task == nil || !task.Enabled {
		log.WarnContext(ctx, "No enabled metadata found for job, removing trigger")
		s.mu.Lock()
		s.removeJobLocked(jobID)
		s.mu.Unlock()
		return
	}

	handler, ok := s.handlers[task.TaskType]
	if !ok {
		log.ErrorContext(ctx, "No handler registered for task type", "task_type", task.TaskType)
		return
	}

	if err := handler(ctx, task); err != nil {
		log.ErrorContext(ctx, "Scheduled task failed", "task_type", task.TaskType, "error", err)
	}

	// One-time tasks are done after a single firing; drop their metadata.
	if !task.IsRecurring {
		s.mu.Lock()
		s.removeJobLocked(jobID)
		s.mu.Unlock()
		if _, err := s.store.DeleteTask(ctx, jobID); err != nil {
			log.ErrorContext(ctx, "Failed to delete completed one-time task", "error", err)
		}
	}

	log.InfoContext(ctx, "Finished scheduled task", "task_type", task.TaskType, "duration", time.Since(startTime))
}
