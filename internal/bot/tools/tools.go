// Package tools implements the scheduling tools exposed to the AI agent:
// schedule_task, list_schedules, and cancel_schedule. The dispatcher resolves
// the acting user and chat from the request context, so the model never
// supplies identities itself.
package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/vclaes/assistbot/internal/database"
	"github.com/vclaes/assistbot/internal/scheduler"
)

type chatContextKey struct{}

// ChatContext identifies the user and chat a tool call acts on behalf of.
type ChatContext struct {
	UserID int64
	ChatID int64
}

// WithChatContext returns a context carrying the acting user and chat.
func WithChatContext(ctx context.Context, cc ChatContext) context.Context {
	return context.WithValue(ctx, chatContextKey{}, cc)
}

// ChatFromContext extracts the acting user and chat from the context.
func ChatFromContext(ctx context.Context) (ChatContext, bool) {
	cc, ok := ctx.Value(chatContextKey{}).(ChatContext)
	return cc, ok
}

// Dispatcher executes tool calls against the scheduler and task store.
type Dispatcher struct {
	logger *slog.Logger
	store  database.Store
	sched  *scheduler.Scheduler
}

// NewDispatcher creates a tool dispatcher bound to the given store and scheduler.
func NewDispatcher(logger *slog.Logger, store database.Store, sched *scheduler.Scheduler) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger.With("component", "agent_tools"),
		store:  store,
		sched:  sched,
	}
}

// Declarations returns the genai function declarations for all tools.
func (d *Dispatcher) Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        "schedule_task",
			Description: "Create a scheduled task (reminder or gym-booking prompt) for the current user. Use cron_expr with is_recurring=true for repeating tasks, or schedule_time for one-time tasks.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"task_type": {
						Type:        genai.TypeString,
						Enum:        []string{database.TaskTypeReminder, database.TaskTypeGymBooking},
						Description: "Type of task to schedule.",
					},
					"message": {
						Type:        genai.TypeString,
						Description: "The text to send the user when the task fires.",
					},
					"schedule_time": {
						Type:        genai.TypeString,
						Description: "RFC3339 time for one-time tasks, e.g. 2026-09-01T07:00:00+02:00.",
					},
					"cron_expr": {
						Type:        genai.TypeString,
						Description: "5-field cron expression for recurring tasks, e.g. '0 7 * * mon'.",
					},
					"is_recurring": {
						Type:        genai.TypeBoolean,
						Description: "Whether the task repeats.",
					},
					"original_request": {
						Type:        genai.TypeString,
						Description: "The user's original natural-language request, verbatim.",
					},
				},
				Required: []string{"task_type", "message"},
			},
		},
		{
			Name:        "list_schedules",
			Description: "List the current user's scheduled tasks.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{},
			},
		},
		{
			Name:        "cancel_schedule",
			Description: "Cancel one of the current user's scheduled tasks by job ID.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"job_id": {
						Type:        genai.TypeString,
						Description: "The job ID of the schedule to cancel.",
					},
				},
				Required: []string{"job_id"},
			},
		},
	}
}

// Dispatch routes a tool call by name.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	cc, ok := ChatFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("tool call %q without chat context", name)
	}

	switch name {
	case "schedule_task":
		return d.scheduleTask(ctx, cc, args)
	case "list_schedules":
		return d.listSchedules(ctx, cc)
	case "cancel_schedule":
		return d.cancelSchedule(ctx, cc, args)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func (d *Dispatcher) scheduleTask(ctx context.Context, cc ChatContext, args map[string]any) (string, error) {
	taskType := stringArg(args, "task_type")
	message := stringArg(args, "message")
	if taskType == "" || message == "" {
		return "", fmt.Errorf("schedule_task requires task_type and message")
	}

	d.logger.InfoContext(ctx, "Creating schedule", "task_type", taskType, "user_id", cc.UserID)

	prefs, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", fmt.Errorf("failed to encode preferences: %w", err)
	}

	task := &database.Task{
		JobID:           scheduler.NewJobID(cc.UserID, taskType),
		TaskType:        taskType,
		UserID:          cc.UserID,
		ChatID:          cc.ChatID,
		OriginalRequest: stringArg(args, "original_request"),
		Preferences:     string(prefs),
		IsRecurring:     boolArg(args, "is_recurring"),
		Enabled:         true,
	}

	if task.IsRecurring {
		expr := stringArg(args, "cron_expr")
		if expr == "" {
			return "", fmt.Errorf("recurring tasks require cron_expr")
		}
		task.CronExpr = sql.NullString{String: expr, Valid: true}
	} else {
		raw := stringArg(args, "schedule_time")
		if raw == "" {
			return "", fmt.Errorf("one-time tasks require schedule_time")
		}
		runAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return "", fmt.Errorf("invalid schedule_time %q: %w", raw, err)
		}
		task.RunAt = sql.NullTime{Time: runAt, Valid: true}
	}

	if err := d.sched.Schedule(ctx, task); err != nil {
		d.logger.ErrorContext(ctx, "Error creating schedule", "error", err)
		return "", err
	}

	d.logger.InfoContext(ctx, "Created schedule", "job_id", task.JobID)
	return fmt.Sprintf("✓ Schedule created (ID: %s)", task.JobID), nil
}

func (d *Dispatcher) listSchedules(ctx context.Context, cc ChatContext) (string, error) {
	tasks, err := d.store.ListTasksByUser(ctx, cc.UserID)
	if err != nil {
		return "", err
	}

	if len(tasks) == 0 {
		return "You have no scheduled tasks.", nil
	}

	return "Your scheduled tasks:\n" + FormatTasks(tasks), nil
}

func (d *Dispatcher) cancelSchedule(ctx context.Context, cc ChatContext, args map[string]any) (string, error) {
	jobID := stringArg(args, "job_id")
	if jobID == "" {
		return "", fmt.Errorf("cancel_schedule requires job_id")
	}

	// Users may only cancel their own jobs.
	task, err := d.store.GetTask(ctx, jobID)
	if err != nil {
		return "", err
	}
	if task == nil || task.UserID != cc.UserID {
		return fmt.Sprintf("No schedule found with ID %s.", jobID), nil
	}

	found, err := d.sched.Cancel(ctx, jobID)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("No schedule found with ID %s.", jobID), nil
	}
	return fmt.Sprintf("✓ Schedule cancelled (ID: %s)", jobID), nil
}

// FormatTasks renders task records as a human-readable list, one per line.
func FormatTasks(tasks []*database.Task) string {
	var sb strings.Builder
	for i, task := range tasks {
		if i > 0 {
			sb.WriteString("\n")
		}

		var when string
		switch {
		case task.IsRecurring && task.CronExpr.Valid:
			when = fmt.Sprintf("recurring '%s'", task.CronExpr.String)
		case task.RunAt.Valid:
			when = "one-time " + task.RunAt.Time.Format("2006-01-02 15:04")
		default:
			when = "one-time"
		}

		sb.WriteString(fmt.Sprintf("- %s (%s): %s [ID: %s]",
			task.TaskType, when, task.Preference("message", "(no message)"), task.JobID))
	}
	return sb.String()
}
