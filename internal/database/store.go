package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a new message record.
	SaveMessage(ctx context.Context, message *Message) error

	// GetRecentMessagesInChat retrieves the most recent 'limit' messages for a
	// given chat ID, newest first.
	GetRecentMessagesInChat(ctx context.Context, chatID int64, limit int) ([]*Message, error)

	// GetAllMessages retrieves every stored message (used by the export CLI).
	GetAllMessages(ctx context.Context) ([]*Message, error)

	// DeleteMessagesInChat deletes all messages for a chat and returns the count.
	DeleteMessagesInChat(ctx context.Context, chatID int64) (int64, error)

	// DeleteMessagesByUser deletes all messages sent by a user and returns the count.
	DeleteMessagesByUser(ctx context.Context, userID int64) (int64, error)

	// SaveTask inserts or replaces the task metadata record for its job ID.
	SaveTask(ctx context.Context, task *Task) error

	// GetTask retrieves task metadata by job ID. Returns nil, nil if not found.
	GetTask(ctx context.Context, jobID string) (*Task, error)

	// ListTasksByUser retrieves all enabled tasks owned by a user.
	ListTasksByUser(ctx context.Context, userID int64) ([]*Task, error)

	// ListEnabledTasks retrieves all enabled tasks across all users.
	ListEnabledTasks(ctx context.Context) ([]*Task, error)

	// GetAllTasks retrieves every task record, enabled or not (used by the export CLI).
	GetAllTasks(ctx context.Context) ([]*Task, error)

	// DeleteTask removes the task metadata for a job ID.
	// Returns false if no record existed.
	DeleteTask(ctx context.Context, jobID string) (bool, error)

	// DisableTask soft-deletes a task by clearing its enabled flag.
	// Returns false if no record existed.
	DisableTask(ctx context.Context, jobID string) (bool, error)

	// DeleteTasksByUser removes all task metadata owned by a user and returns the count.
	DeleteTasksByUser(ctx context.Context, userID int64) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessage inserts a new message record.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if message.UserID == 0 {
		return fmt.Errorf("message must have a non-zero user_id")
	}
	if message.Content == "" {
		return fmt.Errorf("message must have non-empty content")
	}
	if message.Timestamp.IsZero() {
		return fmt.Errorf("message must have a non-zero timestamp")
	}

	now := time.Now().UTC()
	message.CreatedAt = now
	message.UpdatedAt = now

	query := `
        INSERT INTO messages (chat_id, user_id, content, timestamp, created_at, updated_at)
        VALUES (:chat_id, :user_id, :content, :timestamp, :created_at, :updated_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "chat_id", message.ChatID, "user_id", message.UserID, "error", err)
		return fmt.Errorf("failed to save message (chat %d, user %d): %w", message.ChatID, message.UserID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		message.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving message",
			"chat_id", message.ChatID, "user_id", message.UserID, "error", err)
	}

	s.logger.DebugContext(ctx, "Message saved successfully",
		"chat_id", message.ChatID, "user_id", message.UserID, "message_id", message.ID)
	return nil
}

// GetRecentMessagesInChat retrieves the most recent 'limit' messages for a given chat ID.
func (s *sqlxStore) GetRecentMessagesInChat(ctx context.Context, chatID int64, limit int) ([]*Message, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}

	if limit <= 0 {
		limit = 20
		s.logger.DebugContext(ctx, "Invalid limit provided, using default", "chat_id", chatID, "default_limit", limit)
	} else if limit > 200 {
		limit = 200
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping", "chat_id", chatID, "capped_limit", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var messages []*Message
	query := `
        SELECT id, chat_id, user_id, content, timestamp, created_at, updated_at
        FROM messages
        WHERE chat_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?;
    `

	err := s.db.SelectContext(ctx, &messages, query, chatID, limit)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching messages",
			"chat_id", chatID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent messages", "chat_id", chatID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent messages for chat %d: %w", chatID, err)
	}

	s.logger.DebugContext(ctx, "Fetched recent messages successfully", "chat_id", chatID, "count", len(messages))
	return messages, nil
}

// GetAllMessages retrieves every stored message, oldest first.
func (s *sqlxStore) GetAllMessages(ctx context.Context) ([]*Message, error) {
	var messages []*Message
	query := `
        SELECT id, chat_id, user_id, content, timestamp, created_at, updated_at
        FROM messages
        ORDER BY timestamp ASC, id ASC;
    `

	if err := s.db.SelectContext(ctx, &messages, query); err != nil {
		s.logger.ErrorContext(ctx, "Error getting all messages", "error", err)
		return nil, fmt.Errorf("failed to get all messages: %w", err)
	}
	return messages, nil
}

// DeleteMessagesInChat deletes all messages for a chat.
func (s *sqlxStore) DeleteMessagesInChat(ctx context.Context, chatID int64) (int64, error) {
	if chatID == 0 {
		return 0, fmt.Errorf("chat_id cannot be zero")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting messages in chat", "chat_id", chatID, "error", err)
		return 0, fmt.Errorf("failed to delete messages for chat %d: %w", chatID, err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted messages in chat", "chat_id", chatID, "count", count)
	return count, nil
}

// DeleteMessagesByUser deletes all messages sent by a user.
func (s *sqlxStore) DeleteMessagesByUser(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, fmt.Errorf("user_id cannot be zero")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting messages by user", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to delete messages for user %d: %w", userID, err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted messages by user", "user_id", userID, "count", count)
	return count, nil
}

// SaveTask inserts or replaces the task metadata record keyed by job ID.
// Replacing on conflict matches the scheduler's replace-existing semantics:
// re-scheduling under the same job ID updates the stored metadata in place.
func (s *sqlxStore) SaveTask(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("cannot save nil task")
	}
	if task.JobID == "" {
		return fmt.Errorf("task must have a non-empty job_id")
	}
	if task.TaskType == "" {
		return fmt.Errorf("task must have a non-empty task_type")
	}
	if task.ChatID == 0 {
		return fmt.Errorf("task must have a non-zero chat_id")
	}
	if task.Preferences == "" {
		task.Preferences = "{}"
	}

	now := time.Now().UTC()
	task.UpdatedAt = now
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving task",
			"job_id", task.JobID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	var exists bool
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM tasks WHERE job_id = ? LIMIT 1`, task.JobID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.ErrorContext(ctx, "Error checking if task exists", "job_id", task.JobID, "error", err)
		return fmt.Errorf("failed to check if task exists for job %q: %w", task.JobID, err)
	}

	var result sql.Result
	if exists {
		query := `
			UPDATE tasks SET
				task_type = :task_type,
				user_id = :user_id,
				chat_id = :chat_id,
				original_request = :original_request,
				preferences = :preferences,
				is_recurring = :is_recurring,
				cron_expr = :cron_expr,
				run_at = :run_at,
				enabled = :enabled,
				updated_at = :updated_at
			WHERE job_id = :job_id
		`
		result, err = tx.NamedExecContext(ctx, query, task)
	} else {
		query := `
			INSERT INTO tasks (
				job_id, task_type, user_id, chat_id, original_request,
				preferences, is_recurring, cron_expr, run_at, enabled,
				created_at, updated_at
			) VALUES (
				:job_id, :task_type, :user_id, :chat_id, :original_request,
				:preferences, :is_recurring, :cron_expr, :run_at, :enabled,
				:created_at, :updated_at
			)
		`
		result, err = tx.NamedExecContext(ctx, query, task)
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving task", "job_id", task.JobID, "error", err)
		return fmt.Errorf("failed to save task for job %q: %w", task.JobID, err)
	}

	if !exists {
		if id, err := result.LastInsertId(); err == nil {
			//nolint:gosec // integer overflow conversion is acceptable here
			task.ID = uint(id)
		} else {
			s.logger.WarnContext(ctx, "Could not get last insert ID for task",
				"job_id", task.JobID, "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "job_id", task.JobID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	operation := "updated"
	if !exists {
		operation = "created"
	}
	s.logger.DebugContext(ctx, "Task saved successfully",
		"operation", operation, "job_id", task.JobID, "task_type", task.TaskType)
	return nil
}

// GetTask retrieves task metadata by job ID. Returns nil, nil if not found.
func (s *sqlxStore) GetTask(ctx context.Context, jobID string) (*Task, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job_id cannot be empty")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var task Task
	query := `
        SELECT id, created_at, updated_at, job_id, task_type, user_id, chat_id,
               original_request, preferences, is_recurring, cron_expr, run_at, enabled
        FROM tasks WHERE job_id = ?
    `

	err := s.db.GetContext(ctx, &task, query, jobID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No task found", "job_id", jobID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching task",
			"job_id", jobID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting task by job ID", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to get task for job %q: %w", jobID, err)
	}

	return &task, nil
}

// ListTasksByUser retrieves all enabled tasks owned by a user.
func (s *sqlxStore) ListTasksByUser(ctx context.Context, userID int64) ([]*Task, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	var tasks []*Task
	query := `
        SELECT id, created_at, updated_at, job_id, task_type, user_id, chat_id,
               original_request, preferences, is_recurring, cron_expr, run_at, enabled
        FROM tasks WHERE user_id = ? AND enabled = 1
        ORDER BY created_at ASC
    `

	if err := s.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing tasks by user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list tasks for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "Listed tasks by user", "user_id", userID, "count", len(tasks))
	return tasks, nil
}

// ListEnabledTasks retrieves all enabled tasks across all users.
func (s *sqlxStore) ListEnabledTasks(ctx context.Context) ([]*Task, error) {
	var tasks []*Task
	query := `
        SELECT id, created_at, updated_at, job_id, task_type, user_id, chat_id,
               original_request, preferences, is_recurring, cron_expr, run_at, enabled
        FROM tasks WHERE enabled = 1
        ORDER BY created_at ASC
    `

	if err := s.db.SelectContext(ctx, &tasks, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing enabled tasks", "error", err)
		return nil, fmt.Errorf("failed to list enabled tasks: %w", err)
	}

	s.logger.DebugContext(ctx, "Listed enabled tasks", "count", len(tasks))
	return tasks, nil
}

// GetAllTasks retrieves every task record, enabled or not.
func (s *sqlxStore) GetAllTasks(ctx context.Context) ([]*Task, error) {
	var tasks []*Task
	query := `
        SELECT id, created_at, updated_at, job_id, task_type, user_id, chat_id,
               original_request, preferences, is_recurring, cron_expr, run_at, enabled
        FROM tasks
        ORDER BY created_at ASC
    `

	if err := s.db.SelectContext(ctx, &tasks, query); err != nil {
		s.logger.ErrorContext(ctx, "Error getting all tasks", "error", err)
		return nil, fmt.Errorf("failed to get all tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask removes the task metadata for a job ID.
func (s *sqlxStore) DeleteTask(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" {
		return false, fmt.Errorf("job_id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE job_id = ?`, jobID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting task", "job_id", jobID, "error", err)
		return false, fmt.Errorf("failed to delete task for job %q: %w", jobID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count when deleting task",
			"job_id", jobID, "error", err)
		return false, nil
	}

	s.logger.DebugContext(ctx, "Deleted task", "job_id", jobID, "found", affected > 0)
	return affected > 0, nil
}

// DisableTask soft-deletes a task by clearing its enabled flag.
func (s *sqlxStore) DisableTask(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" {
		return false, fmt.Errorf("job_id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET enabled = 0, updated_at = ? WHERE job_id = ?`,
		time.Now().UTC(), jobID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error disabling task", "job_id", jobID, "error", err)
		return false, fmt.Errorf("failed to disable task for job %q: %w", jobID, err)
	}

	affected, _ := result.RowsAffected()
	s.logger.DebugContext(ctx, "Disabled task", "job_id", jobID, "found", affected > 0)
	return affected > 0, nil
}

// DeleteTasksByUser removes all task metadata owned by a user.
func (s *sqlxStore) DeleteTasksByUser(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, fmt.Errorf("user_id cannot be zero")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ?`, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting tasks by user", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to delete tasks for user %d: %w", userID, err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted tasks by user", "user_id", userID, "count", count)
	return count, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
