package tasks

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"

	"github.com/vclaes/assistbot/internal/database"
	"github.com/vclaes/assistbot/internal/scheduler"
)

// newReminderTask returns the handler for reminder jobs. At trigger time it
// reads the reminder text from the task metadata and delivers it to the
// owning chat.
func newReminderTask(deps TaskDeps) scheduler.TaskHandlerFunc {
	return func(ctx context.Context, task *database.Task) error {
		log := deps.Logger.With("task", "reminder", "job_id", task.JobID)
		log.InfoContext(ctx, "Executing reminder", "chat_id", task.ChatID)

		message := task.Preference("message", "Reminder!")

		_, err := deps.TGBot.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: task.ChatID,
			Text:   "🔔 Reminder: " + message,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send reminder", "chat_id", task.ChatID, "error", err)
			return fmt.Errorf("failed to send reminder for job %q: %w", task.JobID, err)
		}

		log.InfoContext(ctx, "Reminder sent", "chat_id", task.ChatID)
		return nil
	}
}
