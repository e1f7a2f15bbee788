package tasks

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"

	"github.com/vclaes/assistbot/internal/database"
	"github.com/vclaes/assistbot/internal/scheduler"
)

// newGymBookingTask returns the handler for gym-booking jobs. The bot does
// not drive the reservation site itself; the job prompts the user at the
// configured time so they can book while slots are still open.
func newGymBookingTask(deps TaskDeps) scheduler.TaskHandlerFunc {
	return func(ctx context.Context, task *database.Task) error {
		log := deps.Logger.With("task", "gym_booking", "job_id", task.JobID)
		log.InfoContext(ctx, "Executing gym booking prompt", "chat_id", task.ChatID)

		text := "⏰ Time to book your gym session!"
		if hours := task.Preference("preferred_hours", ""); hours != "" {
			text += " Preferred slots: " + hours
		}
		if message := task.Preference("message", ""); message != "" {
			text += "\n" + message
		}

		_, err := deps.TGBot.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: task.ChatID,
			Text:   text,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send gym booking prompt", "chat_id", task.ChatID, "error", err)
			return fmt.Errorf("failed to send gym booking prompt for job %q: %w", task.JobID, err)
		}

		log.InfoContext(ctx, "Gym booking prompt sent", "chat_id", task.ChatID)
		return nil
	}
}
