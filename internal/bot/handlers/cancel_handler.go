package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCancelHandler returns a handler for the /cancel command, which removes
// one of the sender's scheduled tasks by job ID.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return cancelHandler{deps}.Handle
}

type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Cancel handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	jobID := parseCancelArg(update.Message.Text)
	if jobID == "" {
		h.reply(ctx, b, chatID, "Usage: /cancel <job-id> (see /schedules for IDs)", log)
		return
	}

	log.InfoContext(ctx, "Handling /cancel command", "chat_id", chatID, "user_id", userID, "job_id", jobID)

	opCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Database.OperationTimeout)
	defer cancel()

	task, err := h.deps.Store.GetTask(opCtx, jobID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load task for cancellation", "job_id", jobID, "error", err)
		h.reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError, log)
		return
	}

	// Only the owner or the admin may cancel a job.
	if task == nil || (task.UserID != userID && userID != h.deps.Config.Telegram.AdminUserID) {
		h.reply(ctx, b, chatID, fmt.Sprintf(h.deps.Config.Messages.ScheduleNotFound, jobID), log)
		return
	}

	found, err := h.deps.Scheduler.Cancel(opCtx, jobID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to cancel schedule", "job_id", jobID, "error", err)
		h.reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError, log)
		return
	}
	if !found {
		h.reply(ctx, b, chatID, fmt.Sprintf(h.deps.Config.Messages.ScheduleNotFound, jobID), log)
		return
	}

	h.reply(ctx, b, chatID, fmt.Sprintf(h.deps.Config.Messages.ScheduleCancelled, jobID), log)
}

func (h cancelHandler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string, log *slog.Logger) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send cancel reply", "error", err, "chat_id", chatID)
	}
}

// parseCancelArg extracts the job ID argument from "/cancel <job-id>".
func parseCancelArg(text string) string {
	rest := strings.TrimPrefix(strings.TrimSpace(text), "/cancel")
	if idx := strings.Index(rest, "@"); idx == 0 {
		// Strip "@botname" from "/cancel@botname <job-id>".
		if sp := strings.IndexAny(rest, " \t"); sp != -1 {
			rest = rest[sp:]
		} else {
			return ""
		}
	}
	return strings.TrimSpace(rest)
}
