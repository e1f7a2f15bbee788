package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vclaes/assistbot/internal/bot/tools"
)

// NewSchedulesHandler returns a handler for the /schedules command,
// listing the sender's scheduled tasks.
func NewSchedulesHandler(deps HandlerDeps) bot.HandlerFunc {
	return schedulesHandler{deps}.Handle
}

type schedulesHandler struct {
	deps HandlerDeps
}

func (h schedulesHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "schedules")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Schedules handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "Handling /schedules command", "chat_id", chatID, "user_id", userID)

	opCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Database.OperationTimeout)
	defer cancel()

	userTasks, err := h.deps.Store.ListTasksByUser(opCtx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list tasks", "user_id", userID, "error", err)
		h.sendText(ctx, b, chatID, h.deps.Config.Messages.GeneralError, log)
		return
	}

	if len(userTasks) == 0 {
		h.sendText(ctx, b, chatID, h.deps.Config.Messages.NoSchedules, log)
		return
	}

	text := h.deps.Config.Messages.SchedulesHeader + "\n" + tools.FormatTasks(userTasks)
	h.sendText(ctx, b, chatID, text, log)
}

func (h schedulesHandler) sendText(ctx context.Context, b *bot.Bot, chatID int64, text string, log *slog.Logger) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send schedules reply", "error", err, "chat_id", chatID)
	}
}
