package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vclaes/assistbot/internal/bot/tools"
	"github.com/vclaes/assistbot/internal/database"
)

const (
	aiProcessingTimeout = 2 * time.Minute
	sendMessageTimeout  = 10 * time.Second
	dbSaveTimeout       = 5 * time.Second
)

// NewChatHandler returns the default handler: free-form conversation with
// the AI agent. It stores the incoming message, builds the conversation
// context from recent history, and lets the agent answer — possibly via the
// scheduling tools — before persisting and sending the reply.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatHandler{deps}.Handle
}

type chatHandler struct {
	deps HandlerDeps
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "chat")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update with nil message or sender", "update_id", update.ID)
		return
	}

	// Unknown commands fall through to this handler; don't treat them as prompts.
	if strings.HasPrefix(msg.Text, "/") {
		log.DebugContext(ctx, "Ignoring unrecognized command", "chat_id", msg.Chat.ID, "text", msg.Text)
		return
	}

	chatID := msg.Chat.ID
	userID := msg.From.ID

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		h.send(ctx, b, chatID, deps.Config.Messages.EmptyPrompt, log)
		return
	}

	log.InfoContext(ctx, "Handling chat message", "chat_id", chatID, "user_id", userID)

	incoming := &database.Message{
		ChatID:    chatID,
		UserID:    userID,
		Content:   text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}
	h.saveMessage(ctx, incoming, log)

	if _, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}); err != nil {
		log.DebugContext(ctx, "Failed to send typing action", "error", err, "chat_id", chatID)
	}

	history := h.conversationHistory(ctx, chatID, incoming, log)

	botID := int64(0)
	if deps.Config.Telegram.BotInfo != nil {
		botID = deps.Config.Telegram.BotInfo.ID
	}

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	defer cancel()
	aiCtx = tools.WithChatContext(aiCtx, tools.ChatContext{UserID: userID, ChatID: chatID})

	reply, err := deps.GeminiClient.GenerateReply(aiCtx, history, botID)
	if err != nil {
		log.ErrorContext(ctx, "AI reply generation failed", "chat_id", chatID, "error", err)
		h.send(ctx, b, chatID, deps.Config.Messages.GeneralError, log)
		return
	}

	replyMsg := &database.Message{
		ChatID:    chatID,
		UserID:    botID,
		Content:   reply,
		Timestamp: time.Now(),
	}
	h.saveMessage(ctx, replyMsg, log)

	h.send(ctx, b, chatID, reply, log)
}

// conversationHistory returns recent chat messages in chronological order,
// guaranteeing the incoming message is the last entry.
func (h chatHandler) conversationHistory(ctx context.Context, chatID int64, incoming *database.Message, log *slog.Logger) []*database.Message {
	opCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Database.OperationTimeout)
	defer cancel()

	recent, err := h.deps.Store.GetRecentMessagesInChat(opCtx, chatID, h.deps.Config.Database.MaxHistoryMessages)
	if err != nil {
		log.WarnContext(ctx, "Failed to load chat history, continuing with current message only",
			"chat_id", chatID, "error", err)
		return []*database.Message{incoming}
	}

	// Store returns newest first; reverse to chronological.
	history := make([]*database.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].ID == incoming.ID {
			continue
		}
		history = append(history, recent[i])
	}
	return append(history, incoming)
}

func (h chatHandler) saveMessage(ctx context.Context, m *database.Message, log *slog.Logger) {
	opCtx, cancel := context.WithTimeout(ctx, dbSaveTimeout)
	defer cancel()

	if err := h.deps.Store.SaveMessage(opCtx, m); err != nil {
		log.WarnContext(ctx, "Failed to save message", "chat_id", m.ChatID, "user_id", m.UserID, "error", err)
	}
}

func (h chatHandler) send(ctx context.Context, b *bot.Bot, chatID int64, text string, log *slog.Logger) {
	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	if _, err := b.SendMessage(sendCtx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send chat reply", "error", err, "chat_id", chatID)
	}
}
