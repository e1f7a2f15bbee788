package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vclaes/assistbot/internal/calendar"
)

// NewCalendarHandler returns a handler for the /calendar command, which
// generates an .ics file and sends it back as a document.
// Syntax: /calendar <title>; <start>[; duration minutes]
func NewCalendarHandler(deps HandlerDeps) bot.HandlerFunc {
	return calendarHandler{deps}.Handle
}

type calendarHandler struct {
	deps HandlerDeps
}

func (h calendarHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "calendar")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Calendar handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID

	title, start, duration, err := parseCalendarCommand(update.Message.Text, h.timezone())
	if err != nil {
		log.DebugContext(ctx, "Invalid /calendar invocation", "error", err, "chat_id", chatID)
		h.reply(ctx, b, chatID, h.deps.Config.Messages.CalendarUsage, log)
		return
	}

	log.InfoContext(ctx, "Handling /calendar command", "chat_id", chatID, "title", title, "start", start)

	data, err := calendar.GenerateICS(title, start, duration)
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate .ics content", "error", err)
		h.reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError, log)
		return
	}

	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: "event.ics",
			Data:     bytes.NewReader(data),
		},
		Caption: fmt.Sprintf("📅 %s — %s", title, start.Format("Mon 2 Jan 15:04")),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send calendar document", "error", err, "chat_id", chatID)
		h.reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError, log)
	}
}

func (h calendarHandler) timezone() *time.Location {
	if tz := h.deps.Config.Scheduler.Timezone; tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

func (h calendarHandler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string, log *slog.Logger) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send calendar reply", "error", err, "chat_id", chatID)
	}
}

// parseCalendarCommand splits "/calendar <title>; <start>[; minutes]" into
// its parts. The start time accepts RFC3339 or "2006-01-02 15:04" in the
// given location.
func parseCalendarCommand(text string, loc *time.Location) (string, time.Time, time.Duration, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "/calendar"))
	if at := strings.Index(rest, "@"); at == 0 {
		if sp := strings.IndexAny(rest, " \t"); sp != -1 {
			rest = strings.TrimSpace(rest[sp:])
		} else {
			rest = ""
		}
	}
	if rest == "" {
		return "", time.Time{}, 0, fmt.Errorf("missing arguments")
	}

	parts := strings.Split(rest, ";")
	if len(parts) < 2 || len(parts) > 3 {
		return "", time.Time{}, 0, fmt.Errorf("expected 'title; start[; minutes]', got %d parts", len(parts))
	}

	title := strings.TrimSpace(parts[0])
	if title == "" {
		return "", time.Time{}, 0, fmt.Errorf("empty title")
	}

	rawStart := strings.TrimSpace(parts[1])
	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		start, err = time.ParseInLocation("2006-01-02 15:04", rawStart, loc)
		if err != nil {
			return "", time.Time{}, 0, fmt.Errorf("invalid start time %q", rawStart)
		}
	}

	duration := calendar.DefaultDuration
	if len(parts) == 3 {
		minutes, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || minutes <= 0 {
			return "", time.Time{}, 0, fmt.Errorf("invalid duration %q", parts[2])
		}
		duration = time.Duration(minutes) * time.Minute
	}

	return title, start, duration, nil
}
