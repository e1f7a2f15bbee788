package tasks

import (
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/vclaes/assistbot/internal/config"
	"github.com/vclaes/assistbot/internal/database"
)

// TaskDeps provides dependencies for scheduled task handlers.
type TaskDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  database.Store
	TGBot  *tgbot.Bot
}
