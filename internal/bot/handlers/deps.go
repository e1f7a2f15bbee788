package handlers

import (
	"log/slog"

	"github.com/vclaes/assistbot/internal/config"
	"github.com/vclaes/assistbot/internal/database"
	"github.com/vclaes/assistbot/internal/gemini"
	"github.com/vclaes/assistbot/internal/scheduler"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Store        database.Store
	GeminiClient gemini.Client
	Scheduler    *scheduler.Scheduler
}
