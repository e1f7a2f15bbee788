// Package config manages application configuration from config.yaml,
// BOT_* environment variables, and default values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// LoggerConfig controls log verbosity and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and authorization settings.
// BotInfo is populated at startup from GetMe and is not read from the file.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`

	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig holds SQLite storage settings.
type DatabaseConfig struct {
	Path               string        `mapstructure:"path"                 validate:"required"`
	MaxHistoryMessages int           `mapstructure:"max_history_messages" validate:"min=1,max=200"`
	OperationTimeout   time.Duration `mapstructure:"operation_timeout"    validate:"min=1s,max=5m"`
}

// GeminiConfig holds settings for the Gemini AI client.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"             validate:"required"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=1,max=60"`
	MaxToolRounds     int     `mapstructure:"max_tool_rounds"     validate:"min=1,max=10"`
}

// TaskConfig describes one config-driven maintenance task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig holds scheduler timezone and the static maintenance tasks.
// User-created jobs are persisted in the database, not configured here.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"required"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds user-visible bot message templates.
type MessagesConfig struct {
	Welcome           string `mapstructure:"welcome"            validate:"required"`
	Help              string `mapstructure:"help"               validate:"required"`
	NotAuthorized     string `mapstructure:"not_authorized"     validate:"required"`
	GeneralError      string `mapstructure:"general_error"      validate:"required"`
	HistoryReset      string `mapstructure:"history_reset"      validate:"required"`
	EmptyPrompt       string `mapstructure:"empty_prompt"       validate:"required"`
	NoSchedules       string `mapstructure:"no_schedules"       validate:"required"`
	SchedulesHeader   string `mapstructure:"schedules_header"   validate:"required"`
	ScheduleCancelled string `mapstructure:"schedule_cancelled" validate:"required"`
	ScheduleNotFound  string `mapstructure:"schedule_not_found" validate:"required"`
	CalendarUsage     string `mapstructure:"calendar_usage"     validate:"required"`
}

// Config defines the application configuration for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoadConfig reads configuration from the given YAML file, applies BOT_*
// environment variable overrides and defaults, and validates the result.
// A missing config file is not an error; defaults and environment variables
// are used instead.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
			}
		}
		// Config file not found is okay, defaults and env vars apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	// Empty defaults so environment-only values are picked up by Unmarshal.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)

	v.SetDefault("database.path", "assistant.db")
	v.SetDefault("database.max_history_messages", 50)
	v.SetDefault("database.operation_timeout", 15*time.Second)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 1.0)
	v.SetDefault("gemini.system_instruction", defaultSystemInstruction)
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.retry_delay_seconds", 5)
	v.SetDefault("gemini.max_tool_rounds", 4)

	v.SetDefault("scheduler.timezone", "Europe/Brussels")
	v.SetDefault("scheduler.tasks", map[string]TaskConfig{})

	v.SetDefault("messages.welcome", "👋 Hi! I'm your personal assistant. Tell me what to remind you about, or ask me to watch gym slots.")
	v.SetDefault("messages.help", "Talk to me in plain language to set reminders or gym-booking prompts.\n\nCommands:\n/schedules - list your scheduled tasks\n/cancel <job-id> - cancel a scheduled task\n/calendar <title>; <RFC3339 start>[; minutes] - get an .ics file\n/reset - clear chat history (admin)")
	v.SetDefault("messages.not_authorized", "🚫 Access denied. Please contact the administrator.")
	v.SetDefault("messages.general_error", "❌ An error occurred. Please try again later.")
	v.SetDefault("messages.history_reset", "🔄 Chat history has been cleared.")
	v.SetDefault("messages.empty_prompt", "ℹ️ Please send me a message to work with.")
	v.SetDefault("messages.no_schedules", "You have no scheduled tasks.")
	v.SetDefault("messages.schedules_header", "Your scheduled tasks:")
	v.SetDefault("messages.schedule_cancelled", "✓ Schedule cancelled (ID: %s)")
	v.SetDefault("messages.schedule_not_found", "No schedule found with ID %s.")
	v.SetDefault("messages.calendar_usage", "Usage: /calendar <title>; <RFC3339 start>[; duration minutes]")
}

const defaultSystemInstruction = `You are a personal assistant bot. Brevity in responses is critical.

RESPONSE RULES (MANDATORY):
- Maximum 2-3 short sentences per response
- Options: max 3-4 choices, one line each, numbered
- No explanations unless asked
- No greetings or filler words
- Use defaults when reasonable, ask only what's essential

Use the schedule_task tool for reminders and gym-booking prompts, the
list_schedules tool to show existing tasks, and the cancel_schedule tool to
remove one.`
