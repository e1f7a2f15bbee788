package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Message represents a single message exchanged in a chat with the bot.
// Both user messages and bot replies are stored; bot replies carry the
// bot's own user ID. Recent messages form the conversation context given
// to the AI client.
type Message struct {
	ID        uint      `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	ChatID    int64     `db:"chat_id" json:"chat_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Content   string    `db:"content" json:"content"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// Task types understood by the scheduled task registry.
const (
	TaskTypeReminder   = "reminder"
	TaskTypeGymBooking = "gym_booking"
)

// Task is the metadata record for a scheduled job. The JobID is shared with
// the scheduler's own job table and is the only link between the two; the
// scheduler owns trigger timing, this record owns everything needed to act
// when the trigger fires (who to notify, what to say).
//
// Trigger data (CronExpr or RunAt) is also persisted so enabled tasks can be
// re-armed after a restart.
type Task struct {
	ID        uint      `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	JobID           string `db:"job_id" json:"job_id"`
	TaskType        string `db:"task_type" json:"task_type"`
	UserID          int64  `db:"user_id" json:"user_id"`
	ChatID          int64  `db:"chat_id" json:"chat_id"`
	OriginalRequest string `db:"original_request" json:"original_request"`
	Preferences     string `db:"preferences" json:"preferences"` // JSON object
	IsRecurring     bool   `db:"is_recurring" json:"is_recurring"`

	CronExpr sql.NullString `db:"cron_expr" json:"cron_expr"`
	RunAt    sql.NullTime   `db:"run_at" json:"run_at"`
	Enabled  bool           `db:"enabled" json:"enabled"`
}

// Preference returns a single string preference from the task's JSON
// preferences blob, or the fallback when the key is absent or the blob
// is not valid JSON.
func (t *Task) Preference(key, fallback string) string {
	if t.Preferences == "" {
		return fallback
	}

	var prefs map[string]any
	if err := json.Unmarshal([]byte(t.Preferences), &prefs); err != nil {
		return fallback
	}

	if v, ok := prefs[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
