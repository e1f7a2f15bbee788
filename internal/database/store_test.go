package database_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/vclaes/assistbot/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() failed: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return database.NewStore(db, log)
}

func TestSaveMessage_Validation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		message *database.Message
	}{
		{name: "nil message", message: nil},
		{name: "zero chat_id", message: &database.Message{UserID: 1, Content: "hi", Timestamp: now}},
		{name: "zero user_id", message: &database.Message{ChatID: 1, Content: "hi", Timestamp: now}},
		{name: "empty content", message: &database.Message{ChatID: 1, UserID: 1, Timestamp: now}},
		{name: "zero timestamp", message: &database.Message{ChatID: 1, UserID: 1, Content: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SaveMessage(ctx, tt.message); err == nil {
				t.Errorf("SaveMessage(%+v) = nil, want error", tt.message)
			}
		})
	}
}

func TestGetRecentMessagesInChat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		msg := &database.Message{
			ChatID:    100,
			UserID:    1,
			Content:   string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage() failed: %v", err)
		}
	}
	// A message in another chat must not leak in.
	other := &database.Message{ChatID: 200, UserID: 1, Content: "x", Timestamp: base}
	if err := store.SaveMessage(ctx, other); err != nil {
		t.Fatalf("SaveMessage() failed: %v", err)
	}

	messages, err := store.GetRecentMessagesInChat(ctx, 100, 3)
	if err != nil {
		t.Fatalf("GetRecentMessagesInChat() failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	// Newest first.
	if messages[0].Content != "e" || messages[2].Content != "c" {
		t.Errorf("got order [%s %s %s], want [e d c]",
			messages[0].Content, messages[1].Content, messages[2].Content)
	}

	if _, err := store.GetRecentMessagesInChat(ctx, 0, 3); err == nil {
		t.Error("GetRecentMessagesInChat(0) = nil, want error")
	}
}

func TestDeleteMessages(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	seed := []*database.Message{
		{ChatID: 1, UserID: 10, Content: "a", Timestamp: now},
		{ChatID: 1, UserID: 20, Content: "b", Timestamp: now},
		{ChatID: 2, UserID: 10, Content: "c", Timestamp: now},
	}
	for _, m := range seed {
		if err := store.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage() failed: %v", err)
		}
	}

	count, err := store.DeleteMessagesInChat(ctx, 1)
	if err != nil {
		t.Fatalf("DeleteMessagesInChat() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("DeleteMessagesInChat(1) = %d, want 2", count)
	}

	count, err = store.DeleteMessagesByUser(ctx, 10)
	if err != nil {
		t.Fatalf("DeleteMessagesByUser() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("DeleteMessagesByUser(10) = %d, want 1", count)
	}

	remaining, err := store.GetAllMessages(ctx)
	if err != nil {
		t.Fatalf("GetAllMessages() failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("got %d remaining messages, want 0", len(remaining))
	}
}

func TestSaveTask_InsertAndUpsert(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	task := &database.Task{
		JobID:           "user_1_reminder_abc",
		TaskType:        database.TaskTypeReminder,
		UserID:          1,
		ChatID:          1,
		OriginalRequest: "remind me to water the plants every morning",
		Preferences:     `{"message":"Water the plants"}`,
		IsRecurring:     true,
		CronExpr:        sql.NullString{String: "0 8 * * *", Valid: true},
		Enabled:         true,
	}
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask() failed: %v", err)
	}

	got, err := store.GetTask(ctx, task.JobID)
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetTask() = nil, want task")
	}
	if got.TaskType != database.TaskTypeReminder || !got.IsRecurring || got.CronExpr.String != "0 8 * * *" {
		t.Errorf("GetTask() = %+v, fields do not round-trip", got)
	}
	if msg := got.Preference("message", ""); msg != "Water the plants" {
		t.Errorf("Preference(message) = %q, want %q", msg, "Water the plants")
	}

	// Saving again under the same job ID updates in place.
	task.Preferences = `{"message":"Feed the cat"}`
	task.CronExpr = sql.NullString{String: "0 9 * * *", Valid: true}
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask() upsert failed: %v", err)
	}

	all, err := store.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("GetAllTasks() failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d tasks after upsert, want 1", len(all))
	}
	if all[0].CronExpr.String != "0 9 * * *" || all[0].Preference("message", "") != "Feed the cat" {
		t.Errorf("upsert did not replace fields: %+v", all[0])
	}
}

func TestGetTask_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	got, err := store.GetTask(context.Background(), "user_9_reminder_missing")
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetTask() = %+v, want nil for unknown job", got)
	}
}

func TestListTasksByUser_EnabledOnly(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	seed := []*database.Task{
		{JobID: "user_1_reminder_a", TaskType: database.TaskTypeReminder, UserID: 1, ChatID: 1, IsRecurring: true, CronExpr: sql.NullString{String: "0 8 * * *", Valid: true}, Enabled: true},
		{JobID: "user_1_reminder_b", TaskType: database.TaskTypeReminder, UserID: 1, ChatID: 1, RunAt: sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true}, Enabled: true},
		{JobID: "user_2_gym_booking_c", TaskType: database.TaskTypeGymBooking, UserID: 2, ChatID: 2, IsRecurring: true, CronExpr: sql.NullString{String: "0 7 * * 1", Valid: true}, Enabled: true},
	}
	for _, task := range seed {
		if err := store.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask(%s) failed: %v", task.JobID, err)
		}
	}

	disabled, err := store.DisableTask(ctx, "user_1_reminder_b")
	if err != nil {
		t.Fatalf("DisableTask() failed: %v", err)
	}
	if !disabled {
		t.Fatal("DisableTask() = false, want true")
	}

	tasks, err := store.ListTasksByUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListTasksByUser() failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].JobID != "user_1_reminder_a" {
		t.Errorf("ListTasksByUser(1) = %+v, want only the enabled task", tasks)
	}

	enabled, err := store.ListEnabledTasks(ctx)
	if err != nil {
		t.Fatalf("ListEnabledTasks() failed: %v", err)
	}
	if len(enabled) != 2 {
		t.Errorf("ListEnabledTasks() returned %d tasks, want 2", len(enabled))
	}
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	task := &database.Task{
		JobID:    "user_1_reminder_del",
		TaskType: database.TaskTypeReminder,
		UserID:   1,
		ChatID:   1,
		RunAt:    sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true},
		Enabled:  true,
	}
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask() failed: %v", err)
	}

	deleted, err := store.DeleteTask(ctx, task.JobID)
	if err != nil {
		t.Fatalf("DeleteTask() failed: %v", err)
	}
	if !deleted {
		t.Error("DeleteTask() = false, want true for existing task")
	}

	deleted, err = store.DeleteTask(ctx, task.JobID)
	if err != nil {
		t.Fatalf("DeleteTask() second call failed: %v", err)
	}
	if deleted {
		t.Error("DeleteTask() = true, want false for already-deleted task")
	}
}

func TestDeleteTasksByUser(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	seed := []*database.Task{
		{JobID: "user_5_reminder_a", TaskType: database.TaskTypeReminder, UserID: 5, ChatID: 5, IsRecurring: true, CronExpr: sql.NullString{String: "0 8 * * *", Valid: true}, Enabled: true},
		{JobID: "user_5_reminder_b", TaskType: database.TaskTypeReminder, UserID: 5, ChatID: 5, IsRecurring: true, CronExpr: sql.NullString{String: "0 9 * * *", Valid: true}, Enabled: true},
		{JobID: "user_6_reminder_c", TaskType: database.TaskTypeReminder, UserID: 6, ChatID: 6, IsRecurring: true, CronExpr: sql.NullString{String: "0 8 * * *", Valid: true}, Enabled: true},
	}
	for _, task := range seed {
		if err := store.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask(%s) failed: %v", task.JobID, err)
		}
	}

	count, err := store.DeleteTasksByUser(ctx, 5)
	if err != nil {
		t.Fatalf("DeleteTasksByUser() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("DeleteTasksByUser(5) = %d, want 2", count)
	}

	remaining, err := store.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("GetAllTasks() failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].UserID != 6 {
		t.Errorf("remaining tasks = %+v, want only user 6's task", remaining)
	}
}
