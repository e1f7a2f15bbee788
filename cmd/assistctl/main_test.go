package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vclaes/assistbot/internal/database"
)

func seedTestDB(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, closeStore, err := openStore(dbPath)
	if err != nil {
		t.Fatalf("openStore() failed: %v", err)
	}
	defer closeStore()

	ctx := context.Background()
	task := &database.Task{
		JobID:       "user_1_reminder_seed",
		TaskType:    database.TaskTypeReminder,
		UserID:      1,
		ChatID:      1,
		Preferences: `{"message":"Water plants"}`,
		IsRecurring: true,
		CronExpr:    sql.NullString{String: "0 8 * * *", Valid: true},
		Enabled:     true,
	}
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask() failed: %v", err)
	}
	msg := &database.Message{ChatID: 1, UserID: 1, Content: "hello", Timestamp: time.Now()}
	if err := store.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("SaveMessage() failed: %v", err)
	}
	return dbPath
}

func TestRunExport(t *testing.T) {
	dbPath := seedTestDB(t)
	outPath := filepath.Join(t.TempDir(), "export.json")

	if err := runExport(context.Background(), dbPath, outPath); err != nil {
		t.Fatalf("runExport() failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read export file: %v", err)
	}
	var export dbExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(export.Tasks) != 1 || export.Tasks[0].JobID != "user_1_reminder_seed" {
		t.Errorf("export.Tasks = %+v, want the seeded task", export.Tasks)
	}
	if len(export.Messages) != 1 || export.Messages[0].Content != "hello" {
		t.Errorf("export.Messages = %+v, want the seeded message", export.Messages)
	}
}

func TestRunClear(t *testing.T) {
	dbPath := seedTestDB(t)
	ctx := context.Background()

	if err := runClear(ctx, dbPath, 1, true); err != nil {
		t.Fatalf("runClear() failed: %v", err)
	}

	store, closeStore, err := openStore(dbPath)
	if err != nil {
		t.Fatalf("openStore() failed: %v", err)
	}
	defer closeStore()

	messages, err := store.GetAllMessages(ctx)
	if err != nil {
		t.Fatalf("GetAllMessages() failed: %v", err)
	}
	tasks, err := store.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("GetAllTasks() failed: %v", err)
	}
	if len(messages) != 0 || len(tasks) != 0 {
		t.Errorf("clear --full left %d messages and %d tasks", len(messages), len(tasks))
	}
}

func TestRunDisable(t *testing.T) {
	dbPath := seedTestDB(t)
	ctx := context.Background()

	if err := runDisable(ctx, dbPath, "user_1_reminder_seed"); err != nil {
		t.Fatalf("runDisable() failed: %v", err)
	}

	store, closeStore, err := openStore(dbPath)
	if err != nil {
		t.Fatalf("openStore() failed: %v", err)
	}
	defer closeStore()

	// Disabled, not deleted: gone from the enabled listing, still exportable.
	enabled, err := store.ListEnabledTasks(ctx)
	if err != nil {
		t.Fatalf("ListEnabledTasks() failed: %v", err)
	}
	if len(enabled) != 0 {
		t.Errorf("ListEnabledTasks() = %+v, want none after disable", enabled)
	}
	all, err := store.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("GetAllTasks() failed: %v", err)
	}
	if len(all) != 1 || all[0].Enabled {
		t.Errorf("GetAllTasks() = %+v, want the record kept with enabled=false", all)
	}

	if err := runDisable(ctx, dbPath, "user_9_reminder_missing"); err == nil {
		t.Error("runDisable() with unknown job ID = nil, want error")
	}
}
