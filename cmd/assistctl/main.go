// Package main contains the assistctl maintenance CLI for the personal
// assistant bot database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vclaes/assistbot/internal/database"
	"github.com/vclaes/assistbot/internal/logger"

	_ "modernc.org/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "assistctl",
		Short: "Maintenance CLI for the personal assistant bot",
		Long:  "assistctl performs offline maintenance on the bot database: exporting stored data and clearing per-user records.",
	}
	root.AddCommand(newDBCommand())
	return root
}

func newDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance commands",
	}
	cmd.PersistentFlags().String("db", "./assistant.db", "Path to the SQLite database file")
	cmd.AddCommand(newDBExportCommand())
	cmd.AddCommand(newDBClearCommand())
	cmd.AddCommand(newDBDisableCommand())
	return cmd
}

// dbExport is the JSON document written by `assistctl db export`.
type dbExport struct {
	Tasks    []*database.Task    `json:"tasks"`
	Messages []*database.Message `json:"messages"`
}

func newDBExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all tasks and messages as JSON",
		Long:  "Dumps every task and chat message record from the database as a single JSON document, to stdout or to a file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			output, _ := cmd.Flags().GetString("output")
			return runExport(cmd.Context(), dbPath, output)
		},
	}
	cmd.Flags().String("output", "", "Output file path (default: stdout)")
	return cmd
}

func newDBClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete stored records for a user",
		Long:  "Deletes all chat messages sent by the given user. With --full, also deletes the user's scheduled task metadata.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			userID, _ := cmd.Flags().GetInt64("user-id")
			full, _ := cmd.Flags().GetBool("full")
			if userID == 0 {
				return fmt.Errorf("--user-id is required")
			}
			return runClear(cmd.Context(), dbPath, userID, full)
		},
	}
	cmd.Flags().Int64("user-id", 0, "Telegram user ID whose records to delete")
	cmd.Flags().Bool("full", false, "Also delete the user's scheduled tasks")
	return cmd
}

func newDBDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <job-id>",
		Short: "Disable a scheduled task without deleting it",
		Long:  "Clears the enabled flag on a task so the bot will not re-arm it on its next start. The record stays in place for export and inspection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			return runDisable(cmd.Context(), dbPath, args[0])
		},
	}
}

func openStore(dbPath string) (database.Store, func(), error) {
	db, err := database.NewDB(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %q: %w", dbPath, err)
	}
	log := logger.NewLogger("warn", false)
	return database.NewStore(db, log), func() { database.CloseDB(db) }, nil
}

func runExport(ctx context.Context, dbPath, output string) error {
	store, closeStore, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	tasks, err := store.GetAllTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	messages, err := store.GetAllMessages(ctx)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	data, err := json.MarshalIndent(dbExport{Tasks: tasks, Messages: messages}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	slog.Info("Export written", "path", output, "tasks", len(tasks), "messages", len(messages))
	return nil
}

func runClear(ctx context.Context, dbPath string, userID int64, full bool) error {
	store, closeStore, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	deleted, err := store.DeleteMessagesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete messages for user %d: %w", userID, err)
	}
	fmt.Printf("Deleted %d messages for user %d\n", deleted, userID)

	if full {
		deletedTasks, err := store.DeleteTasksByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to delete tasks for user %d: %w", userID, err)
		}
		fmt.Printf("Deleted %d tasks for user %d\n", deletedTasks, userID)
	}
	return nil
}

func runDisable(ctx context.Context, dbPath, jobID string) error {
	store, closeStore, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	disabled, err := store.DisableTask(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to disable task %q: %w", jobID, err)
	}
	if !disabled {
		return fmt.Errorf("no task found with job ID %q", jobID)
	}
	fmt.Printf("Disabled task %s\n", jobID)
	return nil
}
