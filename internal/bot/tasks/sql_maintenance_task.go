package tasks

import (
	"context"
	"time"

	"github.com/vclaes/assistbot/internal/scheduler"
)

const sqlMaintenanceTimeout = 5 * time.Minute

// newSQLMaintenanceTask returns a maintenance task that runs VACUUM on the
// SQLite database. Intended for a quiet nightly schedule.
func newSQLMaintenanceTask(deps TaskDeps) scheduler.MaintenanceFunc {
	return func(ctx context.Context) error {
		log := deps.Logger.With("task", "sql_maintenance")

		opCtx, cancel := context.WithTimeout(ctx, sqlMaintenanceTimeout)
		defer cancel()

		log.InfoContext(opCtx, "Starting SQL maintenance")
		if err := deps.Store.RunSQLMaintenance(opCtx); err != nil {
			log.ErrorContext(opCtx, "SQL maintenance failed", "error", err)
			return err
		}

		log.InfoContext(opCtx, "SQL maintenance completed")
		return nil
	}
}
