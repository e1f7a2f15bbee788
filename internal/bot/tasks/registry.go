// Package tasks contains the handlers executed when scheduled jobs fire:
// user-created tasks (reminders, gym-booking prompts) and config-driven
// maintenance tasks.
package tasks

import (
	"github.com/vclaes/assistbot/internal/database"
	"github.com/vclaes/assistbot/internal/scheduler"
)

// RegisterAllTasks returns the handler for each user-schedulable task type.
func RegisterAllTasks(deps TaskDeps) map[string]scheduler.TaskHandlerFunc {
	return map[string]scheduler.TaskHandlerFunc{
		database.TaskTypeReminder:   newReminderTask(deps),
		database.TaskTypeGymBooking: newGymBookingTask(deps),
	}
}

// RegisterMaintenanceTasks returns the named maintenance tasks available to
// the scheduler's config-driven schedule.
func RegisterMaintenanceTasks(deps TaskDeps) map[string]scheduler.MaintenanceFunc {
	return map[string]scheduler.MaintenanceFunc{
		"sql_maintenance": newSQLMaintenanceTask(deps),
	}
}
