// Package calendar generates .ics calendar file content for events the
// assistant books or proposes.
package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// DefaultDuration is used when the caller does not specify an event length.
const DefaultDuration = 60 * time.Minute

// GenerateICS builds an .ics calendar file with a single event carrying two
// display alarms, one hour and ten minutes before the start.
// The start time must be timezone-aware (non-zero location is the caller's
// responsibility); duration <= 0 falls back to DefaultDuration.
func GenerateICS(title string, start time.Time, duration time.Duration) ([]byte, error) {
	if title == "" {
		return nil, fmt.Errorf("event title cannot be empty")
	}
	if start.IsZero() {
		return nil, fmt.Errorf("event start time cannot be zero")
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	cal := ics.NewCalendar()
	cal.SetProductId("-//Personal Assistant//EN")
	cal.SetVersion("2.0")

	event := cal.AddEvent(uuid.NewString())
	event.SetSummary(title)
	event.SetStartAt(start)
	event.SetEndAt(start.Add(duration))
	event.SetDtStampTime(time.Now().UTC())

	for _, trigger := range []string{"-PT1H", "-PT10M"} {
		alarm := event.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(trigger)
		alarm.SetProperty(ics.ComponentPropertyDescription, title)
	}

	return []byte(cal.Serialize()), nil
}
