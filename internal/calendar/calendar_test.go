package calendar_test

import (
	"strings"
	"testing"
	"time"

	"github.com/vclaes/assistbot/internal/calendar"
)

func TestGenerateICS(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)
	data, err := calendar.GenerateICS("Dentist appointment", start, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateICS() failed: %v", err)
	}

	content := string(data)
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"END:VCALENDAR",
		"VERSION:2.0",
		"SUMMARY:Dentist appointment",
		"DTSTART:20260901T070000Z",
		"DTEND:20260901T073000Z",
		"TRIGGER:-PT1H",
		"TRIGGER:-PT10M",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("generated .ics missing %q:\n%s", want, content)
		}
	}

	if got := strings.Count(content, "BEGIN:VALARM"); got != 2 {
		t.Errorf("got %d alarms, want 2", got)
	}
}

func TestGenerateICS_DefaultDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)
	data, err := calendar.GenerateICS("Gym", start, 0)
	if err != nil {
		t.Fatalf("GenerateICS() failed: %v", err)
	}

	if !strings.Contains(string(data), "DTEND:20260901T080000Z") {
		t.Errorf("zero duration did not fall back to %s:\n%s", calendar.DefaultDuration, data)
	}
}

func TestGenerateICS_Validation(t *testing.T) {
	t.Parallel()

	if _, err := calendar.GenerateICS("", time.Now(), time.Hour); err == nil {
		t.Error("GenerateICS() with empty title = nil, want error")
	}
	if _, err := calendar.GenerateICS("Dentist", time.Time{}, time.Hour); err == nil {
		t.Error("GenerateICS() with zero start = nil, want error")
	}
}
