package handlers

import (
	"testing"
	"time"

	"github.com/vclaes/assistbot/internal/calendar"
)

func TestParseCancelArg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "plain", text: "/cancel user_1_reminder_abc", want: "user_1_reminder_abc"},
		{name: "with botname", text: "/cancel@assistbot user_1_reminder_abc", want: "user_1_reminder_abc"},
		{name: "extra whitespace", text: "  /cancel   user_1_reminder_abc  ", want: "user_1_reminder_abc"},
		{name: "no argument", text: "/cancel", want: ""},
		{name: "botname only", text: "/cancel@assistbot", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parseCancelArg(tt.text); got != tt.want {
				t.Errorf("parseCancelArg(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseCalendarCommand(t *testing.T) {
	t.Parallel()

	loc := time.UTC

	tests := []struct {
		name         string
		text         string
		wantTitle    string
		wantStart    time.Time
		wantDuration time.Duration
		wantErr      bool
	}{
		{
			name:         "rfc3339 start",
			text:         "/calendar Dentist; 2026-09-01T07:00:00Z",
			wantTitle:    "Dentist",
			wantStart:    time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC),
			wantDuration: calendar.DefaultDuration,
		},
		{
			name:         "local time format",
			text:         "/calendar Gym session; 2026-09-01 07:00",
			wantTitle:    "Gym session",
			wantStart:    time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC),
			wantDuration: calendar.DefaultDuration,
		},
		{
			name:         "explicit duration",
			text:         "/calendar Standup; 2026-09-01T09:30:00Z; 15",
			wantTitle:    "Standup",
			wantStart:    time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
			wantDuration: 15 * time.Minute,
		},
		{
			name:         "with botname",
			text:         "/calendar@assistbot Dentist; 2026-09-01T07:00:00Z",
			wantTitle:    "Dentist",
			wantStart:    time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC),
			wantDuration: calendar.DefaultDuration,
		},
		{name: "no arguments", text: "/calendar", wantErr: true},
		{name: "missing start", text: "/calendar Dentist", wantErr: true},
		{name: "too many parts", text: "/calendar a; 2026-09-01T07:00:00Z; 30; extra", wantErr: true},
		{name: "empty title", text: "/calendar ; 2026-09-01T07:00:00Z", wantErr: true},
		{name: "bad start time", text: "/calendar Dentist; tomorrow morning", wantErr: true},
		{name: "bad duration", text: "/calendar Dentist; 2026-09-01T07:00:00Z; soon", wantErr: true},
		{name: "negative duration", text: "/calendar Dentist; 2026-09-01T07:00:00Z; -5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			title, start, duration, err := parseCalendarCommand(tt.text, loc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCalendarCommand(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if duration != tt.wantDuration {
				t.Errorf("duration = %v, want %v", duration, tt.wantDuration)
			}
		})
	}
}
