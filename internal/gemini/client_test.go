package gemini

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/vclaes/assistbot/internal/database"
)

func TestFormatMessageForAI(t *testing.T) {
	t.Parallel()

	msg := &database.Message{
		UserID:    42,
		Content:   "remind me tomorrow",
		Timestamp: time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC),
	}

	got := formatMessageForAI(msg)
	want := "[2026-08-29 14:30:00] UID 42: remind me tomorrow"
	if got != want {
		t.Errorf("formatMessageForAI() = %q, want %q", got, want)
	}
}

func TestBuildContents(t *testing.T) {
	t.Parallel()

	const botID = int64(999)
	now := time.Now()

	messages := []*database.Message{
		{UserID: 1, Content: "hello", Timestamp: now},
		{UserID: botID, Content: "hi there", Timestamp: now},
		{UserID: 1, Content: "set a reminder", Timestamp: now},
	}

	contents := buildContents(messages, botID)
	if len(contents) != 3 {
		t.Fatalf("got %d contents, want 3", len(contents))
	}

	wantRoles := []string{string(genai.RoleUser), string(genai.RoleModel), string(genai.RoleUser)}
	for i, content := range contents {
		if content.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, content.Role, wantRoles[i])
		}
	}
}

func TestRequestConfig_StampsDatetime(t *testing.T) {
	t.Parallel()

	c := &sdkClient{
		contentConfig:   &genai.GenerateContentConfig{},
		baseInstruction: "You are a personal assistant bot.",
	}

	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	cfg := c.requestConfig(now)

	if cfg.SystemInstruction == nil || len(cfg.SystemInstruction.Parts) == 0 {
		t.Fatal("requestConfig() produced no system instruction")
	}
	instruction := cfg.SystemInstruction.Parts[0].Text
	if !strings.HasPrefix(instruction, "You are a personal assistant bot.") {
		t.Errorf("instruction lost base text: %q", instruction)
	}
	if !strings.Contains(instruction, "Current datetime: 2026-08-29T10:00:00Z") {
		t.Errorf("instruction missing datetime stamp: %q", instruction)
	}

	// The shared base config must not be mutated.
	if c.contentConfig.SystemInstruction != nil {
		t.Error("requestConfig() mutated the shared base config")
	}
}

func TestExtractTextFromResponse(t *testing.T) {
	t.Parallel()

	c := &sdkClient{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	ctx := context.Background()

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr bool
	}{
		{name: "nil response", resp: nil, wantErr: true},
		{
			name: "blocked prompt",
			resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
					BlockReason: genai.BlockedReasonSafety,
				},
			},
			wantErr: true,
		},
		{
			name:    "no candidates",
			resp:    &genai.GenerateContentResponse{},
			wantErr: true,
		},
		{
			name: "single text part",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []*genai.Part{{Text: "  Done!  "}}}},
				},
			},
			want: "Done!",
		},
		{
			name: "multiple parts concatenated",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []*genai.Part{{Text: "Reminder "}, {Text: "created."}}}},
				},
			},
			want: "Reminder created.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := c.extractTextFromResponse(ctx, tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractTextFromResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("extractTextFromResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}
