// Package gemini implements integration with Google's Gemini AI API.
// It provides the natural-language agent for the bot, including the
// function-calling loop that drives the scheduling tools.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/vclaes/assistbot/internal/config"
	"github.com/vclaes/assistbot/internal/database"
)

// Client defines the interface for AI operations used throughout the application.
type Client interface {
	// GenerateReply produces an assistant reply for the given chat history.
	// The last message is the user's current prompt; messages whose UserID
	// equals botID are treated as the model's own previous turns. Tool calls
	// requested by the model are dispatched before the final text is returned.
	GenerateReply(ctx context.Context, messages []*database.Message, botID int64) (string, error)
}

// ToolDispatcher executes a tool call requested by the model and returns a
// textual result to feed back. Implementations declare their own schemas.
type ToolDispatcher interface {
	Declarations() []*genai.FunctionDeclaration
	Dispatch(ctx context.Context, name string, args map[string]any) (string, error)
}

type sdkClient struct {
	genaiClient      *genai.Client
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	tools            ToolDispatcher
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
	maxToolRounds    int
	baseInstruction  string
}

// NewClient creates a new Gemini AI client with the provided configuration.
// The tool dispatcher may be nil, in which case no tools are offered.
func NewClient(
	ctx context.Context,
	cfg config.GeminiConfig,
	tools ToolDispatcher,
	log *slog.Logger,
) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	baseCfg := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,

		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	if tools != nil {
		if decls := tools.Declarations(); len(decls) > 0 {
			baseCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		}
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:      gi,
		log:              logger,
		contentConfig:    baseCfg,
		tools:            tools,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		maxToolRounds:    cfg.MaxToolRounds,
		baseInstruction:  cfg.SystemInstruction,
	}, nil
}

func formatMessageForAI(m *database.Message) string {
	return fmt.Sprintf("[%s] UID %d: %s", m.Timestamp.Format("2006-01-02 15:04:05"), m.UserID, m.Content)
}

// buildContents converts stored chat history into genai contents,
// assigning the model role to the bot's own messages.
func buildContents(messages []*database.Message, botID int64) []*genai.Content {
	var contents []*genai.Content
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.UserID == botID {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(formatMessageForAI(m), role))
	}
	return contents
}

// requestConfig copies the base config and stamps the system instruction
// with the current datetime so relative times resolve correctly.
func (c *sdkClient) requestConfig(now time.Time) *genai.GenerateContentConfig {
	copyCfg := *c.contentConfig
	instruction := c.baseInstruction
	if instruction != "" {
		instruction += "\n\n"
	}
	instruction += "Current datetime: " + now.Format(time.RFC3339)
	copyCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: instruction}}}
	return &copyCfg
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError", "delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			c.log.ErrorContext(ctx, "Gemini API call failed after max retries with APIError", "error", err, "code", apiErr.Code)
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

func (c *sdkClient) GenerateReply(ctx context.Context, messages []*database.Message, botID int64) (string, error) {
	c.log.DebugContext(ctx, "Generating reply", "message_count", len(messages))

	contents := buildContents(messages, botID)
	cfg := c.requestConfig(time.Now())

	maxRounds := c.maxToolRounds
	if maxRounds < 1 {
		maxRounds = 1
	}

	for round := 0; round < maxRounds; round++ {
		resp, err := c.generateContentWithRetries(ctx, c.defaultModelName, contents, cfg)
		if err != nil {
			c.log.ErrorContext(ctx, "Gemini reply generation failed", "error", err)
			return "", err
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return c.extractTextFromResponse(ctx, resp)
		}

		if c.tools == nil {
			return "", fmt.Errorf("model requested tool call %q but no dispatcher is configured", calls[0].Name)
		}

		// Feed the model's function-call turn back, then the tool results.
		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			contents = append(contents, resp.Candidates[0].Content)
		}

		var responseParts []*genai.Part
		for _, call := range calls {
			c.log.InfoContext(ctx, "Dispatching tool call", "tool", call.Name, "round", round+1)
			result, dispatchErr := c.tools.Dispatch(ctx, call.Name, call.Args)
			if dispatchErr != nil {
				c.log.WarnContext(ctx, "Tool call failed", "tool", call.Name, "error", dispatchErr)
				result = "Error: " + dispatchErr.Error()
			}
			responseParts = append(responseParts, genai.NewPartFromFunctionResponse(call.Name, map[string]any{"result": result}))
		}
		contents = append(contents, genai.NewContentFromParts(responseParts, genai.RoleUser))
	}

	return "", fmt.Errorf("model did not produce a final reply within %d tool rounds", maxRounds)
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("empty response from gemini")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		c.log.ErrorContext(ctx, "Gemini response blocked",
			"reason", resp.PromptFeedback.BlockReason, "message", resp.PromptFeedback.BlockReasonMessage)
		return "", fmt.Errorf("gemini response blocked: %s", resp.PromptFeedback.BlockReason)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		break // only the first candidate is used
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini response contained no text")
	}
	return text, nil
}
