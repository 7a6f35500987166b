package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModels is tried in order when the Anthropic provider is selected.
var DefaultAnthropicModels = []string{
	"claude-sonnet-4-5",
	"claude-haiku-4-5-20251001",
}

// AnthropicCaller applies the fallback policy over the Anthropic Messages API.
// SDK-level retries are disabled so each model gets exactly one attempt.
type AnthropicCaller struct {
	Models         []string
	MaxTokens      int64
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	Logger         *slog.Logger

	api   *anthropic.Client
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Caller = (*AnthropicCaller)(nil)

// NewAnthropicCaller creates a caller. Extra options are applied to the
// underlying client, e.g. option.WithBaseURL in tests.
func NewAnthropicCaller(models []string, opts ...option.RequestOption) *AnthropicCaller {
	if len(models) == 0 {
		models = DefaultAnthropicModels
	}
	opts = append([]option.RequestOption{option.WithMaxRetries(0)}, opts...)
	client := anthropic.NewClient(opts...)
	return &AnthropicCaller{
		Models:     append([]string(nil), models...),
		MaxTokens:  4096,
		RetryDelay: DefaultRetryDelay,
		Logger:     slog.Default(),
		api:        &client,
		sleep:      sleepContext,
	}
}

// Generate tries each model in order and returns the first text block.
func (c *AnthropicCaller) Generate(ctx context.Context, apiKey string, build RequestBuilder, onStatus StatusFunc) (string, bool, error) {
	for i, model := range c.Models {
		if onStatus != nil {
			onStatus(statusMessage(i, model))
		}

		text, err := c.attempt(ctx, apiKey, model, build(model))
		if err == nil {
			return text, true, nil
		}

		var apiErr *anthropic.Error
		if !errors.As(err, &apiErr) {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			c.Logger.Warn("AI model request failed", "model", model, "error", err)
			continue
		}

		switch classify(apiErr.StatusCode) {
		case outcomeRateLimited:
			c.Logger.Warn("AI model rate-limited, trying next model", "model", model)
		case outcomeTransient:
			c.Logger.Warn("AI model transient error, trying next model", "model", model, "status", apiErr.StatusCode)
			if err := c.sleep(ctx, c.RetryDelay); err != nil {
				return "", false, err
			}
		default:
			return "", false, &StatusError{Model: model, StatusCode: apiErr.StatusCode}
		}
	}
	return "", false, nil
}

func (c *AnthropicCaller) attempt(ctx context.Context, apiKey, model string, req GenerateRequest) (string, error) {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if c.AttemptTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.AttemptTimeout))
	}

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   c.MaxTokens,
		Temperature: anthropic.Float(req.GenerationConfig.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(toBlocks(req)...),
		},
	}, opts...)
	if err != nil {
		return "", err
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

// toBlocks flattens the generateContent parts into Anthropic content blocks.
func toBlocks(req GenerateRequest) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, content := range req.Contents {
		for _, part := range content.Parts {
			if part.InlineData != nil {
				blocks = append(blocks, anthropic.NewImageBlockBase64(part.InlineData.MimeType, part.InlineData.Data))
				continue
			}
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		}
	}
	return blocks
}
