package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultGeminiBaseURL is the generateContent endpoint root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// DefaultGeminiModels is tried in order; earlier entries are preferred.
var DefaultGeminiModels = []string{
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
}

// GeminiCaller posts generateContent requests over HTTP.
type GeminiCaller struct {
	BaseURL        string
	Models         []string
	HTTPClient     *http.Client
	RetryDelay     time.Duration
	AttemptTimeout time.Duration // zero means no per-attempt timeout
	Logger         *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

var _ Caller = (*GeminiCaller)(nil)

// NewGeminiCaller creates a caller with the default endpoint, models and delay.
func NewGeminiCaller(httpClient *http.Client) *GeminiCaller {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiCaller{
		BaseURL:    DefaultGeminiBaseURL,
		Models:     append([]string(nil), DefaultGeminiModels...),
		HTTPClient: httpClient,
		RetryDelay: DefaultRetryDelay,
		Logger:     slog.Default(),
		sleep:      sleepContext,
	}
}

// Generate tries each model in order and returns the first successful text.
func (c *GeminiCaller) Generate(ctx context.Context, apiKey string, build RequestBuilder, onStatus StatusFunc) (string, bool, error) {
	for i, model := range c.Models {
		if onStatus != nil {
			onStatus(statusMessage(i, model))
		}

		status, body, err := c.attempt(ctx, apiKey, model, build(model))
		if err != nil {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			c.logger().Warn("AI model request failed", "model", model, "error", err)
			continue
		}

		switch classify(status) {
		case outcomeRateLimited:
			c.logger().Warn("AI model rate-limited, trying next model", "model", model)
			continue
		case outcomeTransient:
			c.logger().Warn("AI model transient error, trying next model", "model", model, "status", status)
			if err := c.wait(ctx); err != nil {
				return "", false, err
			}
			continue
		case outcomeFatal:
			return "", false, &StatusError{Model: model, StatusCode: status}
		}

		if !gjson.ValidBytes(body) {
			c.logger().Warn("AI model returned a non-JSON body, trying next model", "model", model, "status", status)
			continue
		}
		return gjson.GetBytes(body, "candidates.0.content.parts.0.text").String(), true, nil
	}
	return "", false, nil
}

func (c *GeminiCaller) attempt(ctx context.Context, apiKey, model string, req GenerateRequest) (int, []byte, error) {
	if c.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.AttemptTimeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(c.BaseURL, "/"), url.PathEscape(model), url.QueryEscape(apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *GeminiCaller) wait(ctx context.Context) error {
	sleep := c.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, c.RetryDelay)
}

func (c *GeminiCaller) client() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *GeminiCaller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
