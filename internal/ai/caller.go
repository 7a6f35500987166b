// Package ai calls generative AI endpoints with an ordered model fallback chain.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Caller returns the first successful raw text response across its models.
//
// ok is false with a nil error when every model failed through a retryable
// path (rate limit, transient server fault, network error). A non-nil error
// means a model answered with an unexpected status and no further models were
// tried.
type Caller interface {
	Generate(ctx context.Context, apiKey string, build RequestBuilder, onStatus StatusFunc) (text string, ok bool, err error)
}

// DefaultRetryDelay is the pause after a transient server fault.
const DefaultRetryDelay = 2 * time.Second

// StatusError reports a non-retryable HTTP status from a model.
type StatusError struct {
	Model      string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("AI API error %d from %s", e.StatusCode, e.Model)
}

// outcome classifies one attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRateLimited
	outcomeTransient
	outcomeFatal
)

func classify(status int) outcome {
	switch {
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case status == http.StatusInternalServerError, status == http.StatusServiceUnavailable:
		return outcomeTransient
	case status >= 200 && status < 300:
		return outcomeSuccess
	default:
		return outcomeFatal
	}
}

func statusMessage(i int, model string) string {
	if i == 0 {
		return "Running AI analysis…"
	}
	return fmt.Sprintf("Retrying with %s…", model)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
