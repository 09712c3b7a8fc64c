// Package inference invokes the model with a rate-limit-aware retry policy.
package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/exceptions-cli/internal/config"
	"github.com/sells-group/exceptions-cli/internal/prompt"
	"github.com/sells-group/exceptions-cli/pkg/anthropic"
)

const (
	// maxAttempts caps total tries per record, including the first.
	maxAttempts = 3
	// defaultRateLimitWait is used when the service suggests no wait. It
	// doubles on each subsequent rate-limit retry.
	defaultRateLimitWait = 60 * time.Second
)

// Status tags the outcome of one inference invocation.
type Status string

const (
	// StatusOK carries response text.
	StatusOK Status = "ok"
	// StatusBlocked means the prompt hit a content-safety verdict. Terminal:
	// retrying an identical prompt cannot change it.
	StatusBlocked Status = "blocked"
	// StatusFailed covers exhausted retries and non-retryable errors.
	StatusFailed Status = "failed"
)

// Result is the tagged outcome of Generate.
type Result struct {
	Status  Status
	Text    string
	Failure string // human-readable reason when Status != StatusOK
	Usage   anthropic.TokenUsage
}

// Client wraps the Anthropic client with the pipeline's retry policy.
type Client struct {
	ai        anthropic.Client
	model     string
	maxTokens int64

	// sleep is swapped out in tests so retry waits don't wall-clock.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates an inference client.
func NewClient(ai anthropic.Client, cfg config.AnthropicConfig) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		ai:        ai,
		model:     cfg.Model,
		maxTokens: maxTokens,
		sleep:     sleepCtx,
	}
}

// Generate sends the compiled prompt and returns the model's reply.
//
// Retry policy: up to maxAttempts tries. A rate-limit error waits for the
// service-suggested duration when present, otherwise the default wait doubling
// per rate-limit retry. A safety block returns immediately after exactly one
// attempt. Any other error is terminal without retry; exhausted retries return
// the last error.
func (c *Client) Generate(ctx context.Context, promptText, recordID string) Result {
	wait := defaultRateLimitWait

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System:    prompt.SystemText,
			Messages: []anthropic.Message{
				{Role: "user", Content: promptText},
			},
		})
		if err == nil {
			resp.Usage.LogCost(c.model, "analyze")
			return Result{Status: StatusOK, Text: resp.Text(), Usage: resp.Usage}
		}
		lastErr = err

		if errors.Is(err, anthropic.ErrBlocked) {
			zap.L().Warn("inference: prompt blocked by safety filter",
				zap.String("record", recordID),
			)
			return Result{Status: StatusBlocked, Failure: "analysis blocked by content safety filter"}
		}

		suggested, rateLimited := anthropic.IsRateLimited(err)
		if !rateLimited {
			zap.L().Warn("inference: call failed",
				zap.String("record", recordID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return Result{Status: StatusFailed, Failure: fmt.Sprintf("analysis failed: %v", err)}
		}

		if attempt == maxAttempts {
			break
		}

		delay := wait
		if suggested > 0 {
			delay = suggested
		} else {
			wait *= 2
		}
		zap.L().Warn("inference: rate limited, backing off",
			zap.String("record", recordID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", delay),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return Result{Status: StatusFailed, Failure: fmt.Sprintf("analysis canceled during backoff: %v", err)}
		}
	}

	return Result{
		Status:  StatusFailed,
		Failure: fmt.Sprintf("analysis failed after %d attempts: %v", maxAttempts, lastErr),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
