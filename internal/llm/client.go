// Package llm invokes a Gemini model for the model-backed specialist stages
// and decodes its JSON replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

// generator is the part of *genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// RetryConfig bounds retries of transient failures.
type RetryConfig struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// DefaultRetryConfig returns the production retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Client calls one model and returns decoded JSON objects.
type Client struct {
	models  generator
	model   string
	timeout time.Duration
	retry   RetryConfig
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient creates a genai-backed client. Credentials come from the
// environment the way genai.NewClient resolves them.
func NewClient(ctx context.Context, cfg config.ModelConfig) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: cfg.APIVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	retry := DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retry.MaxAttempts = cfg.MaxRetries + 1
	}
	return newClient(gc.Models, cfg.Name, cfg.Timeout, retry), nil
}

func newClient(models generator, model string, timeout time.Duration, retry RetryConfig) *Client {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Client{
		models:  models,
		model:   model,
		timeout: timeout,
		retry:   retry,
		sleep:   sleepContext,
	}
}

// Invoke renders the stage prompt, calls the model and decodes the reply.
// Transient failures are retried with exponential backoff; fatal ones are
// returned immediately.
func (c *Client) Invoke(ctx context.Context, stage string, input any) (map[string]any, error) {
	log := logger.FromContext(ctx).With().Str("stage", stage).Str("model", c.model).Logger()

	prompt, err := BuildPrompt(stage, input)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("Invoke: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		out, err := c.generate(ctx, prompt)
		if err == nil {
			log.Debug().Int("attempt", attempt).Msg("Model reply decoded")
			return out, nil
		}
		lastErr = err
		if IsFatal(err) {
			return nil, err
		}
		if attempt < c.retry.MaxAttempts {
			backoff := c.backoff(attempt)
			log.Debug().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("Model call failed, retrying")
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, NewFatalError(fmt.Errorf("Invoke: %w", err))
			}
		}
	}
	return nil, lastErr
}

func (c *Client) generate(ctx context.Context, prompt string) (map[string]any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewTransientError(fmt.Errorf("generate: %w", err))
		}
		return nil, classify(fmt.Errorf("generate: %w", err))
	}

	raw := resp.Text()
	if raw == "" {
		return nil, NewTransientError(errors.New("generate: empty response from model"))
	}
	out, err := DecodeObject(raw)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("generate: %w", err))
	}
	return out, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retry.BackoffMultiplier
	}
	d := time.Duration(float64(c.retry.BackoffBase) * multiplier)
	if c.retry.MaxBackoff > 0 && d > c.retry.MaxBackoff {
		d = c.retry.MaxBackoff
	}
	// +/- 25% jitter
	jitter := float64(d) * 0.25 * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
