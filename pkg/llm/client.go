// Package llm is the fallback extraction tier: when the regex and
// classifier layers cannot decide, a small structured-output prompt is
// sent to an OpenAI-compatible endpoint. Every operation is bounded by
// its own timeout and circuit breaker so a slow or failing provider
// degrades the pipeline to the cheaper tiers instead of stalling it.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/izgorodin/team-ops-assistant/pkg/config"
)

// ErrDisabled is returned by every operation when the client is nil or
// LLM support is switched off in config.
var ErrDisabled = errors.New("llm client disabled")

// chatCompleter is the slice of the OpenAI client the operations need.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client issues the three structured LLM operations: time extraction,
// geo intent classification, and city normalization. A nil *Client is
// valid; all operations return ErrDisabled.
type Client struct {
	api    chatCompleter
	cfg    config.LLMConfig
	logger *slog.Logger

	extractionBreaker    *breaker
	intentBreaker        *breaker
	normalizationBreaker *breaker
}

// NewClient builds a Client from config. Returns nil when LLM support
// is disabled so callers can wire it through unconditionally.
func NewClient(cfg config.LLMConfig) *Client {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:                  openai.NewClientWithConfig(apiCfg),
		cfg:                  cfg,
		logger:               slog.Default().With("component", "llm"),
		extractionBreaker:    newBreaker(cfg.BreakerFailureThreshold, cfg.BreakerResetTimeout),
		intentBreaker:        newBreaker(cfg.BreakerFailureThreshold, cfg.BreakerResetTimeout),
		normalizationBreaker: newBreaker(cfg.BreakerFailureThreshold, cfg.BreakerResetTimeout),
	}
}

// Enabled reports whether the client can serve calls.
func (c *Client) Enabled() bool { return c != nil }

// SyncBudget returns the outer deadline a synchronous caller should use
// around the given operation: the op timeout plus the safety margin.
func (c *Client) SyncBudget(op config.LLMOpConfig) time.Duration {
	if c == nil {
		return 0
	}
	return op.Timeout + c.cfg.SyncSafetyMargin
}

// ExtractionOp exposes the extraction op config for SyncBudget callers.
func (c *Client) ExtractionOp() config.LLMOpConfig { return c.cfg.Extraction }

// complete runs one chat completion under the op's breaker and timeout.
func (c *Client) complete(ctx context.Context, b *breaker, op config.LLMOpConfig, system, user string) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	if !b.allow() {
		return "", ErrBreakerOpen
	}

	ctx, cancel := context.WithTimeout(ctx, op.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     op.Model,
		MaxTokens: op.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		b.recordFailure()
		return "", err
	}
	if len(resp.Choices) == 0 {
		b.recordFailure()
		return "", errors.New("llm returned no choices")
	}

	b.recordSuccess()
	return resp.Choices[0].Message.Content, nil
}
